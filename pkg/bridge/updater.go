package bridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/tidwall/gjson"
	"gopkg.in/cenkalti/backoff.v1"

	"poly/pkg/sovereignty"
)

const (
	updaterUserAgent = "Poly-Updater/1.0"
	updatePrefix     = "poly_update_"
	metadataRetry    = 10 * time.Second
)

// UpdateInfo is the result of an update check.
type UpdateInfo struct {
	CurrentVersion  string  `json:"current_version"`
	LatestVersion   string  `json:"latest_version"`
	UpdateAvailable bool    `json:"update_available"`
	DownloadURL     *string `json:"download_url"`
	ReleaseNotes    *string `json:"release_notes"`
	PubDate         *string `json:"pub_date"`
}

// newerVersion compares semantic versions and falls back to inequality
// when either side does not parse.
func newerVersion(latest, current string) bool {
	l, errL := semver.NewVersion(latest)
	c, errC := semver.NewVersion(current)
	if errL != nil || errC != nil {
		return latest != current
	}
	return l.GreaterThan(c)
}

var platformPatterns = map[string][]string{
	"windows": {"windows", "win64", "win-x64", ".exe", ".msi"},
	"darwin":  {"macos", "darwin", "osx", ".dmg", ".app"},
	"linux":   {"linux", "appimage", ".deb", ".rpm"},
}

// platformKey names the current platform in a custom update manifest.
func platformKey() string {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	}
	return runtime.GOOS + "-" + arch
}

func optional(r gjson.Result) *string {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	s := r.String()
	return &s
}

func registerUpdaterOps() {
	register("updater_check_github", func(s *Server, _ Args) error {
		return s.perms.CheckURL(s.githubAPI)
	}, func(s *Server, ctx context.Context, a Args) (any, error) {
		repo, err := a.Require("repo", 0)
		if err != nil {
			return nil, err
		}
		return s.checkGitHub(ctx, repo, a.String("currentVersion", 1, s.manifest.Package.Version))
	})

	register("updater_check_url", needsURL("url"), func(s *Server, ctx context.Context, a Args) (any, error) {
		url, err := a.Require("url", 0)
		if err != nil {
			return nil, err
		}
		return s.checkManifestURL(ctx, url, a.String("currentVersion", 1, s.manifest.Package.Version))
	})

	register("updater_download", needsURL("url"), func(s *Server, ctx context.Context, a Args) (any, error) {
		url, err := a.Require("url", 0)
		if err != nil {
			return nil, err
		}
		return s.downloadUpdate(ctx, url)
	})

	register("updater_install", needsPath(sovereignty.FsRead, "path"), func(s *Server, _ context.Context, a Args) (any, error) {
		if _, err := a.Require("path", 0); err != nil {
			return nil, err
		}
		if err := s.install(s.pathArg(a, "path")); err != nil {
			return nil, fmt.Errorf("Install failed: %w", err)
		}
		return true, nil
	})
}

// fetchMetadata GETs a small JSON document, retrying transport failures
// and 5xx answers. Any other non-2xx answer stops the retries.
func (s *Server) fetchMetadata(ctx context.Context, url, what string) (gjson.Result, error) {
	var body []byte
	var permanent error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			permanent = err
			return nil
		}
		req.Header.Set("User-Agent", updaterUserAgent)
		req.Header.Set("Accept", "application/json")
		resp, err := s.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				permanent = err
				return nil
			}
			return fmt.Errorf("Failed to fetch %s: %w", what, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%s error: %s", what, resp.Status)
		}
		if resp.StatusCode/100 != 2 {
			permanent = fmt.Errorf("%s error: %s", what, resp.Status)
			return nil
		}
		body, err = io.ReadAll(resp.Body)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = metadataRetry
	if err := backoff.Retry(op, b); err != nil {
		return gjson.Result{}, err
	}
	if permanent != nil {
		return gjson.Result{}, permanent
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("Failed to parse %s response", what)
	}
	return gjson.ParseBytes(body), nil
}

func (s *Server) checkGitHub(ctx context.Context, repo, current string) (*UpdateInfo, error) {
	url := strings.TrimRight(s.githubAPI, "/") + "/repos/" + repo + "/releases/latest"
	release, err := s.fetchMetadata(ctx, url, "GitHub API")
	if err != nil {
		return nil, err
	}
	latest := strings.TrimPrefix(release.Get("tag_name").String(), "v")
	current = strings.TrimPrefix(current, "v")

	info := &UpdateInfo{
		CurrentVersion:  current,
		LatestVersion:   latest,
		UpdateAvailable: newerVersion(latest, current),
		ReleaseNotes:    optional(release.Get("body")),
		PubDate:         optional(release.Get("published_at")),
	}
	patterns := platformPatterns[runtime.GOOS]
	release.Get("assets").ForEach(func(_, asset gjson.Result) bool {
		name := strings.ToLower(asset.Get("name").String())
		for _, p := range patterns {
			if strings.Contains(name, p) {
				info.DownloadURL = optional(asset.Get("browser_download_url"))
				return false
			}
		}
		return true
	})
	return info, nil
}

// checkManifestURL reads an update manifest of the form
// {version, notes, pub_date, platforms: {"linux-x86_64": {url}}}.
func (s *Server) checkManifestURL(ctx context.Context, url, current string) (*UpdateInfo, error) {
	manifest, err := s.fetchMetadata(ctx, url, "Update server")
	if err != nil {
		return nil, err
	}
	if !manifest.Get("version").Exists() {
		return nil, fmt.Errorf("Failed to parse manifest: missing version")
	}
	latest := strings.TrimPrefix(manifest.Get("version").String(), "v")
	current = strings.TrimPrefix(current, "v")
	platforms := manifest.Get("platforms")
	var download gjson.Result
	platforms.ForEach(func(k, v gjson.Result) bool {
		if k.Str == platformKey() {
			download = v.Get("url")
			return false
		}
		return true
	})
	return &UpdateInfo{
		CurrentVersion:  current,
		LatestVersion:   latest,
		UpdateAvailable: newerVersion(latest, current),
		DownloadURL:     optional(download),
		ReleaseNotes:    optional(manifest.Get("notes")),
		PubDate:         optional(manifest.Get("pub_date")),
	}, nil
}

// downloadUpdate stores url in the temp directory, replacing earlier
// downloads, and returns the file's path.
func (s *Server) downloadUpdate(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("Failed to download: %w", err)
	}
	req.Header.Set("User-Agent", updaterUserAgent)
	resp, err := s.streamClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("Failed to download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("Download failed: %s", resp.Status)
	}

	dir := os.TempDir()
	if old, err := filepath.Glob(filepath.Join(dir, updatePrefix+"*")); err == nil {
		for _, f := range old {
			os.Remove(f)
		}
	}
	name := path.Base(strings.SplitN(url, "?", 2)[0])
	if name == "" || name == "/" || name == "." {
		name = "update"
	}
	dest := filepath.Join(dir, fmt.Sprintf("%s%d_%s", updatePrefix, time.Now().Unix(), name))
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("Failed to create temp file: %w", err)
	}
	defer f.Close()
	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return "", fmt.Errorf("Download error: %w", err)
	}
	s.log.Info().Str("path", dest).Int64("bytes", n).Msg("update downloaded")
	return dest, nil
}

// replaceExecutable swaps the running binary for the file at src. The old
// binary is kept next to it with a .old suffix.
func replaceExecutable(src string) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	if exe, err = filepath.EvalSymlinks(exe); err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", src)
	}
	if err := os.Chmod(src, 0o755); err != nil {
		return err
	}
	old := exe + ".old"
	os.Remove(old)
	if err := os.Rename(exe, old); err != nil {
		return err
	}
	if err := os.Rename(src, exe); err != nil {
		os.Rename(old, exe)
		return err
	}
	return nil
}
