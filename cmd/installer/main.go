package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

func main() {
	customPath := flag.String("path", "", "Custom install directory")
	version := flag.String("version", "", "Version stamped into the binary (default: git describe)")
	flag.Parse()

	repoRoot, err := os.Getwd()
	if err != nil {
		exitWithError("unable to determine working directory", err)
	}
	targetDir := *customPath
	if targetDir == "" {
		targetDir = defaultInstallDir()
	}

	dest, err := install(repoRoot, targetDir, *version)
	if err != nil {
		exitWithError("install failed", err)
	}
	fmt.Printf("poly installed to %s\n", dest)
	fmt.Println("Run 'poly version' to verify the CLI is available in your PATH.")
}

// install builds cmd/poly into a scratch directory and copies the binary
// into targetDir.
func install(repoRoot, targetDir, version string) (string, error) {
	binaryName := "poly"
	if runtime.GOOS == "windows" {
		binaryName += ".exe"
	}

	scratch, err := os.MkdirTemp("", "poly-install-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(scratch)
	built := filepath.Join(scratch, binaryName)

	fmt.Println("Building poly CLI...")
	build := exec.Command("go", "build", "-ldflags", ldflags(repoRoot, version), "-o", built, "./cmd/poly")
	build.Stdout, build.Stderr, build.Dir = os.Stdout, os.Stderr, repoRoot
	if err := build.Run(); err != nil {
		return "", fmt.Errorf("go build: %w", err)
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", targetDir, err)
	}
	dest := filepath.Join(targetDir, binaryName)
	if err := copyFile(built, dest); err != nil {
		return "", fmt.Errorf("copy binary (try running with elevated permissions): %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(dest, 0o755); err != nil {
			return "", fmt.Errorf("set executable bit: %w", err)
		}
	}
	return dest, nil
}

// ldflags stamps version, commit and build date into cmd/poly.
func ldflags(repoRoot, version string) string {
	commit := gitOutput(repoRoot, "rev-parse", "--short", "HEAD")
	if version == "" {
		version = strings.TrimPrefix(gitOutput(repoRoot, "describe", "--tags", "--always"), "v")
	}
	flags := []string{"-s", "-w", "-X main.buildDate=" + time.Now().UTC().Format(time.RFC3339)}
	if version != "" {
		flags = append(flags, "-X main.version="+version)
	}
	if commit != "" {
		flags = append(flags, "-X main.gitCommit="+commit)
	}
	return strings.Join(flags, " ")
}

func gitOutput(dir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func defaultInstallDir() string {
	switch runtime.GOOS {
	case "windows":
		if base := os.Getenv("LOCALAPPDATA"); base != "" {
			return filepath.Join(base, "Programs", "Poly")
		}
		return filepath.Join(os.TempDir(), "Poly")
	default:
		return "/usr/local/bin"
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	// written beside dst, then renamed over it
	tmp := dst + ".new"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

func exitWithError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
