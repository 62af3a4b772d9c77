package bridge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"poly/pkg/sovereignty"
)

type dirEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"isDir"`
}

func ioError(err error) error {
	return fmt.Errorf("IO error: %w", err)
}

func registerFsOps() {
	register("fs_read", needsPath(sovereignty.FsRead, "path"), func(s *Server, _ context.Context, a Args) (any, error) {
		data, err := os.ReadFile(s.pathArg(a, "path"))
		if err != nil {
			return nil, ioError(err)
		}
		return string(data), nil
	})

	register("fs_write", needsPath(sovereignty.FsWrite, "path"), func(s *Server, _ context.Context, a Args) (any, error) {
		path := s.pathArg(a, "path")
		if a.Bool("createDirs", 2, false) {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, ioError(err)
			}
		}
		if err := os.WriteFile(path, []byte(a.String("content", 1, "")), 0o644); err != nil {
			return nil, ioError(err)
		}
		return true, nil
	})

	register("fs_exists", needsPath(sovereignty.FsRead, "path"), func(s *Server, _ context.Context, a Args) (any, error) {
		_, err := os.Stat(s.pathArg(a, "path"))
		return err == nil, nil
	})

	register("fs_read_dir", needsPath(sovereignty.FsRead, "path"), func(s *Server, _ context.Context, a Args) (any, error) {
		dir := s.pathArg(a, "path")
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, ioError(err)
		}
		out := make([]dirEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, dirEntry{Name: e.Name(), Path: filepath.Join(dir, e.Name()), IsDir: e.IsDir()})
		}
		return out, nil
	})

	register("fs_mkdir", needsPath(sovereignty.FsWrite, "path"), func(s *Server, _ context.Context, a Args) (any, error) {
		if err := os.MkdirAll(s.pathArg(a, "path"), 0o755); err != nil {
			return nil, ioError(err)
		}
		return true, nil
	})

	register("fs_remove", needsPath(sovereignty.FsWrite, "path"), func(s *Server, _ context.Context, a Args) (any, error) {
		path := s.pathArg(a, "path")
		var err error
		if a.Bool("recursive", 1, false) {
			err = os.RemoveAll(path)
		} else {
			err = os.Remove(path)
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, ioError(err)
		}
		return err == nil, nil
	})
}
