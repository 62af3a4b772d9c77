package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"poly/pkg/sovereignty"
)

const shellTimeout = 60 * time.Second

type execResult struct {
	Code   int    `json:"code"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

func registerShellOps() {
	register("shell_open", needs(sovereignty.ShellOpen), func(s *Server, _ context.Context, a Args) (any, error) {
		url, err := a.Require("url", 0)
		if err != nil {
			return nil, err
		}
		if err := s.desktop.Open(url); err != nil {
			return nil, fmt.Errorf("Shell error: %w", err)
		}
		return true, nil
	})

	register("shell_open_path", needs(sovereignty.ShellOpenPath), func(s *Server, _ context.Context, a Args) (any, error) {
		path, err := a.Require("path", 0)
		if err != nil {
			return nil, err
		}
		if err := s.desktop.Open(s.path(path)); err != nil {
			return nil, fmt.Errorf("Shell error: %w", err)
		}
		return true, nil
	})

	register("shell_execute", needs(sovereignty.ShellExecute), func(s *Server, ctx context.Context, a Args) (any, error) {
		name, err := a.Require("command", 0)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(ctx, shellTimeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, name, a.Strings("args", 1)...)
		if dir := a.String("cwd", 2, ""); dir != "" {
			cmd.Dir = s.path(dir)
		}
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err = cmd.Run()
		var exitErr *exec.ExitError
		switch {
		case err == nil:
		case errors.As(err, &exitErr):
		default:
			return nil, fmt.Errorf("Shell error: %w", err)
		}
		return execResult{Code: cmd.ProcessState.ExitCode(), Stdout: stdout.String(), Stderr: stderr.String()}, nil
	})
}
