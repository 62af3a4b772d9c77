package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"poly/pkg/bridge"
	"poly/pkg/config"
	"poly/pkg/hotreload"
	"poly/pkg/logging"
	"poly/pkg/sovereignty"
)

type projectFlags struct {
	dir      string
	port     int
	token    string
	logLevel string
}

func parseProjectFlags(args []string, stderr io.Writer) (projectFlags, error) {
	var pf projectFlags
	fs := flag.NewFlagSet("poly", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&pf.port, "port", 0, "listen port")
	fs.StringVar(&pf.token, "token", "", "bearer token secret")
	fs.StringVar(&pf.logLevel, "log-level", "info", "log level")

	// the project directory may come before or after the flags
	pf.dir = "."
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		pf.dir, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return pf, err
	}
	if fs.NArg() > 0 {
		pf.dir = fs.Arg(0)
	}
	return pf, nil
}

// setupBridge loads the project in pf.dir and builds a seeded bridge. A
// failing entry script is reported but does not stop the bridge.
func setupBridge(pf projectFlags, log zerolog.Logger) (*bridge.Server, *config.Manifest, error) {
	m, err := config.LoadProject(pf.dir)
	if err != nil {
		return nil, nil, err
	}
	perms, err := sovereignty.FromDocument(m.Doc, m.Package.Name)
	if err != nil {
		return nil, nil, err
	}
	var engineOpts []sovereignty.Option
	if perms.AuditLog {
		engineOpts = append(engineOpts, sovereignty.WithAudit(logging.Component(log, "audit")))
	}

	opts := []bridge.Option{
		bridge.WithPermissions(sovereignty.New(perms, engineOpts...)),
		bridge.WithLogger(log),
	}
	entry, err := m.EntryPoint()
	if err == nil {
		opts = append(opts, bridge.WithEntry(entry))
	} else {
		log.Warn().Err(err).Msg("no entry script, serving static files only")
	}
	if pf.token != "" {
		opts = append(opts, bridge.WithTokenSecret(pf.token))
	}

	s := bridge.New(m, opts...)
	if entry != "" {
		if err := s.Reseed(); err != nil {
			log.Error().Err(err).Str("entry", entry).Msg("entry script failed")
		}
	}
	return s, m, nil
}

func runProject(args []string, watch bool) int {
	pf, err := parseProjectFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	log := logging.NewConsole(os.Stderr, pf.logLevel)

	s, m, err := setupBridge(pf, log)
	if err != nil {
		errorf("%v\n", err)
		return 1
	}

	port := int64(pf.port)
	if port == 0 {
		port = m.Dev.Port
	}
	addr := ""
	if port > 0 {
		addr = fmt.Sprintf("127.0.0.1:%d", port)
	}
	if err := s.Listen(addr); err != nil {
		errorf("%v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watch {
		root, _ := filepath.Abs(m.Dir)
		w, err := hotreload.New(root, s, hotreload.WithLogger(log))
		if err != nil {
			errorf("%v\n", err)
			return 1
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Error().Err(err).Msg("watcher stopped")
			}
		}()
		log.Info().Str("dir", root).Msg("watching for changes")
	}

	errc := make(chan error, 1)
	go func() { errc <- s.Serve() }()
	fmt.Printf("%s %s running at %s\n", m.Package.Name, m.Package.Version, s.URL())

	select {
	case err := <-errc:
		if err != nil {
			errorf("%v\n", err)
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown")
	}
	return 0
}
