package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"poly/pkg/config"
	"poly/pkg/eval"
	"poly/pkg/logging"
	"poly/pkg/mailer"
	"poly/pkg/sovereignty"
	"poly/pkg/store"
	"poly/pkg/stream"
)

const (
	// SystemPrefix marks a host operation in the fn field of an invoke
	// request.
	SystemPrefix = "__poly_"

	httpTimeout      = 30 * time.Second
	proxyRate        = 20
	proxyBurst       = 40
	defaultGitHubAPI = "https://api.github.com"
)

var errNoBackend = errors.New("No Poly backend available")

// Server is the loopback HTTP bridge between a webview and the script
// interpreter. Script calls are serialized on one mutex; host operations
// run concurrently.
type Server struct {
	manifest *config.Manifest
	entry    string
	perms    *sovereignty.Engine
	streams  *stream.Registry
	db       *store.Registry
	desktop  Desktop
	mail     mailer.Sender
	client   *http.Client
	log      zerolog.Logger

	mu      sync.Mutex
	current atomic.Pointer[eval.Interpreter]
	version atomic.Int64

	windows   cmap.ConcurrentMap[string, *Window]
	tray      atomic.Value
	deeplinks cmap.ConcurrentMap[string, bool]

	hub       *hub
	limiter   *rate.Limiter
	secret    []byte
	githubAPI string
	exit      func(code int)
	install   func(path string) error
	relaunch  func() error

	httpSrv *http.Server
	ln      net.Listener
}

type Option func(*Server)

func WithPermissions(e *sovereignty.Engine) Option {
	return func(s *Server) { s.perms = e }
}

func WithStreams(r *stream.Registry) Option {
	return func(s *Server) { s.streams = r }
}

func WithStore(r *store.Registry) Option {
	return func(s *Server) { s.db = r }
}

func WithDesktop(d Desktop) Option {
	return func(s *Server) { s.desktop = d }
}

func WithMailSender(m mailer.Sender) Option {
	return func(s *Server) { s.mail = m }
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Server) { s.client = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = logging.Component(l, "bridge") }
}

// WithEntry names the script whose top-level statements seed every
// interpreter the bridge builds.
func WithEntry(path string) Option {
	return func(s *Server) { s.entry = path }
}

// WithTokenSecret makes /__poly_invoke require a bearer token signed with
// secret. Tokens come from Server.Token.
func WithTokenSecret(secret string) Option {
	return func(s *Server) { s.secret = []byte(secret) }
}

func WithGitHubAPI(base string) Option {
	return func(s *Server) { s.githubAPI = base }
}

// WithExit replaces the process exit used by app_exit and app_relaunch.
func WithExit(fn func(code int)) Option {
	return func(s *Server) { s.exit = fn }
}

// WithInstaller replaces the step that applies a downloaded update.
func WithInstaller(fn func(path string) error) Option {
	return func(s *Server) { s.install = fn }
}

// New builds a bridge for the project described by m. A nil manifest uses
// the defaults for the working directory.
func New(m *config.Manifest, opts ...Option) *Server {
	if m == nil {
		m = config.Default(".")
	}
	s := &Server{
		manifest:  m,
		streams:   stream.Default,
		db:        store.Default,
		desktop:   NewHeadless(zerolog.Nop()),
		client:    &http.Client{Timeout: time.Duration(m.Network.Timeout) * time.Second},
		log:       logging.Nop(),
		windows:   cmap.New[*Window](),
		deeplinks: cmap.New[bool](),
		limiter:   rate.NewLimiter(rate.Limit(proxyRate), proxyBurst),
		githubAPI: defaultGitHubAPI,
		exit:      os.Exit,
		install:   replaceExecutable,
		relaunch:  relaunchSelf,
	}
	s.tray.Store(m.Tray.Tooltip)
	for _, opt := range opts {
		opt(s)
	}
	if s.client.Timeout == 0 {
		s.client.Timeout = httpTimeout
	}
	s.hub = newHub(s.log)
	return s
}

func (s *Server) maxBody() int64 {
	if s.manifest.Network.MaxBodySize > 0 {
		return s.manifest.Network.MaxBodySize
	}
	return config.DefaultMaxBodySize
}

// Interpreter returns the interpreter new script calls land on.
func (s *Server) Interpreter() *eval.Interpreter {
	return s.current.Load()
}

// Swap installs in for subsequent script calls. Calls already running keep
// the interpreter they started with.
func (s *Server) Swap(in *eval.Interpreter) {
	s.current.Store(in)
}

// Version is the reload counter polled by /__poly_reload.
func (s *Server) Version() int64 {
	return s.version.Load()
}

// Bump increments the reload counter and pushes the new value to every
// websocket client.
func (s *Server) Bump() int64 {
	v := s.version.Add(1)
	s.hub.broadcast(reloadMessage{Type: "reload", Version: v})
	return v
}

// NewInterpreter builds an interpreter wired to the bridge's permission
// engine, stream and database registries.
func (s *Server) NewInterpreter() *eval.Interpreter {
	opts := []eval.Option{
		eval.WithPermissions(s.perms),
		eval.WithStreams(s.streams),
		eval.WithStore(s.db),
		eval.WithLogger(s.log),
		eval.WithHTTPClient(s.client),
	}
	if s.mail != nil {
		opts = append(opts, eval.WithMailSender(s.mail))
	}
	if s.entry != "" {
		opts = append(opts, eval.WithBaseDir(filepath.Dir(s.entry)))
	}
	return eval.New(opts...)
}

// Seed builds a fresh interpreter, runs source in it and swaps it in. On
// failure the previous interpreter stays active.
func (s *Server) Seed(source string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reload panic: %v", r)
		}
	}()
	in := s.NewInterpreter()
	if _, err := in.RunSource(source); err != nil {
		return err
	}
	s.Swap(in)
	return nil
}

// Reseed re-reads the entry script and seeds a new interpreter from it.
func (s *Server) Reseed() error {
	if s.entry == "" {
		return errNoBackend
	}
	source, err := os.ReadFile(s.entry)
	if err != nil {
		return fmt.Errorf("read %s: %w", s.entry, err)
	}
	start := time.Now()
	if err := s.Seed(string(source)); err != nil {
		return err
	}
	s.log.Info().Str("entry", s.entry).Dur("took", time.Since(start)).Msg("interpreter seeded")
	return nil
}

// Handler returns the bridge's routes wrapped in request id, CORS and
// panic recovery middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/__poly_invoke", s.handleInvoke)
	mux.HandleFunc("/__poly_reload", s.handleReload)
	mux.HandleFunc("/__poly_run", s.handleRun)
	mux.HandleFunc("/__poly_proxy", s.handleProxy)
	mux.HandleFunc("/__poly_ws", s.handleWebsocket)
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.HandleFunc("/", s.handleStatic)
	return s.withRequestID(s.withCORS(s.withRecover(mux)))
}

// Listen binds addr, 127.0.0.1 with an ephemeral port when addr is empty.
func (s *Server) Listen(addr string) error {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.ln = ln
	return nil
}

// URL is the base URL of a bound server.
func (s *Server) URL() string {
	if s.ln == nil {
		return ""
	}
	return "http://" + s.ln.Addr().String()
}

// Serve answers requests until Shutdown.
func (s *Server) Serve() error {
	if s.ln == nil {
		if err := s.Listen(""); err != nil {
			return err
		}
	}
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Str("url", s.URL()).Msg("bridge listening")
	err := s.httpSrv.Serve(s.ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener and closes websocket clients and streaming
// sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}
	for _, id := range s.streams.List() {
		s.streams.Close(id)
	}
	return err
}
