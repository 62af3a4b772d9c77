package stream

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrSessionNotFound is the error text reported for unknown ids.
const ErrSessionNotFound = "Session not found"

// Producer fills a session. Emit appends one line and reports false once
// the session has been closed, after which the producer should return.
type Producer interface {
	Produce(ctx context.Context, emit func(line string) bool) error
}

type ProducerFunc func(ctx context.Context, emit func(line string) bool) error

func (f ProducerFunc) Produce(ctx context.Context, emit func(line string) bool) error {
	return f(ctx, emit)
}

// Poll is the result of draining a session.
type Poll struct {
	Chunks []string `json:"chunks"`
	Done   bool     `json:"done"`
	Error  string   `json:"error,omitempty"`
}

type session struct {
	buffer   []string
	done     bool
	err      string
	cancel   context.CancelFunc
	finished chan struct{}
}

// Registry holds the streaming sessions of a process. One mutex covers all
// sessions; producers hold it only while appending.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*session
	counter  atomic.Uint64
	now      func() time.Time
	log      zerolog.Logger
}

type Option func(*Registry)

func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: map[int64]*session{},
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Default is the process-wide registry shared by the interpreter and the
// bridge.
var Default = NewRegistry()

// Start registers a session and runs p on its own goroutine. The returned
// id fits in 48 bits so it survives a round trip through a JavaScript
// number.
func (r *Registry) Start(ctx context.Context, p Producer) int64 {
	ctx, cancel := context.WithCancel(ctx)
	s := &session{cancel: cancel, finished: make(chan struct{})}

	r.mu.Lock()
	id := r.nextID()
	r.sessions[id] = s
	r.mu.Unlock()

	r.log.Debug().Int64("session", id).Msg("stream started")

	go r.run(ctx, id, s, p)
	return id
}

// nextID must be called with r.mu held.
func (r *Registry) nextID() int64 {
	millis := uint64(r.now().UnixMilli())
	for {
		counter := r.counter.Add(1) - 1
		id := int64(((millis & 0xFFFFFFFF) << 16) | (counter & 0xFFFF))
		if _, taken := r.sessions[id]; !taken {
			return id
		}
	}
}

func (r *Registry) run(ctx context.Context, id int64, s *session, p Producer) {
	defer close(s.finished)
	defer s.cancel()

	emit := func(line string) bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.sessions[id] != s {
			return false
		}
		s.buffer = append(s.buffer, line)
		return true
	}

	err := p.Produce(ctx, emit)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[id] != s {
		r.log.Debug().Int64("session", id).Msg("stream closed before completion")
		return
	}
	if err != nil {
		s.err = err.Error()
		r.log.Debug().Int64("session", id).Err(err).Msg("stream failed")
	}
	s.done = true
}

// Poll drains the buffered chunks of a session and reports its state.
func (r *Registry) Poll(id int64) Poll {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return Poll{Chunks: []string{}, Done: true, Error: ErrSessionNotFound}
	}

	chunks := s.buffer
	if chunks == nil {
		chunks = []string{}
	}
	s.buffer = nil
	return Poll{Chunks: chunks, Done: s.done, Error: s.err}
}

// Close removes a session and cancels its producer. It reports whether the
// session existed.
func (r *Registry) Close(id int64) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.cancel()
		r.log.Debug().Int64("session", id).Msg("stream closed")
	}
	return ok
}

// Wait blocks until the producer of a session has returned or ctx ends.
// Unknown sessions return immediately.
func (r *Registry) Wait(ctx context.Context, id int64) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case <-s.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List returns the ids of open sessions in ascending order.
func (r *Registry) List() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int64, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
