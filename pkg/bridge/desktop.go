package bridge

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Desktop is the native surface behind dialog, clipboard, notification and
// shell operations. A webview host supplies its own; servers without one
// use the headless implementation.
type Desktop interface {
	OpenFile(title string, filters []string) (string, bool)
	OpenFiles(title string, filters []string) []string
	SaveFile(title, defaultName string) (string, bool)
	PickFolder(title string) (string, bool)
	Message(title, message, level string) bool
	Confirm(title, message string) bool

	ReadClipboard() (string, error)
	WriteClipboard(text string) error
	Notify(title, body string, timeout time.Duration) error
	Open(target string) error
}

// Notification is one notify call recorded by Headless.
type Notification struct {
	Title   string
	Body    string
	Timeout time.Duration
}

// Headless answers every dialog with no selection and keeps clipboard,
// notifications and opened targets in memory.
type Headless struct {
	mu            sync.Mutex
	clipboard     string
	notifications []Notification
	opened        []string
	log           zerolog.Logger
}

func NewHeadless(log zerolog.Logger) *Headless {
	return &Headless{log: log}
}

func (h *Headless) OpenFile(title string, filters []string) (string, bool) { return "", false }
func (h *Headless) OpenFiles(title string, filters []string) []string    { return []string{} }
func (h *Headless) SaveFile(title, defaultName string) (string, bool)    { return "", false }
func (h *Headless) PickFolder(title string) (string, bool)               { return "", false }

func (h *Headless) Message(title, message, level string) bool {
	h.log.Info().Str("title", title).Str("level", level).Msg(message)
	return false
}

func (h *Headless) Confirm(title, message string) bool { return false }

func (h *Headless) ReadClipboard() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clipboard, nil
}

func (h *Headless) WriteClipboard(text string) error {
	h.mu.Lock()
	h.clipboard = text
	h.mu.Unlock()
	return nil
}

func (h *Headless) Notify(title, body string, timeout time.Duration) error {
	h.mu.Lock()
	h.notifications = append(h.notifications, Notification{Title: title, Body: body, Timeout: timeout})
	h.mu.Unlock()
	h.log.Info().Str("title", title).Msg(body)
	return nil
}

func (h *Headless) Open(target string) error {
	h.mu.Lock()
	h.opened = append(h.opened, target)
	h.mu.Unlock()
	return nil
}

func (h *Headless) Notifications() []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Notification(nil), h.notifications...)
}

// Opened lists the URLs and paths passed to Open.
func (h *Headless) Opened() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.opened...)
}
