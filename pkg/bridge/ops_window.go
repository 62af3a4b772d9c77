package bridge

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"poly/pkg/sovereignty"
)

// Window is a webview surface the host was asked to create. The bridge
// only keeps the registry; a native host renders the entries.
type Window struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	URL     string    `json:"url"`
	Width   int64     `json:"width"`
	Height  int64     `json:"height"`
	Created time.Time `json:"created"`
}

func registerWindowOps() {
	register("window_create", needs(sovereignty.WindowCreate), func(s *Server, _ context.Context, a Args) (any, error) {
		w := &Window{
			ID:      uuid.NewString(),
			Title:   a.String("title", 0, s.manifest.Window.Title),
			URL:     a.String("url", 1, s.URL()),
			Width:   a.Int("width", 2, s.manifest.Window.Width),
			Height:  a.Int("height", 3, s.manifest.Window.Height),
			Created: time.Now(),
		}
		s.windows.Set(w.ID, w)
		s.log.Debug().Str("window", w.ID).Str("url", w.URL).Msg("window created")
		return w, nil
	})

	register("window_list", needs(sovereignty.WindowControl), func(s *Server, _ context.Context, _ Args) (any, error) {
		return s.Windows(), nil
	})

	register("window_close", needs(sovereignty.WindowControl), func(s *Server, _ context.Context, a Args) (any, error) {
		_, existed := s.windows.Pop(a.String("id", 0, ""))
		return existed, nil
	})

	register("window_set_title", needs(sovereignty.WindowControl), func(s *Server, _ context.Context, a Args) (any, error) {
		id := a.String("id", 0, "")
		w, ok := s.windows.Get(id)
		if !ok {
			return nil, fmt.Errorf("Window not found: %s", id)
		}
		updated := *w
		updated.Title = a.String("title", 1, "")
		s.windows.Set(id, &updated)
		return &updated, nil
	})
}

// Windows returns the open windows, oldest first.
func (s *Server) Windows() []Window {
	out := make([]Window, 0, s.windows.Count())
	for _, w := range s.windows.Items() {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}
