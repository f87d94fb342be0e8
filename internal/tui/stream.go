package tui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"collab-hub/internal/hierarchy"
)

// stream consumes the hub's server-sent event feed and hands envelopes to the
// program one at a time.
type stream struct {
	url    string
	client *http.Client
	envs   chan hierarchy.Envelope
	ctx    context.Context
	cancel context.CancelFunc
}

func newStream(url string) *stream {
	ctx, cancel := context.WithCancel(context.Background())
	return &stream{
		url:    url,
		client: &http.Client{},
		envs:   make(chan hierarchy.Envelope, 8),
		ctx:    ctx,
		cancel: cancel,
	}
}

// connect reads the feed until it ends or the stream is closed. The returned
// message reports why the feed stopped.
func (s *stream) connect() tea.Cmd {
	return func() tea.Msg {
		defer close(s.envs)
		req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return streamDoneMsg{err: err}
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return streamDoneMsg{err: err}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return streamDoneMsg{err: fmt.Errorf("stream returned %s", resp.Status)}
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			env, ok := parseEvent(scanner.Text())
			if !ok {
				continue
			}
			select {
			case s.envs <- env:
			case <-s.ctx.Done():
				return streamDoneMsg{}
			}
		}
		return streamDoneMsg{err: scanner.Err()}
	}
}

// next delivers one envelope from the feed.
func (s *stream) next() tea.Cmd {
	return func() tea.Msg {
		env, ok := <-s.envs
		if !ok {
			return nil
		}
		return envelopeMsg{env: env}
	}
}

func (s *stream) close() {
	s.cancel()
}

// parseEvent extracts the envelope from one SSE data line; id and blank lines
// are skipped.
func parseEvent(line string) (hierarchy.Envelope, bool) {
	data, found := strings.CutPrefix(line, "data: ")
	if !found {
		return hierarchy.Envelope{}, false
	}
	var env hierarchy.Envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return hierarchy.Envelope{}, false
	}
	return env, true
}
