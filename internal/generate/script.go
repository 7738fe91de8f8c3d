package generate

import (
	"context"
	"errors"
	"sync"
	"time"
)

// #region script

// ErrScriptExhausted is returned once every scripted reply has been used.
var ErrScriptExhausted = errors.New("scripted generator has no replies left")

// Reply is one scripted generator response. A non-empty Err makes the call fail.
type Reply struct {
	Text  string        `json:"text,omitempty"`
	Err   string        `json:"error,omitempty"`
	Delay time.Duration `json:"delay,omitempty"`
}

// Call records the arguments of one Generate call.
type Call struct {
	Prompt   string
	Evidence string
}

// Script is a deterministic Generator that replays canned replies in order.
// Used by replay fixtures and tests.
type Script struct {
	mu      sync.Mutex
	replies []Reply
	calls   []Call
}

// NewScript creates a script that returns replies in order.
func NewScript(replies ...Reply) *Script {
	return &Script{replies: replies}
}

// Generate returns the next reply, honouring its Delay and ctx.
func (s *Script) Generate(ctx context.Context, prompt, evidence string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Prompt: prompt, Evidence: evidence})
	if len(s.replies) == 0 {
		s.mu.Unlock()
		return "", ErrScriptExhausted
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	s.mu.Unlock()

	if r.Delay > 0 {
		t := time.NewTimer(r.Delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
	if r.Err != "" {
		return "", errors.New(r.Err)
	}
	return r.Text, nil
}

// Calls returns a copy of every call made so far.
func (s *Script) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// #endregion script
