package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeReply is one scripted reply.
type FakeReply struct {
	Content string
	Err     error
}

// Fake is a scripted Client. Replies are matched by agent first, then
// taken from the default queue. It records every request it receives.
type Fake struct {
	mu       sync.Mutex
	byAgent  map[string][]FakeReply
	queue    []FakeReply
	fallback *FakeReply
	requests []Request
}

// NewFake creates an empty fake.
func NewFake() *Fake {
	return &Fake{byAgent: make(map[string][]FakeReply)}
}

// On queues replies for requests from agent.
func (f *Fake) On(agent string, replies ...FakeReply) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byAgent[agent] = append(f.byAgent[agent], replies...)
	return f
}

// Reply queues default replies.
func (f *Fake) Reply(replies ...FakeReply) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, replies...)
	return f
}

// Always sets the reply used once every queue is drained.
func (f *Fake) Always(r FakeReply) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallback = &r
	return f
}

// Complete returns the next scripted reply.
func (f *Fake) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	var r FakeReply
	switch {
	case len(f.byAgent[req.Agent]) > 0:
		r = f.byAgent[req.Agent][0]
		f.byAgent[req.Agent] = f.byAgent[req.Agent][1:]
	case len(f.queue) > 0:
		r = f.queue[0]
		f.queue = f.queue[1:]
	case f.fallback != nil:
		r = *f.fallback
	default:
		f.mu.Unlock()
		return nil, fmt.Errorf("fake llm: no reply scripted for %s", req.Agent)
	}
	f.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}
	return &Response{Content: r.Content, Model: "fake", FinishReason: "stop"}, nil
}

// Requests returns the requests received so far.
func (f *Fake) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// RequestsFor returns the requests received from agent.
func (f *Fake) RequestsFor(agent string) []Request {
	var out []Request
	for _, r := range f.Requests() {
		if r.Agent == agent {
			out = append(out, r)
		}
	}
	return out
}

// Prompt joins the message contents of req, for assertions.
func Prompt(req Request) string {
	parts := make([]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}
