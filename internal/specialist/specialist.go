package specialist

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/state"
)

// Request is everything a specialist sees for one invocation.
type Request struct {
	// Name is the specialist being run.
	Name string
	// Location is the trip location, from the intent or the region preference.
	Location string
	// Context is the analyzer's free-text brief for this specialist. It
	// falls back to the raw user input.
	Context string
	// Preferences are the merged user preferences.
	Preferences state.Preferences
	// Intent is the analyzed intent. It may be nil for ad hoc runs.
	Intent *state.Intent
	// View gives read access to other specialists' outputs.
	View state.View
}

// NewRequest builds the request for name from the current plan state.
func NewRequest(name string, view state.View) Request {
	req := Request{Name: name, View: view}
	if view == nil {
		return req
	}
	req.Preferences = view.Preferences()
	req.Intent = view.Intent()
	req.Location = req.Preferences.Region
	if req.Intent != nil && req.Intent.Location != "" {
		req.Location = req.Intent.Location
	}
	req.Context = req.Intent.ContextFor(name)
	if req.Context == "" {
		req.Context = view.UserInput()
	}
	return req
}

// Upstream returns another specialist's output when it has completed with
// a payload.
func (r Request) Upstream(name string) (state.Output, bool) {
	if r.View == nil {
		return state.Output{}, false
	}
	out, ok := r.View.Output(name)
	if !ok || out.Empty() {
		return state.Output{}, false
	}
	return out, true
}

// Specialist gathers one category of information. Implementations must be
// safe to call again after a failure; the runner retries transient errors.
type Specialist interface {
	Run(ctx context.Context, req Request) (state.Output, error)
}

// Degradable is implemented by specialists that can return their raw tool
// output when the enhancement step produced something unparseable.
type Degradable interface {
	Specialist
	Raw(ctx context.Context, req Request) (state.Output, error)
}

// Func adapts a function to the Specialist interface.
type Func func(ctx context.Context, req Request) (state.Output, error)

// Run calls f.
func (f Func) Run(ctx context.Context, req Request) (state.Output, error) {
	return f(ctx, req)
}

// WithRaw pairs a specialist with a raw fallback.
func WithRaw(s Specialist, raw Func) Degradable {
	return degradable{Specialist: s, raw: raw}
}

type degradable struct {
	Specialist
	raw Func
}

func (d degradable) Raw(ctx context.Context, req Request) (state.Output, error) {
	return d.raw(ctx, req)
}

// Registry maps specialist names to implementations. It is built once at
// startup and shared by reference.
type Registry struct {
	mu          sync.RWMutex
	specialists map[string]Specialist
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specialists: make(map[string]Specialist)}
}

// Register adds s under the normalized form of name.
func (r *Registry) Register(name string, s Specialist) error {
	n, err := Normalize(name)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("register %s: nil specialist", n)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specialists[n]; exists {
		return fmt.Errorf("register %s: already registered", n)
	}
	r.specialists[n] = s
	return nil
}

// MustRegister is Register for static wiring; it panics on error.
func (r *Registry) MustRegister(name string, s Specialist) {
	if err := r.Register(name, s); err != nil {
		panic(err)
	}
}

// Get returns the specialist registered under name.
func (r *Registry) Get(name string) (Specialist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specialists[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownSpecialist, name)
	}
	return s, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.specialists[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.specialists))
	for n := range r.specialists {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of registered specialists.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.specialists)
}
