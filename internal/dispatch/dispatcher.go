package dispatch

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/basecamp/internal/config"
	"github.com/Iron-Ham/basecamp/internal/event"
	"github.com/Iron-Ham/basecamp/internal/logging"
	"github.com/Iron-Ham/basecamp/internal/specialist"
	"github.com/Iron-Ham/basecamp/internal/state"
)

// DefaultMaxConcurrency bounds parallel specialists when no limit is set.
const DefaultMaxConcurrency = 4

// Runner executes one specialist. *specialist.Runner implements it.
type Runner interface {
	Run(ctx context.Context, name string, view state.View) specialist.Result
}

// Options configures a Dispatcher.
type Options struct {
	Runner         Runner
	Table          *specialist.Table
	MaxConcurrency int
	Logger         *logging.Logger
	Bus            *event.Bus
}

// Dispatcher drives a Scheduler through DISPATCHING: it runs every ready
// specialist on a bounded pool and folds each result into the plan state
// as it arrives.
type Dispatcher struct {
	runner Runner
	table  *specialist.Table
	max    int
	logger *logging.Logger
	bus    *event.Bus
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	return &Dispatcher{
		runner: opts.Runner,
		table:  opts.Table,
		max:    opts.MaxConcurrency,
		logger: logging.OrNop(opts.Logger),
		bus:    opts.Bus,
	}
}

// FromConfig builds a Dispatcher from the dispatch configuration section.
func FromConfig(cfg config.DispatchConfig, runner Runner, table *specialist.Table, logger *logging.Logger, bus *event.Bus) *Dispatcher {
	return New(Options{
		Runner:         runner,
		Table:          table,
		MaxConcurrency: cfg.MaxConcurrency,
		Logger:         logger,
		Bus:            bus,
	})
}

// Table returns the priority table the dispatcher schedules with.
func (d *Dispatcher) Table() *specialist.Table {
	return d.table
}

// Dispatch runs every pending specialist of ps and returns once all have
// reported. No goroutine started by Dispatch outlives it.
//
// Cancelling ctx stops new dispatches. Specialists already in flight still
// report (their calls fail as canceled) before Dispatch returns ctx.Err().
func (d *Dispatcher) Dispatch(ctx context.Context, s *Scheduler, ps *state.PlanState) error {
	log := d.logger.WithRun(ps.RunID()).WithPhase(string(state.PhaseDispatching))

	results := make(chan specialist.Result)
	p := pool.New().WithMaxGoroutines(d.max)
	defer p.Wait()

	inFlight := 0
	for {
		if ctx.Err() == nil && inFlight < d.max {
			for _, name := range s.Next(d.max - inFlight) {
				if err := s.Dispatched(name); err != nil {
					log.Error("failed to dispatch specialist", "specialist", name, "error", err.Error())
					continue
				}
				inFlight++
				d.bus.Publish(event.NewSpecialistDispatchedEvent(ps.RunID(), name))
				log.Debug("specialist dispatched", "specialist", name, "in_flight", inFlight)

				p.Go(func() {
					results <- d.runner.Run(ctx, name, ps)
				})
			}
		}

		if inFlight == 0 {
			break
		}

		res := <-results
		inFlight--
		if err := s.Completed(res.Name); err != nil {
			log.Error("completion for a specialist not in flight", "specialist", res.Name, "error", err.Error())
			continue
		}
		if err := ps.Apply(res.Delta()); err != nil {
			log.Error("failed to apply specialist result", "specialist", res.Name, "error", err.Error())
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.Done() {
		return fmt.Errorf("dispatch stopped with pending specialists: %v", s.Order())
	}
	return nil
}
