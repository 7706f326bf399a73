package lifecycle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/mrctl/internal/config"
)

var (
	ErrLaunch      = errors.New("lifecycle: launch failed")
	ErrPersist     = errors.New("lifecycle: pid record not persisted")
	ErrTermination = errors.New("lifecycle: termination failed")
)

// State is the observed or resulting state of one component.
type State string

const (
	StateStarted        State = "started"
	StateNotInstalled   State = "skipped - not installed"
	StateRunning        State = "running"
	StateStopped        State = "stopped"
	StateAlreadyStopped State = "already stopped"
	StateFailed         State = "failed"
)

// Outcome is the result for a single component.
type Outcome struct {
	Component config.Component
	State     State
	PID       int
	Err       error
}

func (o Outcome) Failed() bool {
	return o.Err != nil
}

func (o Outcome) String() string {
	name := o.Component.DisplayName()
	switch {
	case o.Err != nil:
		return fmt.Sprintf("%s %s: %v", name, o.State, o.Err)
	case o.PID > 0:
		return fmt.Sprintf("%s %s (PID %d)", name, o.State, o.PID)
	default:
		return fmt.Sprintf("%s %s", name, o.State)
	}
}

// Report aggregates outcomes in component order.
type Report struct {
	Outcomes []Outcome
}

// Err joins every component failure, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Component.Name, o.Err))
		}
	}
	return errors.Join(errs...)
}

// Get returns the outcome for a component name.
func (r Report) Get(name string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Component.Name == name {
			return o, true
		}
	}
	return Outcome{}, false
}

func failed(c config.Component, pid int, err error) Outcome {
	return Outcome{Component: c, State: StateFailed, PID: pid, Err: err}
}

// each runs fn for every component concurrently; records are disjoint.
func each(components []config.Component, fn func(config.Component) Outcome) Report {
	out := make([]Outcome, len(components))
	var wg sync.WaitGroup
	for i, c := range components {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = fn(c)
		}()
	}
	wg.Wait()
	return Report{Outcomes: out}
}
