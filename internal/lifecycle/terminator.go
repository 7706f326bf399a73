package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/mrctl/internal/config"
	"github.com/danmuck/mrctl/internal/pidstore"
	"github.com/danmuck/mrctl/internal/proc"
	logs "github.com/danmuck/smplog"
)

// Terminator stops components recorded in PID records.
type Terminator struct {
	records Records
	host    Host
	settle  time.Duration
}

// NewTerminator waits settle before acting so a very recent start is not raced.
func NewTerminator(records Records, host Host, settle time.Duration) *Terminator {
	return &Terminator{records: records, host: host, settle: settle}
}

// Stop terminates every component independently and reports each outcome.
func (t *Terminator) Stop(ctx context.Context, components []config.Component) Report {
	if t.settle > 0 {
		timer := time.NewTimer(t.settle)
		select {
		case <-ctx.Done():
			timer.Stop()
			err := ctx.Err()
			return each(components, func(c config.Component) Outcome {
				return failed(c, 0, fmt.Errorf("%w: %v", ErrTermination, err))
			})
		case <-timer.C:
		}
	}
	return each(components, func(c config.Component) Outcome {
		return t.stopOne(ctx, c)
	})
}

func (t *Terminator) stopOne(ctx context.Context, c config.Component) Outcome {
	pid, ok, err := t.records.Read(c.Name)
	switch {
	case errors.Is(err, pidstore.ErrCorruptRecord):
		logs.Warnf("lifecycle.stop component=%s removing corrupt record: %v", c.Name, err)
		return t.forget(c, 0, StateAlreadyStopped)
	case err != nil:
		return failed(c, 0, err)
	case !ok:
		logs.Infof("lifecycle.stop component=%s not running (no pid record)", c.Name)
		return Outcome{Component: c, State: StateAlreadyStopped}
	}

	live, err := t.host.Alive(pid)
	if err != nil {
		return failed(c, pid, fmt.Errorf("%w: probe pid=%d: %v", ErrTermination, pid, err))
	}
	if !live {
		logs.Infof("lifecycle.stop component=%s pid=%d not found, already terminated", c.Name, pid)
		return t.forget(c, pid, StateAlreadyStopped)
	}

	logs.Infof("lifecycle.stop component=%s terminating pid=%d", c.Name, pid)
	if err := t.host.KillTree(ctx, pid); err != nil {
		if !errors.Is(err, proc.ErrProcessNotFound) {
			logs.Errorf(err, "lifecycle.stop component=%s pid=%d", c.Name, pid)
			return failed(c, pid, fmt.Errorf("%w: pid=%d: %v", ErrTermination, pid, err))
		}
		logs.Infof("lifecycle.stop component=%s pid=%d exited before kill", c.Name, pid)
	}
	return t.forget(c, pid, StateStopped)
}

// forget deletes the record once the process is confirmed gone.
func (t *Terminator) forget(c config.Component, pid int, state State) Outcome {
	if err := t.records.Delete(c.Name); err != nil {
		return failed(c, pid, err)
	}
	return Outcome{Component: c, State: state, PID: pid}
}
