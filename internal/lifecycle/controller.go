package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/danmuck/mrctl/internal/config"
	"github.com/danmuck/mrctl/internal/pidstore"
	logs "github.com/danmuck/smplog"
)

// Controller composes a Launcher and a Terminator over one root.
type Controller struct {
	*Launcher
	*Terminator
	root         string
	records      Records
	host         Host
	restartDelay time.Duration
}

func NewController(cfg config.Config, records Records, host Host) *Controller {
	return &Controller{
		Launcher:     NewLauncher(cfg.Root, records, host),
		Terminator:   NewTerminator(records, host, cfg.StopSettle),
		root:         cfg.Root,
		records:      records,
		host:         host,
		restartDelay: cfg.RestartDelay,
	}
}

// Restart stops the components, waits, then starts the ones that stopped.
// A component whose stop failed is not started again.
func (c *Controller) Restart(ctx context.Context, components []config.Component) (stop Report, start Report) {
	stop = c.Stop(ctx, components)

	if c.restartDelay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(c.restartDelay):
		}
	}

	ready := make([]config.Component, 0, len(components))
	var blocked []Outcome
	for _, o := range stop.Outcomes {
		if o.Failed() {
			blocked = append(blocked, failed(o.Component, o.PID, fmt.Errorf("%w: not restarted, stop failed", ErrLaunch)))
			continue
		}
		ready = append(ready, o.Component)
	}
	start = c.Start(ctx, ready)
	start.Outcomes = append(start.Outcomes, blocked...)
	return stop, start
}

// Status reports each component as running, stopped or not installed.
// Stale and corrupt records observed along the way are removed.
func (c *Controller) Status(_ context.Context, components []config.Component) Report {
	return each(components, c.statusOne)
}

func (c *Controller) statusOne(comp config.Component) Outcome {
	pid, ok, err := c.records.Read(comp.Name)
	switch {
	case errors.Is(err, pidstore.ErrCorruptRecord):
		logs.Warnf("lifecycle.status component=%s removing corrupt record", comp.Name)
		if err := c.records.Delete(comp.Name); err != nil {
			return failed(comp, 0, err)
		}
	case err != nil:
		return failed(comp, 0, err)
	case ok:
		live, err := c.host.Alive(pid)
		if err != nil {
			return failed(comp, pid, err)
		}
		if live {
			return Outcome{Component: comp, State: StateRunning, PID: pid}
		}
		logs.Infof("lifecycle.status component=%s removing stale record pid=%d", comp.Name, pid)
		if err := c.records.Delete(comp.Name); err != nil {
			return failed(comp, pid, err)
		}
	}

	if _, err := os.Stat(comp.Dir(c.root)); errors.Is(err, fs.ErrNotExist) {
		return Outcome{Component: comp, State: StateNotInstalled}
	}
	return Outcome{Component: comp, State: StateStopped}
}
