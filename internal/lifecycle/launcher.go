package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/danmuck/mrctl/internal/config"
	logs "github.com/danmuck/smplog"
)

// Launcher spawns components and records their pids.
type Launcher struct {
	root    string
	records Records
	host    Host
}

func NewLauncher(root string, records Records, host Host) *Launcher {
	return &Launcher{root: root, records: records, host: host}
}

// Start launches every component independently and reports each outcome.
func (l *Launcher) Start(ctx context.Context, components []config.Component) Report {
	if err := os.MkdirAll(l.root, 0o755); err != nil {
		logs.Warnf("lifecycle.start create root=%s: %v", l.root, err)
	}
	return each(components, func(c config.Component) Outcome {
		if err := ctx.Err(); err != nil {
			return failed(c, 0, fmt.Errorf("%w: %v", ErrLaunch, err))
		}
		return l.startOne(c)
	})
}

func (l *Launcher) startOne(c config.Component) Outcome {
	dir := c.Dir(l.root)
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		logs.Warnf("lifecycle.start component=%s dir=%s does not exist", c.Name, dir)
		return Outcome{Component: c, State: StateNotInstalled}
	}
	if err != nil {
		return failed(c, 0, fmt.Errorf("%w: stat %s: %v", ErrLaunch, dir, err))
	}

	pid, err := l.host.Spawn(dir, c.Command)
	if err != nil {
		logs.Errorf(err, "lifecycle.start component=%s spawn failed", c.Name)
		return failed(c, 0, fmt.Errorf("%w: %v", ErrLaunch, err))
	}
	if err := l.records.Write(c.Name, pid); err != nil {
		// The process keeps running untracked; there is no rollback.
		logs.Errorf(err, "lifecycle.start component=%s pid=%d untracked", c.Name, pid)
		return failed(c, pid, fmt.Errorf("%w: %v", ErrPersist, err))
	}
	logs.Infof("lifecycle.start component=%s pid=%d", c.Name, pid)
	return Outcome{Component: c, State: StateStarted, PID: pid}
}
