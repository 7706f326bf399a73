package lifecycle

import "context"

// Host is the process primitive surface; proc.System implements it.
type Host interface {
	Spawn(dir string, argv []string) (int, error)
	Alive(pid int) (bool, error)
	KillTree(ctx context.Context, pid int) error
}

// Records is the PID record surface; pidstore.Store implements it.
type Records interface {
	Write(component string, pid int) error
	Read(component string) (int, bool, error)
	Delete(component string) error
}
