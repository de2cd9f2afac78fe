package simulation

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/process"
	"go.uber.org/zap"
)

// Reaper terminates node processes that are not tracked by the controller, e.g. left
// behind by a previous sidecar.
type Reaper interface {
	Reap(ctx context.Context, signature string) (int, error)
}

type ProcessReaper struct {
	logger *zap.Logger
	// GracePeriod is how long a process gets to exit after SIGTERM before it is killed.
	GracePeriod time.Duration
}

func NewProcessReaper(l *zap.Logger) *ProcessReaper {
	return &ProcessReaper{
		logger:      l,
		GracePeriod: 3 * time.Second,
	}
}

// matchesSignature reports whether a process runs the signature executable.
func matchesSignature(name string, cmdline []string, signature string) bool {
	if signature == "" {
		return false
	}
	if name == signature {
		return true
	}
	return len(cmdline) > 0 && filepath.Base(cmdline[0]) == signature
}

// Reap terminates every process whose executable is signature and returns how many were
// terminated. Finding none is not an error.
func (pr *ProcessReaper) Reap(ctx context.Context, signature string) (int, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list processes")
	}

	self := int32(os.Getpid())
	reaped := 0
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		// processes can exit while being inspected
		name, _ := p.NameWithContext(ctx)
		cmdline, _ := p.CmdlineSliceWithContext(ctx)
		if !matchesSignature(name, cmdline, signature) {
			continue
		}

		pr.logger.Sugar().Infow("Terminating stale node process",
			zap.Int32("pid", p.Pid),
			zap.Strings("cmdline", cmdline),
		)
		if err := pr.terminate(ctx, p); err != nil {
			pr.logger.Sugar().Warnw("Failed to terminate stale node process",
				zap.Int32("pid", p.Pid),
				zap.Error(err),
			)
			continue
		}
		reaped++
	}
	return reaped, nil
}

func (pr *ProcessReaper) terminate(ctx context.Context, p *process.Process) error {
	if err := p.TerminateWithContext(ctx); err != nil {
		return err
	}
	deadline := time.Now().Add(pr.GracePeriod)
	for time.Now().Before(deadline) {
		running, err := p.IsRunningWithContext(ctx)
		if err != nil || !running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return p.KillWithContext(ctx)
}
