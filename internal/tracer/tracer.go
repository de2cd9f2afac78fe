package tracer

import (
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/config"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/version"
	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

const ServiceName = "tankgame-sidecar"

// StartTracer starts the DataDog tracer. When disabled the global no-op tracer stays in
// place, so spans can be created unconditionally.
func StartTracer(cfg *config.TracerConfig) {
	if !cfg.Enabled {
		return
	}
	ddTracer.Start(
		ddTracer.WithEnv(cfg.Env),
		ddTracer.WithServiceName(ServiceName),
		ddTracer.WithServiceVersion(version.GetVersion()),
		ddTracer.WithGlobalServiceName(true),
		ddTracer.WithLogStartup(false),
	)
}

func StopTracer(cfg *config.TracerConfig) {
	if cfg.Enabled {
		ddTracer.Stop()
	}
}
