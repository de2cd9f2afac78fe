package rpcServer

import (
	"math"
	"math/big"
	"net/http"

	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/epochTiming"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/metrics/metricsTypes"
)

// GetEpochCountdown reads the on-chain epoch state and returns the time left in the
// current epoch.
func (rpc *RpcServer) GetEpochCountdown(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	state, err := rpc.epochReader.ReadEpochState(r.Context())
	if err != nil {
		rpc.writeError(w, r, statusForChainError(err), err)
		return
	}

	countdown := epochTiming.Compute(*state, rpc.now())

	_ = rpc.metricsSink.Gauge(metricsTypes.Metric_Gauge_SecondsUntilNextEpoch, secondsGaugeValue(countdown.SecondsUntilNextEpoch.BigInt()), nil)

	rpc.writeJson(w, http.StatusOK, countdown)
}

// secondsGaugeValue is for the metrics gauge only; the response carries the exact value.
// Countdowns outside int64 are clamped.
func secondsGaugeValue(seconds *big.Int) float64 {
	switch {
	case seconds.IsInt64():
		return float64(seconds.Int64())
	case seconds.Sign() > 0:
		return math.MaxInt64
	default:
		return math.MinInt64
	}
}

func (rpc *RpcServer) Healthz(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
