package rpcServer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/rs/cors"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/epochTiming"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/metrics"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/parser"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/simulation"
	"go.uber.org/zap"
)

type RpcServerConfig struct {
	HttpPort           int
	CorsAllowedOrigins []string
}

type LogSynchronizer interface {
	Synchronize(ctx context.Context, fromBlock uint64) ([]*parser.ContractEvent, error)
}

type SimulationController interface {
	StartSimulation(ctx context.Context, admin common.Address) ([]simulation.DeployedContractRecord, error)
	KillSimulation(ctx context.Context) *simulation.KillResult
	Status() *simulation.SimulationHandle
}

type EpochStateReader interface {
	ReadEpochState(ctx context.Context) (*epochTiming.EpochState, error)
}

type RpcServer struct {
	config       *RpcServerConfig
	synchronizer LogSynchronizer
	controller   SimulationController
	epochReader  EpochStateReader
	metricsSink  *metrics.MetricsSink
	Logger       *zap.Logger

	// clock used for epoch countdowns
	now func() time.Time

	// routes holds the registered paths, used to bound metric label cardinality
	routes map[string]bool
	server *http.Server
}

func NewRpcServer(
	config *RpcServerConfig,
	synchronizer LogSynchronizer,
	controller SimulationController,
	epochReader EpochStateReader,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *RpcServer {
	return &RpcServer{
		config:       config,
		synchronizer: synchronizer,
		controller:   controller,
		epochReader:  epochReader,
		metricsSink:  ms,
		Logger:       l,
		now:          time.Now,
		routes:       make(map[string]bool),
	}
}

type route struct {
	method  string
	path    string
	handler runtime.HandlerFunc
}

func (rpc *RpcServer) registerHandlers(mux *runtime.ServeMux) error {
	routes := []route{
		{method: http.MethodPost, path: "/logs", handler: rpc.GetLogs},
		{method: http.MethodPost, path: "/test/init", handler: rpc.InitSimulation},
		{method: http.MethodGet, path: "/test/kill", handler: rpc.KillSimulation},
		{method: http.MethodPost, path: "/test/kill", handler: rpc.KillSimulation},
		{method: http.MethodGet, path: "/test/status", handler: rpc.GetSimulationStatus},
		{method: http.MethodGet, path: "/epoch", handler: rpc.GetEpochCountdown},
		{method: http.MethodGet, path: "/healthz", handler: rpc.Healthz},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.path, r.handler); err != nil {
			return fmt.Errorf("failed to register %s %s: %w", r.method, r.path, err)
		}
		rpc.routes[r.path] = true
	}
	return nil
}

// Handler builds the full HTTP handler: CORS, request ids, tracing and metrics around the
// route mux.
func (rpc *RpcServer) Handler() (http.Handler, error) {
	mux := runtime.NewServeMux(
		runtime.WithRoutingErrorHandler(rpc.handleRoutingError),
	)
	if err := rpc.registerHandlers(mux); err != nil {
		return nil, err
	}

	c := cors.New(cors.Options{
		AllowedOrigins: rpc.config.CorsAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{requestIdHeader},
	})
	return c.Handler(rpc.withRequestContext(mux)), nil
}

// Start binds the HTTP port and serves in the background until a value arrives on stop.
func (rpc *RpcServer) Start(ctx context.Context, stop <-chan bool) error {
	handler, err := rpc.Handler()
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", rpc.config.HttpPort))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", rpc.config.HttpPort, err)
	}

	rpc.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		rpc.Logger.Sugar().Infow("Starting HTTP server", zap.Int("port", rpc.config.HttpPort))
		if err := rpc.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rpc.Logger.Sugar().Errorw("HTTP server failed", zap.Error(err))
		}
	}()
	go func() {
		<-stop
		rpc.Logger.Sugar().Infow("Stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := rpc.server.Shutdown(shutdownCtx); err != nil {
			rpc.Logger.Sugar().Errorw("Failed to shutdown HTTP server", zap.Error(err))
		}
	}()
	return nil
}

func (rpc *RpcServer) handleRoutingError(ctx context.Context, _ *runtime.ServeMux, _ runtime.Marshaler, w http.ResponseWriter, r *http.Request, httpStatus int) {
	rpc.writeError(w, r, httpStatus, errors.New(http.StatusText(httpStatus)))
}
