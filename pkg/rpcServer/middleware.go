package rpcServer

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/metrics/metricsTypes"
	"go.uber.org/zap"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/ext"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

const (
	requestIdHeader = "X-Request-Id"

	maxRequestIdLength = 128
)

type requestIdKey struct{}

func requestIdFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIdKey{}).(string); ok {
		return id
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// isValidRequestId accepts ids of up to maxRequestIdLength characters from [A-Za-z0-9._-].
func isValidRequestId(id string) bool {
	if id == "" || len(id) > maxRequestIdLength {
		return false
	}
	for _, c := range []byte(id) {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

// newRequestId echoes a well formed caller supplied id and generates one otherwise.
func (rpc *RpcServer) newRequestId(r *http.Request) string {
	if id := r.Header.Get(requestIdHeader); isValidRequestId(id) {
		return id
	}
	id, err := uuid.NewRandom()
	if err != nil {
		rpc.Logger.Sugar().Errorw("Failed to generate request id", zap.Error(err))
		return ""
	}
	return id.String()
}

func (rpc *RpcServer) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestId := rpc.newRequestId(r)
		w.Header().Set(requestIdHeader, requestId)

		path := r.URL.Path
		if !rpc.routes[path] {
			path = "unmatched"
		}

		span, ctx := tracer.StartSpanFromContext(r.Context(), "http.request",
			tracer.ResourceName(r.Method+" "+path),
			tracer.SpanType(ext.SpanTypeWeb),
			tracer.Tag(ext.HTTPMethod, r.Method),
			tracer.Tag(ext.HTTPURL, r.URL.Path),
			tracer.Tag("request_id", requestId),
		)
		ctx = context.WithValue(ctx, requestIdKey{}, requestId)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		statusCode := strconv.Itoa(rec.status)
		span.SetTag(ext.HTTPCode, statusCode)
		span.Finish()

		labels := []metricsTypes.MetricsLabel{
			{Name: "method", Value: r.Method},
			{Name: "path", Value: path},
			{Name: "status_code", Value: statusCode},
		}
		_ = rpc.metricsSink.Incr(metricsTypes.Metric_Incr_HttpRequest, labels, 1)
		_ = rpc.metricsSink.Timing(metricsTypes.Metric_Timing_HttpDuration, time.Since(start), labels)

		rpc.Logger.Sugar().Debugw("Handled request",
			zap.String("requestId", requestId),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
