package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studygroup_http_requests_total",
			Help: "Total number of HTTP requests processed by the study group service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studygroup_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	grpcServerHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_server_handled_total",
			Help: "Total number of gRPC requests handled by the server.",
		},
		[]string{"grpc_service", "grpc_method", "grpc_code"},
	)
	messageAppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studygroup_message_appends_total",
			Help: "Message appends by outcome (created or replayed).",
		},
		[]string{"outcome"},
	)
	reactionTogglesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studygroup_reaction_toggles_total",
			Help: "Reaction toggles by symbol.",
		},
		[]string{"emoji"},
	)
	assistantCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studygroup_assistant_calls_total",
			Help: "Assistant model calls by result.",
		},
		[]string{"result"},
	)
	modelCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studygroup_model_call_duration_seconds",
			Help:    "Generative model call latencies in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"kind"},
	)
	groupEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studygroup_group_events_total",
			Help: "Group lifecycle events.",
		},
		[]string{"event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "studygroup_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		grpcServerHandledTotal,
		messageAppendsTotal,
		reactionTogglesTotal,
		assistantCallsTotal,
		modelCallDuration,
		groupEventsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// GRPCServerMetricsUnaryInterceptor counts handled unary calls by service,
// method and status code.
func GRPCServerMetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		service, method := splitFullMethod(info.FullMethod)
		grpcServerHandledTotal.WithLabelValues(service, method, status.Code(err).String()).Inc()
		return resp, err
	}
}

// splitFullMethod splits "/pkg.Service/Method".
func splitFullMethod(fullMethod string) (string, string) {
	service, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok || service == "" || method == "" {
		return "unknown", "unknown"
	}
	return service, method
}

// IncMessageAppend records an append; created is false for an id replay.
func IncMessageAppend(created bool) {
	outcome := "replayed"
	if created {
		outcome = "created"
	}
	messageAppendsTotal.WithLabelValues(outcome).Inc()
}

// IncReactionToggle counts a toggle; symbols outside the palette share one label.
func IncReactionToggle(emoji string) {
	switch emoji {
	case "👍", "❤️", "😂", "😮":
	default:
		emoji = "other"
	}
	reactionTogglesTotal.WithLabelValues(emoji).Inc()
}

func IncAssistantCall(result string) {
	assistantCallsTotal.WithLabelValues(result).Inc()
}

func ObserveModelCall(kind string, started time.Time) {
	modelCallDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

func IncGroupEvent(event string) {
	groupEventsTotal.WithLabelValues(event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
