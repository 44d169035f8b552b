package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 推理调用计数，按上下文标签与结果区分（重试的每一次尝试都计数）
	InferenceAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inference_attempts_total",
			Help: "Inference service call attempts by context label and outcome",
		},
		[]string{"label", "outcome"},
	)

	// 流水线运行结果计数
	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Assignment processing runs by terminal outcome",
		},
		[]string{"outcome"},
	)

	// 题目处理计数（成功/失败/中止回退）
	QuestionsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questions_processed_total",
			Help: "Questions handled by the answer generation scheduler",
		},
		[]string{"result"},
	)

	// 聊天限流拒绝计数，按作用域区分
	ChatRateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_rate_limited_total",
			Help: "Chat messages rejected by the sliding-window limiter",
		},
		[]string{"scope"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(InferenceAttempts)
	prometheus.MustRegister(PipelineRuns)
	prometheus.MustRegister(QuestionsProcessed)
	prometheus.MustRegister(ChatRateLimited)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
