package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Request metrics
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_analyses_total",
			Help: "Total number of analysis requests by terminal status",
		},
		[]string{"status", "strategy"}, // status: completed|escalated|rejected
	)

	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meridian_analysis_duration_seconds",
			Help:    "End-to-end analysis duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	AggregatedConfidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meridian_aggregated_confidence",
			Help:    "Aggregated confidence of finished analyses",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"strategy"},
	)

	// Specialist metrics
	AssignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_assignments_total",
			Help: "Total number of specialist assignments by final status",
		},
		[]string{"agent_type", "status"}, // status: completed|failed|skipped
	)

	AssignmentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meridian_assignment_duration_seconds",
			Help:    "Specialist execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"agent_type"},
	)

	// Tool metrics
	ToolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_tool_executions_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "status"}, // status: success|error
	)

	ToolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meridian_tool_latency_seconds",
			Help:    "Tool execution latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool"},
	)

	ToolServiceRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_tool_service_retries_total",
			Help: "Retries issued against the tool service",
		},
		[]string{"tool"},
	)

	// Learning metrics
	FeedbackScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meridian_feedback_score",
			Help:    "Quality feedback scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"source"}, // source: automated|external
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_kafka_messages_total",
			Help: "Kafka messages consumed",
		},
		[]string{"topic", "status"},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(AnalysesTotal)
	prometheus.MustRegister(AnalysisDuration)
	prometheus.MustRegister(AggregatedConfidence)

	prometheus.MustRegister(AssignmentsTotal)
	prometheus.MustRegister(AssignmentDuration)

	prometheus.MustRegister(ToolExecutions)
	prometheus.MustRegister(ToolLatency)
	prometheus.MustRegister(ToolServiceRetries)

	prometheus.MustRegister(FeedbackScore)

	prometheus.MustRegister(KafkaMessages)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAnalysis records a finished analysis
func RecordAnalysis(status, strategy string, confidence float64, duration time.Duration) {
	AnalysesTotal.WithLabelValues(status, strategy).Inc()
	AnalysisDuration.WithLabelValues(status).Observe(duration.Seconds())
	if strategy != "" {
		AggregatedConfidence.WithLabelValues(strategy).Observe(confidence)
	}
}

// RecordAssignment records a settled specialist assignment
func RecordAssignment(agentType, status string, duration time.Duration) {
	AssignmentsTotal.WithLabelValues(agentType, status).Inc()
	if duration > 0 {
		AssignmentDuration.WithLabelValues(agentType).Observe(duration.Seconds())
	}
}

// RecordToolExecution records a tool execution
func RecordToolExecution(tool string, latency time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	ToolExecutions.WithLabelValues(tool, status).Inc()
	ToolLatency.WithLabelValues(tool).Observe(latency.Seconds())
}

// RecordToolRetry records a retried tool-service call
func RecordToolRetry(tool string) {
	ToolServiceRetries.WithLabelValues(tool).Inc()
}

// RecordFeedback records a feedback score
func RecordFeedback(score float64, automated bool) {
	source := "external"
	if automated {
		source = "automated"
	}
	FeedbackScore.WithLabelValues(source).Observe(score)
}

// RecordKafkaMessage records a consumed message
func RecordKafkaMessage(topic string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	KafkaMessages.WithLabelValues(topic, status).Inc()
}
