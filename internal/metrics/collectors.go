package metrics

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"meridian/pkg/logger"
)

// CustomCollector reports learning and tool-usage gauges read from storage at scrape time.
// Either store may be nil; its metrics are then omitted.
type CustomCollector struct {
	log        *logger.Logger
	postgres   *sqlx.DB
	clickhouse driver.Conn

	learnedPatterns *prometheus.Desc
	patternReward   *prometheus.Desc
	toolCallsHour   *prometheus.Desc
}

// NewCustomCollector creates a new custom metrics collector
func NewCustomCollector(log *logger.Logger, postgres *sqlx.DB, clickhouse driver.Conn) *CustomCollector {
	return &CustomCollector{
		log:        log,
		postgres:   postgres,
		clickhouse: clickhouse,

		learnedPatterns: prometheus.NewDesc(
			"meridian_learned_patterns",
			"Number of learned tool patterns by task type",
			[]string{"task_type"}, nil,
		),
		patternReward: prometheus.NewDesc(
			"meridian_pattern_reward_avg",
			"Average reward score of learned patterns by task type",
			[]string{"task_type"}, nil,
		),
		toolCallsHour: prometheus.NewDesc(
			"meridian_tool_calls_last_hour",
			"Tool calls recorded in the last hour",
			[]string{"tool", "status"}, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *CustomCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.learnedPatterns
	ch <- c.patternReward
	ch <- c.toolCallsHour
}

// Collect implements prometheus.Collector
func (c *CustomCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.postgres != nil {
		c.collectPatternStats(ctx, ch)
	}
	if c.clickhouse != nil {
		c.collectToolUsage(ctx, ch)
	}
}

func (c *CustomCollector) collectPatternStats(ctx context.Context, ch chan<- prometheus.Metric) {
	type patternStat struct {
		TaskType  string  `db:"task_type"`
		Count     int     `db:"count"`
		AvgReward float64 `db:"avg_reward"`
	}

	var stats []patternStat
	err := c.postgres.SelectContext(ctx, &stats, `
		SELECT task_type, COUNT(*) AS count, AVG(reward_score) AS avg_reward
		FROM learning_patterns
		GROUP BY task_type
	`)
	if err != nil {
		c.log.Warnw("Failed to collect pattern stats", "error", err)
		return
	}

	for _, stat := range stats {
		ch <- prometheus.MustNewConstMetric(c.learnedPatterns, prometheus.GaugeValue, float64(stat.Count), stat.TaskType)
		ch <- prometheus.MustNewConstMetric(c.patternReward, prometheus.GaugeValue, stat.AvgReward, stat.TaskType)
	}
}

func (c *CustomCollector) collectToolUsage(ctx context.Context, ch chan<- prometheus.Metric) {
	type toolStat struct {
		ToolName string `ch:"tool_name"`
		Success  bool   `ch:"success"`
		Count    uint64 `ch:"count"`
	}

	var stats []toolStat
	err := c.clickhouse.Select(ctx, &stats, `
		SELECT tool_name, success, count() AS count
		FROM tool_usage_events
		WHERE timestamp > now() - INTERVAL 1 HOUR
		GROUP BY tool_name, success
	`)
	if err != nil {
		c.log.Warnw("Failed to collect tool usage", "error", err)
		return
	}

	for _, stat := range stats {
		status := "success"
		if !stat.Success {
			status = "error"
		}
		ch <- prometheus.MustNewConstMetric(c.toolCallsHour, prometheus.GaugeValue, float64(stat.Count), stat.ToolName, status)
	}
}
