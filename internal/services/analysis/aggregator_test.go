package analysis

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "meridian/internal/domain/analysis"
)

func result(agent domain.AgentType, confidence float64, findings ...domain.Finding) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		ID:         uuid.New(),
		AgentType:  agent,
		StepID:     uuid.New(),
		Confidence: confidence,
		Findings:   findings,
	}
}

func finding(statement string) domain.Finding {
	return domain.Finding{Statement: statement, Confidence: 0.7, Methodology: "test"}
}

func metricFinding(metric string, value float64) domain.Finding {
	return domain.Finding{Statement: metric, Metric: metric, Value: &value, Confidence: 0.7}
}

func vote(rec string) domain.Finding {
	return domain.Finding{Statement: "view", Recommendation: rec, Confidence: 0.7}
}

func TestAggregate_Synthesis(t *testing.T) {
	results := []*domain.AnalysisResult{
		result(domain.AgentMacro, 0.8, finding("a"), finding("b"), finding("c")),
		result(domain.AgentEquity, 0.5, finding("d")),
	}

	agg := aggregate(domain.StrategySynthesis, results, 0.1)

	assert.InDelta(t, 0.725, agg.Confidence.Value, 1e-9)
	require.Len(t, agg.Findings, 4)
	assert.Equal(t, "a", agg.Findings[0].Statement, "findings keep plan order")
	assert.Equal(t, "d", agg.Findings[3].Statement)
	assert.Contains(t, agg.Report, "## macro_analyst")
}

func TestAggregate_SynthesisWithoutFindings(t *testing.T) {
	results := []*domain.AnalysisResult{
		result(domain.AgentMacro, 0.8),
		result(domain.AgentEquity, 0.4),
	}

	agg := aggregate(domain.StrategySynthesis, results, 0.1)
	assert.InDelta(t, 0.6, agg.Confidence.Value, 1e-9)
}

func TestAggregate_Comparison(t *testing.T) {
	results := []*domain.AnalysisResult{
		result(domain.AgentEquity, 0.9, metricFinding("fair_value", 100), metricFinding("growth", 0.05)),
		result(domain.AgentCredit, 0.7, metricFinding("fair_value", 120), metricFinding("growth", 0.0502)),
	}

	agg := aggregate(domain.StrategyComparison, results, 0.1)

	assert.InDelta(t, 0.7, agg.Confidence.Value, 1e-9)
	require.Len(t, agg.Divergences, 1)
	d := agg.Divergences[0]
	assert.Equal(t, "fair_value", d.Metric)
	assert.InDelta(t, 20.0/110.0, d.Spread, 1e-9)
	assert.Equal(t, 100.0, d.Values[domain.AgentEquity])
	assert.Contains(t, agg.Report, "Divergence on fair_value")
}

func TestAggregate_ComparisonWithinTolerance(t *testing.T) {
	results := []*domain.AnalysisResult{
		result(domain.AgentEquity, 0.9, metricFinding("fair_value", 100)),
		result(domain.AgentCredit, 0.8, metricFinding("fair_value", 105)),
	}

	agg := aggregate(domain.StrategyComparison, results, 0.1)
	assert.Empty(t, agg.Divergences)
}

func TestAggregate_WeightedConsensus(t *testing.T) {
	results := []*domain.AnalysisResult{
		result(domain.AgentEquity, 0.9, metricFinding("fair_value", 100)),
		result(domain.AgentCredit, 0.6, metricFinding("fair_value", 80)),
	}

	agg := aggregate(domain.StrategyWeightedConsensus, results, 0.1)

	// (0.81 + 0.36) / 1.5
	assert.InDelta(t, 0.78, agg.Confidence.Value, 1e-9)
	assert.InDelta(t, 92.0, agg.Consensus["fair_value"], 1e-9)
}

func TestAggregate_MajorityVote(t *testing.T) {
	results := []*domain.AnalysisResult{
		result(domain.AgentEquity, 0.8, vote("Buy")),
		result(domain.AgentCredit, 0.6, vote("buy")),
		result(domain.AgentMacro, 0.9, vote("sell")),
		result(domain.AgentQuantRisk, 0.7, finding("no view")),
	}

	agg := aggregate(domain.StrategyMajorityVote, results, 0.1)

	assert.Equal(t, "buy", agg.Winner)
	assert.Equal(t, 2, agg.Votes["buy"])
	assert.InDelta(t, 0.6667, agg.Confidence.Value, 1e-9)
}

func TestAggregate_MajorityVoteTieBreak(t *testing.T) {
	results := []*domain.AnalysisResult{
		result(domain.AgentEquity, 0.5, vote("buy")),
		result(domain.AgentCredit, 0.9, vote("sell")),
	}

	agg := aggregate(domain.StrategyMajorityVote, results, 0.1)
	assert.Equal(t, "sell", agg.Winner)
	assert.InDelta(t, 0.5, agg.Confidence.Value, 1e-9)
}

func TestAggregate_MajorityVoteWithoutVoters(t *testing.T) {
	agg := aggregate(domain.StrategyMajorityVote, []*domain.AnalysisResult{result(domain.AgentEquity, 0.9, finding("x"))}, 0.1)
	assert.Empty(t, agg.Winner)
	assert.Zero(t, agg.Confidence.Value)
}

func TestAggregate_NoResults(t *testing.T) {
	agg := aggregate(domain.StrategySynthesis, nil, 0.1)
	assert.Zero(t, agg.Confidence.Value)
	assert.NotEmpty(t, agg.Report)
}

func TestBelowThreshold(t *testing.T) {
	assert.True(t, belowThreshold(0.59, 0.6))
	assert.False(t, belowThreshold(0.6, 0.6))
	assert.False(t, belowThreshold(0.61, 0.6))
	assert.False(t, belowThreshold(0.1+0.2+0.3, 0.6))
}

func TestRoundConfidence(t *testing.T) {
	assert.Equal(t, 0.6667, roundConfidence(2.0/3.0))
	assert.Equal(t, 0.0, roundConfidence(-0.2))
	assert.Equal(t, 1.0, roundConfidence(1.3))
}
