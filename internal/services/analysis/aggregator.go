package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	domain "meridian/internal/domain/analysis"
)

// Aggregation is the merged outcome of a request's results
type Aggregation struct {
	Strategy    domain.AggregationStrategy
	Findings    []domain.Finding
	Report      string
	Confidence  domain.ConfidenceScore
	Divergences []Divergence       // comparison
	Consensus   map[string]float64 // weighted_consensus, by metric
	Votes       map[string]int     // majority_vote, by recommendation
	Winner      string             // majority_vote
	Escalated   bool
}

// Divergence flags a metric on which specialists disagree beyond tolerance
type Divergence struct {
	Metric string
	Values map[domain.AgentType]float64
	Spread float64 // (max-min) / |mean|
}

// aggregate merges results, which must already be in plan order
func aggregate(strategy domain.AggregationStrategy, results []*domain.AnalysisResult, tolerance float64) Aggregation {
	agg := Aggregation{Strategy: strategy}
	for _, r := range results {
		agg.Findings = append(agg.Findings, r.Findings...)
	}

	if len(results) == 0 {
		agg.Confidence = domain.ConfidenceScore{Value: 0, Justification: "no specialist produced a result"}
		agg.Report = "No specialist produced a result; the analysis needs review."
		return agg
	}

	var value float64
	var justification string

	switch strategy {
	case domain.StrategyComparison:
		agg.Divergences = divergences(results, tolerance)
		value = minConfidence(results)
		justification = fmt.Sprintf("minimum confidence across %d specialists; %d divergent metrics", len(results), len(agg.Divergences))

	case domain.StrategyWeightedConsensus:
		agg.Consensus = weightedConsensus(results)
		value = selfWeightedConfidence(results)
		justification = fmt.Sprintf("confidence-weighted consensus over %d metrics from %d specialists", len(agg.Consensus), len(results))

	case domain.StrategyMajorityVote:
		var voters int
		agg.Votes, agg.Winner, voters = majorityVote(results)
		if voters > 0 {
			value = float64(agg.Votes[agg.Winner]) / float64(voters)
			justification = fmt.Sprintf("%q supported by %d of %d voting specialists", agg.Winner, agg.Votes[agg.Winner], voters)
		} else {
			justification = "no specialist issued a recommendation"
		}

	default:
		value = countWeightedConfidence(results)
		justification = fmt.Sprintf("finding-weighted mean over %d specialists and %d findings", len(results), len(agg.Findings))
	}

	agg.Confidence = domain.ConfidenceScore{Value: roundConfidence(value), Justification: justification}
	agg.Report = renderReport(agg, results)
	return agg
}

// countWeightedConfidence weights each result's confidence by its number of findings
func countWeightedConfidence(results []*domain.AnalysisResult) float64 {
	var sum, weight float64
	for _, r := range results {
		n := float64(len(r.Findings))
		sum += n * r.Confidence
		weight += n
	}
	if weight == 0 {
		for _, r := range results {
			sum += r.Confidence
		}
		return sum / float64(len(results))
	}
	return sum / weight
}

func minConfidence(results []*domain.AnalysisResult) float64 {
	m := math.Inf(1)
	for _, r := range results {
		m = math.Min(m, r.Confidence)
	}
	return m
}

// selfWeightedConfidence is the confidence-weighted mean of confidences, Σc²/Σc
func selfWeightedConfidence(results []*domain.AnalysisResult) float64 {
	var num, den float64
	for _, r := range results {
		num += r.Confidence * r.Confidence
		den += r.Confidence
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// weightedConsensus averages each metric's values weighted by result confidence
func weightedConsensus(results []*domain.AnalysisResult) map[string]float64 {
	sums := map[string]float64{}
	weights := map[string]float64{}
	for _, r := range results {
		for _, f := range r.Findings {
			if f.Metric == "" || f.Value == nil {
				continue
			}
			sums[f.Metric] += r.Confidence * *f.Value
			weights[f.Metric] += r.Confidence
		}
	}

	out := make(map[string]float64, len(sums))
	for metric, w := range weights {
		if w > 0 {
			out[metric] = sums[metric] / w
		}
	}
	return out
}

// divergences compares each metric across agent types. The first value an agent type reports wins.
func divergences(results []*domain.AnalysisResult, tolerance float64) []Divergence {
	byMetric := map[string]map[domain.AgentType]float64{}
	for _, r := range results {
		for _, f := range r.Findings {
			if f.Metric == "" || f.Value == nil {
				continue
			}
			if byMetric[f.Metric] == nil {
				byMetric[f.Metric] = map[domain.AgentType]float64{}
			}
			if _, ok := byMetric[f.Metric][r.AgentType]; !ok {
				byMetric[f.Metric][r.AgentType] = *f.Value
			}
		}
	}

	var out []Divergence
	for metric, values := range byMetric {
		if len(values) < 2 {
			continue
		}
		lo, hi, sum := math.Inf(1), math.Inf(-1), 0.0
		for _, v := range values {
			lo, hi, sum = math.Min(lo, v), math.Max(hi, v), sum+v
		}
		mean := math.Abs(sum / float64(len(values)))
		var spread float64
		if mean > 0 {
			spread = (hi - lo) / mean
		} else if hi != lo {
			spread = math.Inf(1)
		}
		if spread > tolerance {
			out = append(out, Divergence{Metric: metric, Values: values, Spread: spread})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Metric < out[j].Metric })
	return out
}

// majorityVote counts each result's first recommendation. Ties go to the higher summed confidence.
func majorityVote(results []*domain.AnalysisResult) (map[string]int, string, int) {
	votes := map[string]int{}
	support := map[string]float64{}
	voters := 0

	for _, r := range results {
		for _, f := range r.Findings {
			rec := strings.ToLower(strings.TrimSpace(f.Recommendation))
			if rec == "" {
				continue
			}
			votes[rec]++
			support[rec] += r.Confidence
			voters++
			break
		}
	}

	candidates := make([]string, 0, len(votes))
	for rec := range votes {
		candidates = append(candidates, rec)
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if votes[a] != votes[b] {
			return votes[a] > votes[b]
		}
		if support[a] != support[b] {
			return support[a] > support[b]
		}
		return a < b
	})

	winner := ""
	if len(candidates) > 0 {
		winner = candidates[0]
	}
	return votes, winner, voters
}

// roundConfidence rounds to 4 decimals and clamps to [0,1]
func roundConfidence(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return decimal.NewFromFloat(v).Round(4).InexactFloat64()
}

// belowThreshold compares at the 4-decimal precision confidences are reported with
func belowThreshold(confidence, threshold float64) bool {
	c := decimal.NewFromFloat(confidence).Round(4)
	t := decimal.NewFromFloat(threshold).Round(4)
	return c.LessThan(t)
}

func renderReport(agg Aggregation, results []*domain.AnalysisResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Strategy: %s\nConfidence: %.4f (%s)\n", agg.Strategy, agg.Confidence.Value, agg.Confidence.Justification)

	switch agg.Strategy {
	case domain.StrategyMajorityVote:
		if agg.Winner != "" {
			fmt.Fprintf(&sb, "Recommendation: %s\n", agg.Winner)
		}
	case domain.StrategyWeightedConsensus:
		metrics := make([]string, 0, len(agg.Consensus))
		for m := range agg.Consensus {
			metrics = append(metrics, m)
		}
		sort.Strings(metrics)
		for _, m := range metrics {
			fmt.Fprintf(&sb, "Consensus %s: %.4f\n", m, agg.Consensus[m])
		}
	case domain.StrategyComparison:
		for _, d := range agg.Divergences {
			fmt.Fprintf(&sb, "Divergence on %s (spread %.2f):", d.Metric, d.Spread)
			agents := make([]string, 0, len(d.Values))
			for a := range d.Values {
				agents = append(agents, string(a))
			}
			sort.Strings(agents)
			for _, a := range agents {
				fmt.Fprintf(&sb, " %s=%.4f", a, d.Values[domain.AgentType(a)])
			}
			sb.WriteString("\n")
		}
	}

	for _, r := range results {
		fmt.Fprintf(&sb, "\n## %s (confidence %.2f)\n", r.AgentType, r.Confidence)
		if r.Summary != "" {
			sb.WriteString(r.Summary)
			sb.WriteString("\n")
		}
		for _, f := range r.Findings {
			fmt.Fprintf(&sb, "- %s [%.2f, %s]\n", f.Statement, f.Confidence, f.Methodology)
		}
	}
	return sb.String()
}
