package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domain "meridian/internal/domain/analysis"
	"meridian/pkg/errors"
)

// stepBudget is the planning estimate for one dependency level
const stepBudget = 45 * time.Second

// riskOverlayComplexity is the complexity from which quant risk waits for every other specialist
const riskOverlayComplexity = 0.5

var domainAgents = map[domain.Domain]domain.AgentType{
	domain.DomainEquity:         domain.AgentEquity,
	domain.DomainCredit:         domain.AgentCredit,
	domain.DomainFixedIncome:    domain.AgentFixedIncome,
	domain.DomainDerivatives:    domain.AgentDerivatives,
	domain.DomainQuantRisk:      domain.AgentQuantRisk,
	domain.DomainMacro:          domain.AgentMacro,
	domain.DomainESGRegulatory:  domain.AgentESGRegulatory,
	domain.DomainPrivateMarkets: domain.AgentPrivateMarkets,
}

// AgentForDomain looks up the specialist owning a domain
func AgentForDomain(d domain.Domain) (domain.AgentType, bool) {
	a, ok := domainAgents[d]
	return a, ok
}

// DomainForAgent is the inverse of AgentForDomain
func DomainForAgent(a domain.AgentType) (domain.Domain, bool) {
	for d, agent := range domainAgents {
		if agent == a {
			return d, true
		}
	}
	return "", false
}

// buildPlan decomposes an intent into steps.
//
// Macro steps come first and every other step depends on them. With complexity
// at or above riskOverlayComplexity, the quant risk step goes last and depends on all
// other steps. Dependencies therefore always point to earlier steps.
func buildPlan(query string, intent domain.QueryIntent) (*domain.ResearchPlan, error) {
	if len(intent.Domains) == 0 {
		return nil, errors.Wrap(errors.ErrPlanning, "intent has no domains")
	}

	var macro, middle []domain.Domain
	var overlay *domain.Domain
	for _, d := range dedupeDomains(intent.Domains) {
		switch {
		case d == domain.DomainMacro:
			macro = append(macro, d)
		case d == domain.DomainQuantRisk && intent.Complexity >= riskOverlayComplexity:
			d := d
			overlay = &d
		default:
			middle = append(middle, d)
		}
	}
	// A risk overlay with nothing to overlay is an ordinary step
	if overlay != nil && len(middle) == 0 {
		middle = append(middle, *overlay)
		overlay = nil
	}

	steps := make([]domain.PlanStep, 0, len(intent.Domains))
	var macroIDs, middleIDs []uuid.UUID

	for _, d := range macro {
		s := newStep(query, d, nil)
		macroIDs = append(macroIDs, s.ID)
		steps = append(steps, s)
	}
	for _, d := range middle {
		s := newStep(query, d, macroIDs)
		middleIDs = append(middleIDs, s.ID)
		steps = append(steps, s)
	}
	if overlay != nil {
		deps := append(append([]uuid.UUID{}, macroIDs...), middleIDs...)
		steps = append(steps, newStep(query, *overlay, deps))
	}

	levels := 0
	if len(macro) > 0 {
		levels++
	}
	if len(middle) > 0 {
		levels++
	}
	if overlay != nil {
		levels++
	}

	return &domain.ResearchPlan{
		ID:                uuid.New(),
		Steps:             steps,
		EstimatedDuration: time.Duration(levels) * stepBudget,
		Strategy:          selectStrategy(intent),
		CreatedAt:         time.Now(),
	}, nil
}

func newStep(query string, d domain.Domain, deps []uuid.UUID) domain.PlanStep {
	return domain.PlanStep{
		ID:          uuid.New(),
		Description: fmt.Sprintf("%s analysis: %s", strings.ReplaceAll(string(d), "_", " "), strings.TrimSpace(query)),
		Domains:     []domain.Domain{d},
		DependsOn:   append([]uuid.UUID(nil), deps...),
	}
}

// selectStrategy picks the aggregation strategy from the shape of the intent
func selectStrategy(intent domain.QueryIntent) domain.AggregationStrategy {
	n := len(intent.Domains)
	switch {
	case intent.Comparison:
		return domain.StrategyComparison
	case intent.Recommendation && n >= 3:
		return domain.StrategyMajorityVote
	case intent.Recommendation && n == 2:
		return domain.StrategyComparison
	case intent.Numeric && n >= 2:
		return domain.StrategyWeightedConsensus
	default:
		return domain.StrategySynthesis
	}
}

func dedupeDomains(in []domain.Domain) []domain.Domain {
	seen := make(map[domain.Domain]bool, len(in))
	out := make([]domain.Domain, 0, len(in))
	for _, d := range in {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}
