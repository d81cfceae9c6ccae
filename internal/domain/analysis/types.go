package analysis

// AgentType enumerates the specialist variants.
type AgentType string

const (
	AgentEquity         AgentType = "equity_analyst"
	AgentCredit         AgentType = "credit_analyst"
	AgentFixedIncome    AgentType = "fixed_income_analyst"
	AgentDerivatives    AgentType = "derivatives_analyst"
	AgentQuantRisk      AgentType = "quant_risk_analyst"
	AgentMacro          AgentType = "macro_analyst"
	AgentESGRegulatory  AgentType = "esg_regulatory_analyst"
	AgentPrivateMarkets AgentType = "private_markets_analyst"
)

// AllAgentTypes lists every specialist variant in a stable order
func AllAgentTypes() []AgentType {
	return []AgentType{
		AgentEquity, AgentCredit, AgentFixedIncome, AgentDerivatives,
		AgentQuantRisk, AgentMacro, AgentESGRegulatory, AgentPrivateMarkets,
	}
}

func (t AgentType) String() string { return string(t) }

// Domain is an analytical area a query can touch
type Domain string

const (
	DomainEquity         Domain = "equity"
	DomainCredit         Domain = "credit"
	DomainFixedIncome    Domain = "fixed_income"
	DomainDerivatives    Domain = "derivatives"
	DomainQuantRisk      Domain = "quant_risk"
	DomainMacro          Domain = "macro"
	DomainESGRegulatory  Domain = "esg_regulatory"
	DomainPrivateMarkets Domain = "private_markets"
)

// AllDomains lists every domain in a stable order
func AllDomains() []Domain {
	return []Domain{
		DomainEquity, DomainCredit, DomainFixedIncome, DomainDerivatives,
		DomainQuantRisk, DomainMacro, DomainESGRegulatory, DomainPrivateMarkets,
	}
}

// Priority of an analysis request
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid checks if priority is valid
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// AggregationStrategy selects how results are merged
type AggregationStrategy string

const (
	StrategySynthesis         AggregationStrategy = "synthesis"
	StrategyComparison        AggregationStrategy = "comparison"
	StrategyWeightedConsensus AggregationStrategy = "weighted_consensus"
	StrategyMajorityVote      AggregationStrategy = "majority_vote"
)

// Valid checks if strategy is valid
func (s AggregationStrategy) Valid() bool {
	switch s {
	case StrategySynthesis, StrategyComparison, StrategyWeightedConsensus, StrategyMajorityVote:
		return true
	}
	return false
}
