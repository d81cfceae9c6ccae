package agents

import (
	domain "meridian/internal/domain/analysis"
)

// AgentConfig captures the static settings of a specialist variant.
type AgentConfig struct {
	Type         domain.AgentType
	Name         string
	Tools        []ToolSpec
	DefaultTools []string // used when no tool matches the task
	MaxToolCalls int
}

// DefaultAgentConfigs defines the eight specialist variants.
var DefaultAgentConfigs = map[domain.AgentType]AgentConfig{
	domain.AgentEquity: {
		Type:         domain.AgentEquity,
		Name:         "EquityAnalyst",
		Tools:        ToolCatalog[domain.AgentEquity],
		DefaultTools: []string{"dcf_model", "wacc_calculator"},
		MaxToolCalls: 4,
	},
	domain.AgentCredit: {
		Type:         domain.AgentCredit,
		Name:         "CreditAnalyst",
		Tools:        ToolCatalog[domain.AgentCredit],
		DefaultTools: []string{"default_probability", "spread_analysis"},
		MaxToolCalls: 4,
	},
	domain.AgentFixedIncome: {
		Type:         domain.AgentFixedIncome,
		Name:         "FixedIncomeAnalyst",
		Tools:        ToolCatalog[domain.AgentFixedIncome],
		DefaultTools: []string{"bond_pricer", "duration_convexity"},
		MaxToolCalls: 3,
	},
	domain.AgentDerivatives: {
		Type:         domain.AgentDerivatives,
		Name:         "DerivativesAnalyst",
		Tools:        ToolCatalog[domain.AgentDerivatives],
		DefaultTools: []string{"black_scholes", "greeks_calculator"},
		MaxToolCalls: 3,
	},
	domain.AgentQuantRisk: {
		Type:         domain.AgentQuantRisk,
		Name:         "QuantRiskAnalyst",
		Tools:        ToolCatalog[domain.AgentQuantRisk],
		DefaultTools: []string{"value_at_risk", "stress_test"},
		MaxToolCalls: 4,
	},
	domain.AgentMacro: {
		Type:         domain.AgentMacro,
		Name:         "MacroAnalyst",
		Tools:        ToolCatalog[domain.AgentMacro],
		DefaultTools: []string{"macro_indicators", "rate_outlook"},
		MaxToolCalls: 3,
	},
	domain.AgentESGRegulatory: {
		Type:         domain.AgentESGRegulatory,
		Name:         "ESGRegulatoryAnalyst",
		Tools:        ToolCatalog[domain.AgentESGRegulatory],
		DefaultTools: []string{"esg_score", "regulatory_screen"},
		MaxToolCalls: 3,
	},
	domain.AgentPrivateMarkets: {
		Type:         domain.AgentPrivateMarkets,
		Name:         "PrivateMarketsAnalyst",
		Tools:        ToolCatalog[domain.AgentPrivateMarkets],
		DefaultTools: []string{"lbo_model", "irr_calculator"},
		MaxToolCalls: 3,
	},
}
