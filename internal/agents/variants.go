package agents

import (
	domain "meridian/internal/domain/analysis"
)

// VariantConstructor builds one specialist variant
type VariantConstructor func(opts SpecialistOptions) *Analyst

// Variants is the closed set of specialist variants, one per agent type.
// NewDefaultRegistry registers exactly these.
var Variants = map[domain.AgentType]VariantConstructor{
	domain.AgentEquity:         NewEquityAnalyst,
	domain.AgentCredit:         NewCreditAnalyst,
	domain.AgentFixedIncome:    NewFixedIncomeAnalyst,
	domain.AgentDerivatives:    NewDerivativesAnalyst,
	domain.AgentQuantRisk:      NewQuantRiskAnalyst,
	domain.AgentMacro:          NewMacroAnalyst,
	domain.AgentESGRegulatory:  NewESGRegulatoryAnalyst,
	domain.AgentPrivateMarkets: NewPrivateMarketsAnalyst,
}

func NewEquityAnalyst(opts SpecialistOptions) *Analyst {
	return NewAnalyst(DefaultAgentConfigs[domain.AgentEquity], opts)
}

func NewCreditAnalyst(opts SpecialistOptions) *Analyst {
	return NewAnalyst(DefaultAgentConfigs[domain.AgentCredit], opts)
}

func NewFixedIncomeAnalyst(opts SpecialistOptions) *Analyst {
	return NewAnalyst(DefaultAgentConfigs[domain.AgentFixedIncome], opts)
}

func NewDerivativesAnalyst(opts SpecialistOptions) *Analyst {
	return NewAnalyst(DefaultAgentConfigs[domain.AgentDerivatives], opts)
}

func NewQuantRiskAnalyst(opts SpecialistOptions) *Analyst {
	return NewAnalyst(DefaultAgentConfigs[domain.AgentQuantRisk], opts)
}

func NewMacroAnalyst(opts SpecialistOptions) *Analyst {
	return NewAnalyst(DefaultAgentConfigs[domain.AgentMacro], opts)
}

func NewESGRegulatoryAnalyst(opts SpecialistOptions) *Analyst {
	return NewAnalyst(DefaultAgentConfigs[domain.AgentESGRegulatory], opts)
}

func NewPrivateMarketsAnalyst(opts SpecialistOptions) *Analyst {
	return NewAnalyst(DefaultAgentConfigs[domain.AgentPrivateMarkets], opts)
}
