package agents

import (
	"strings"

	domain "meridian/internal/domain/analysis"
)

// ToolSpec describes a tool a specialist may call
type ToolSpec struct {
	Name        string
	Keywords    []string // lower-case task fragments that select the tool
	Methodology string
}

// ToolCatalog lists the tools each specialist variant may call.
var ToolCatalog = map[domain.AgentType][]ToolSpec{
	domain.AgentEquity: {
		{Name: "dcf_model", Keywords: []string{"dcf", "valuation", "fair value", "intrinsic", "value"}, Methodology: "discounted cash flow"},
		{Name: "wacc_calculator", Keywords: []string{"wacc", "cost of capital", "discount rate"}, Methodology: "weighted average cost of capital"},
		{Name: "comparable_multiples", Keywords: []string{"multiple", "p/e", "peer", "comps", "compare"}, Methodology: "trading comparables"},
		{Name: "earnings_quality", Keywords: []string{"earnings", "accrual", "margin"}, Methodology: "earnings quality screen"},
		{Name: "dividend_discount", Keywords: []string{"dividend", "payout"}, Methodology: "dividend discount model"},
	},
	domain.AgentCredit: {
		{Name: "default_probability", Keywords: []string{"default", "pd", "bankrupt"}, Methodology: "structural default model"},
		{Name: "spread_analysis", Keywords: []string{"spread", "high yield"}, Methodology: "credit spread decomposition"},
		{Name: "leverage_ratios", Keywords: []string{"leverage", "debt", "coverage"}, Methodology: "leverage and coverage ratios"},
		{Name: "rating_migration", Keywords: []string{"rating", "downgrade", "upgrade"}, Methodology: "rating transition matrix"},
		{Name: "covenant_review", Keywords: []string{"covenant", "loan"}, Methodology: "covenant headroom analysis"},
	},
	domain.AgentFixedIncome: {
		{Name: "bond_pricer", Keywords: []string{"bond", "coupon", "price"}, Methodology: "cash flow discounting on the curve"},
		{Name: "yield_curve", Keywords: []string{"yield curve", "curve", "steepen", "flatten"}, Methodology: "Nelson-Siegel curve fit"},
		{Name: "duration_convexity", Keywords: []string{"duration", "convexity", "rate"}, Methodology: "modified duration and convexity"},
		{Name: "treasury_spread", Keywords: []string{"treasur", "gilt", "sovereign"}, Methodology: "spread to benchmark"},
	},
	domain.AgentDerivatives: {
		{Name: "black_scholes", Keywords: []string{"option", "call", "put", "strike"}, Methodology: "Black-Scholes pricing"},
		{Name: "greeks_calculator", Keywords: []string{"greek", "delta", "gamma", "vega", "hedg"}, Methodology: "analytic greeks"},
		{Name: "implied_volatility", Keywords: []string{"volatility", "implied", "skew"}, Methodology: "implied volatility surface"},
		{Name: "swap_valuation", Keywords: []string{"swap", "future"}, Methodology: "swap curve valuation"},
	},
	domain.AgentQuantRisk: {
		{Name: "value_at_risk", Keywords: []string{"var", "value at risk", "tail", "risk"}, Methodology: "historical simulation VaR"},
		{Name: "stress_test", Keywords: []string{"stress", "scenario", "shock"}, Methodology: "scenario stress testing"},
		{Name: "correlation_matrix", Keywords: []string{"correlation", "diversif", "contagion"}, Methodology: "rolling correlation matrix"},
		{Name: "drawdown_analysis", Keywords: []string{"drawdown", "loss"}, Methodology: "maximum drawdown analysis"},
	},
	domain.AgentMacro: {
		{Name: "macro_indicators", Keywords: []string{"gdp", "inflation", "growth", "recession", "econom"}, Methodology: "leading indicator composite"},
		{Name: "rate_outlook", Keywords: []string{"rate", "central bank", "fed", "ecb", "monetary"}, Methodology: "policy rate path model"},
		{Name: "fx_analysis", Keywords: []string{"fx", "currenc", "dollar"}, Methodology: "purchasing power and carry"},
	},
	domain.AgentESGRegulatory: {
		{Name: "esg_score", Keywords: []string{"esg", "governance", "sustainab"}, Methodology: "ESG factor scoring"},
		{Name: "carbon_exposure", Keywords: []string{"carbon", "climate", "emission"}, Methodology: "carbon intensity attribution"},
		{Name: "regulatory_screen", Keywords: []string{"regulat", "complian", "sanction"}, Methodology: "regulatory rule screening"},
	},
	domain.AgentPrivateMarkets: {
		{Name: "lbo_model", Keywords: []string{"lbo", "buyout", "leverage"}, Methodology: "leveraged buyout model"},
		{Name: "irr_calculator", Keywords: []string{"irr", "return", "multiple"}, Methodology: "IRR and MOIC"},
		{Name: "deal_comps", Keywords: []string{"deal", "transaction", "acquisition", "m&a"}, Methodology: "precedent transactions"},
		{Name: "fund_performance", Keywords: []string{"fund", "vintage", "private equity"}, Methodology: "fund benchmark quartiles"},
	},
}

// ToolsForAgent returns the tool names a specialist may call, in catalog order.
func ToolsForAgent(agentType domain.AgentType) []string {
	specs := ToolCatalog[agentType]
	res := make([]string, len(specs))
	for i, s := range specs {
		res[i] = s.Name
	}
	return res
}

// ValidateToolAccess checks if an agent has access to a specific tool
func ValidateToolAccess(agentType domain.AgentType, toolName string) bool {
	_, ok := toolSpec(agentType, toolName)
	return ok
}

func toolSpec(agentType domain.AgentType, toolName string) (ToolSpec, bool) {
	for _, s := range ToolCatalog[agentType] {
		if s.Name == toolName {
			return s, true
		}
	}
	return ToolSpec{}, false
}

// matchTools returns the catalog tools whose keywords occur in task, in catalog order
func matchTools(cfg AgentConfig, task string) []string {
	t := strings.ToLower(task)
	var names []string
	for _, spec := range cfg.Tools {
		for _, kw := range spec.Keywords {
			if strings.Contains(t, kw) {
				names = append(names, spec.Name)
				break
			}
		}
	}
	return names
}
