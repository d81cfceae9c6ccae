package reasoning

import "strings"

// TaskType groups patterns by the kind of analysis they served
type TaskType string

const (
	TaskValuation             TaskType = "valuation"
	TaskCreditAssessment      TaskType = "credit_assessment"
	TaskRiskAnalysis          TaskType = "risk_analysis"
	TaskMacroResearch         TaskType = "macro_research"
	TaskESGReview             TaskType = "esg_review"
	TaskDealAnalysis          TaskType = "deal_analysis"
	TaskPortfolioConstruction TaskType = "portfolio_construction"
	TaskRegulatoryCheck       TaskType = "regulatory_check"
)

var taskTypeRules = []struct {
	match    func(agentType string) bool
	taskType TaskType
}{
	{contains("equity"), TaskValuation},
	{contains("credit"), TaskCreditAssessment},
	{contains("risk", "quant"), TaskRiskAnalysis},
	{contains("macro"), TaskMacroResearch},
	{contains("esg"), TaskESGReview},
	{func(a string) bool { return strings.Contains(a, "private") || hasToken(a, "pe") }, TaskDealAnalysis},
	{contains("portfolio"), TaskPortfolioConstruction},
	{contains("regulatory"), TaskRegulatoryCheck},
}

// InferTaskType derives a task type from an agent type name. First matching rule wins.
func InferTaskType(agentType string) TaskType {
	a := strings.ToLower(agentType)
	for _, rule := range taskTypeRules {
		if rule.match(a) {
			return rule.taskType
		}
	}
	return TaskValuation
}

func contains(subs ...string) func(string) bool {
	return func(a string) bool {
		for _, s := range subs {
			if strings.Contains(a, s) {
				return true
			}
		}
		return false
	}
}

// "pe" is matched as a whole token so that e.g. "speculative" does not count
func hasToken(a, token string) bool {
	for _, part := range strings.FieldsFunc(a, func(r rune) bool { return r == '_' || r == '-' || r == ' ' }) {
		if part == token {
			return true
		}
	}
	return false
}
