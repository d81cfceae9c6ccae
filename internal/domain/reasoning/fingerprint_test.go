package reasoning

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_OrderIndependent(t *testing.T) {
	a := Fingerprint([]string{"wacc_calculator", "dcf_model"})
	b := Fingerprint([]string{"dcf_model", "wacc_calculator"})
	c := Fingerprint([]string{"dcf_model", "wacc_calculator", "dcf_model"})

	assert.Equal(t, a, b)
	assert.Equal(t, a, c, "duplicates do not change the set")
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, Fingerprint([]string{"dcf_model"}))
}

func TestUniqueSorted(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, UniqueSorted([]string{"c", "a", "", "b", "a"}))
	assert.Empty(t, UniqueSorted(nil))
}

func TestInferTaskType(t *testing.T) {
	tests := []struct {
		agentType string
		want      TaskType
	}{
		{"equity_analyst", TaskValuation},
		{"credit_analyst", TaskCreditAssessment},
		{"quant_risk_analyst", TaskRiskAnalysis},
		{"market_risk_desk", TaskRiskAnalysis},
		{"macro_analyst", TaskMacroResearch},
		{"esg_regulatory_analyst", TaskESGReview},
		{"private_markets_analyst", TaskDealAnalysis},
		{"pe_analyst", TaskDealAnalysis},
		{"portfolio_manager", TaskPortfolioConstruction},
		{"regulatory_analyst", TaskRegulatoryCheck},
		{"fixed_income_analyst", TaskValuation},
		{"speculative_analyst", TaskValuation},
		{"", TaskValuation},
	}

	for _, tt := range tests {
		t.Run(tt.agentType, func(t *testing.T) {
			assert.Equal(t, tt.want, InferTaskType(tt.agentType))
		})
	}
}

func TestTrace_ToolNames(t *testing.T) {
	trace := &Trace{Steps: []Step{
		{Phase: PhaseThink, Content: "plan"},
		{Phase: PhaseAct, ToolCalls: []string{"dcf_model"}},
		{Phase: PhaseObserve, ToolCalls: []string{"ignored"}},
		{Phase: PhaseAct, ToolCalls: []string{"wacc_calculator"}},
	}}
	assert.Equal(t, []string{"dcf_model", "wacc_calculator"}, trace.ToolNames())
}

func TestUpdateReward(t *testing.T) {
	assert.Equal(t, 0.65, UpdateReward(0.5, 1.0))
	assert.Equal(t, 0.35, UpdateReward(0.5, 0.0))
	assert.Equal(t, 0.5, UpdateReward(0.5, 0.5))
	assert.Equal(t, 0.755, UpdateReward(0.65, 1.0))
}

func TestKeyedMutex_SerializesPerKey(t *testing.T) {
	k := newKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("fp")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Empty(t, k.locks, "idle keys are released")
}
