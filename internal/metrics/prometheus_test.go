package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"meridian/pkg/errors"
)

func TestRecordToolExecution(t *testing.T) {
	before := testutil.ToFloat64(ToolExecutions.WithLabelValues("dcf_model", "error"))
	RecordToolExecution("dcf_model", 50*time.Millisecond, errors.ErrTimeout)
	after := testutil.ToFloat64(ToolExecutions.WithLabelValues("dcf_model", "error"))

	assert.Equal(t, before+1, after)
}

func TestRecordAnalysis(t *testing.T) {
	before := testutil.ToFloat64(AnalysesTotal.WithLabelValues("escalated", "comparison"))
	RecordAnalysis("escalated", "comparison", 0.42, time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(AnalysesTotal.WithLabelValues("escalated", "comparison")))
}

func TestCustomCollector_NoStores(t *testing.T) {
	c := NewCustomCollector(nil, nil, nil)
	assert.Equal(t, 0, testutil.CollectAndCount(c))
}
