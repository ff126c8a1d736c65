package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordBatch(t *testing.T) {
	before := testutil.ToFloat64(PaymentsProcessed.WithLabelValues("matched"))
	runsBefore := testutil.ToFloat64(BatchRunsTotal.WithLabelValues("completed"))

	RecordBatch("completed", 1.5, 3, 1, 0, 2, 1)

	assert.Equal(t, before+3, testutil.ToFloat64(PaymentsProcessed.WithLabelValues("matched")))
	assert.Equal(t, runsBefore+1, testutil.ToFloat64(BatchRunsTotal.WithLabelValues("completed")))
}

func TestRecordReviewDecision(t *testing.T) {
	before := testutil.ToFloat64(ReviewDecisions.WithLabelValues("approved", "manual"))
	RecordReviewDecision("approved", "manual")
	assert.Equal(t, before+1, testutil.ToFloat64(ReviewDecisions.WithLabelValues("approved", "manual")))
}
