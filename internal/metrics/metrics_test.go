package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveEstimation(t *testing.T) {
	okBefore := testutil.ToFloat64(EstimationRuns.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(EstimationRuns.WithLabelValues("error"))

	ObserveEstimation(time.Now(), nil)
	ObserveEstimation(time.Now(), errors.New("boom"))
	ObserveEstimation(time.Now(), nil)

	if got := testutil.ToFloat64(EstimationRuns.WithLabelValues("ok")) - okBefore; got != 2 {
		t.Errorf("ok runs = %f, want 2", got)
	}
	if got := testutil.ToFloat64(EstimationRuns.WithLabelValues("error")) - errBefore; got != 1 {
		t.Errorf("error runs = %f, want 1", got)
	}
}
