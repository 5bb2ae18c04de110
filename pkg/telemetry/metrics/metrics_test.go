package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_DefaultNaming(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(nil, registry)

	m.ObserveEvaluation("pull-request", "block", 5*time.Millisecond)

	got := testutil.ToFloat64(m.evaluationsTotal.WithLabelValues("pull-request", "block"))
	if got != 1 {
		t.Errorf("evaluations_total = %v, want 1", got)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "themis_governance_evaluations_total" {
			found = true
		}
	}
	if !found {
		t.Error("themis_governance_evaluations_total not registered")
	}
}

func TestGovernanceMetrics_Counters(t *testing.T) {
	m := New(&Config{Namespace: "test", Subsystem: "gov"}, prometheus.NewRegistry())

	m.ObserveDecision("proceed")
	m.ObserveDecision("proceed")
	m.ObserveDecision("reject")
	m.ObserveValidatorUnavailable("sox")
	m.ObserveExceptionGranted()
	m.ObserveAuditAppend("evaluation")
	m.ObserveVerifyFailure()

	if got := testutil.ToFloat64(m.decisionsTotal.WithLabelValues("proceed")); got != 2 {
		t.Errorf("decisions_total{proceed} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.decisionsTotal.WithLabelValues("reject")); got != 1 {
		t.Errorf("decisions_total{reject} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.validatorUnavailable.WithLabelValues("sox")); got != 1 {
		t.Errorf("validator_unavailable_total{sox} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.exceptionsGranted); got != 1 {
		t.Errorf("exceptions_granted_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.auditVerifyFailures); got != 1 {
		t.Errorf("audit_verify_failures_total = %v, want 1", got)
	}
}

func TestGovernanceMetrics_Handler(t *testing.T) {
	m := New(nil, prometheus.NewRegistry())
	m.ObserveEvaluation("pipeline-run", "allow", time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "themis_governance_evaluations_total") {
		t.Error("exposition output missing evaluations counter")
	}
}
