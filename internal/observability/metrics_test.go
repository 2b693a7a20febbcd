package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCounters(t *testing.T) {
	t.Parallel()

	m := NewMetrics()

	m.IncBatchCreated()
	m.AddRequestsAssigned(42)
	m.IncArchiveSent()
	m.IncArchiveSendFailed()
	m.AddResponsesApplied("print", 3)
	m.IncProtocolViolation()
	m.IncResponseFileClaimed()
	m.IncResponseFileProcessed()

	if got := testutil.ToFloat64(m.batchesCreatedTotal); got != 1 {
		t.Fatalf("batches_created_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.requestsAssignedTotal); got != 42 {
		t.Fatalf("requests_assigned_total = %v, want 42", got)
	}
	if got := testutil.ToFloat64(m.responsesAppliedTotal.WithLabelValues("print")); got != 3 {
		t.Fatalf("responses_applied_total{kind=print} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.protocolViolationsTotal); got != 1 {
		t.Fatalf("protocol_violations_total = %v, want 1", got)
	}
}

func TestMetricsNegativeAndZeroAddsIgnored(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.AddRequestsAssigned(0)
	m.AddRequestsAssigned(-5)
	m.AddResponsesApplied("batch", -1)

	if got := testutil.ToFloat64(m.requestsAssignedTotal); got != 0 {
		t.Fatalf("requests_assigned_total = %v, want 0", got)
	}
}

func TestMetricsWorkerInflightGauge(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.IncWorkerInFlight("print.batch")
	m.IncWorkerInFlight("print.batch")
	m.DecWorkerInFlight("print.batch")

	if got := testutil.ToFloat64(m.workerInflight.WithLabelValues("print.batch")); got != 1 {
		t.Fatalf("worker_inflight = %v, want 1", got)
	}
}

func TestMetricsHandlerServesRegistry(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.IncArchiveSent()
	m.ObserveArchiveSendDuration(250 * time.Millisecond)

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))

	body := recorder.Body.String()
	if !strings.Contains(body, "print_engine_archives_sent_total 1") {
		t.Fatalf("metrics output missing archive counter:\n%s", body)
	}
	if !strings.Contains(body, "print_engine_archive_send_duration_seconds_count 1") {
		t.Fatalf("metrics output missing archive duration histogram:\n%s", body)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.IncBatchCreated()
	m.AddRequestsAssigned(1)
	m.IncArchiveSent()
	m.IncArchiveSendFailed()
	m.ObserveArchiveSendDuration(time.Second)
	m.AddResponsesApplied("print", 1)
	m.IncProtocolViolation()
	m.IncResponseFileClaimed()
	m.IncResponseFileProcessed()
	m.IncWorkerInFlight("q")
	m.DecWorkerInFlight("q")
}
