package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRecords(t *testing.T) {
	c := NewCollector()

	c.TransferStarted()
	c.RecordFile("upload", 10, true)
	c.RecordFile("upload", 5, true)
	c.RecordFile("upload", 0, false)

	if got := testutil.ToFloat64(c.activeTransfers); got != 1 {
		t.Errorf("active = %v, want 1", got)
	}
	c.TransferFinished("upload", "partially_completed", 2*time.Second)

	if got := testutil.ToFloat64(c.filesTotal.WithLabelValues("upload", "ok")); got != 2 {
		t.Errorf("ok files = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.filesTotal.WithLabelValues("upload", "failed")); got != 1 {
		t.Errorf("failed files = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.bytesTotal.WithLabelValues("upload")); got != 15 {
		t.Errorf("bytes = %v, want 15", got)
	}
	if got := testutil.ToFloat64(c.transfersTotal.WithLabelValues("upload", "partially_completed")); got != 1 {
		t.Errorf("transfers = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.activeTransfers); got != 0 {
		t.Errorf("active = %v, want 0", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.RecordFile("download", 42, true)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `twinpane_transfer_bytes_total{direction="download"} 42`) {
		t.Errorf("metrics output missing bytes counter:\n%s", body)
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.TransferStarted()
	c.RecordFile("upload", 1, true)
	c.TransferFinished("upload", "completed", time.Second)
	if c.Registry() != nil {
		t.Error("nil collector registry should be nil")
	}

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
