package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordExchange(t *testing.T) {
	c := NewCollector()
	c.RecordExchange("coap", "success", 120*time.Millisecond, 12)
	c.RecordExchange("coap", "success", 80*time.Millisecond, 12)
	c.RecordExchange("coaps", "timeout", 6*time.Second, 0)

	if got := testutil.ToFloat64(c.exchangesTotal.WithLabelValues("coap", "success")); got != 2 {
		t.Errorf("coap success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.exchangesTotal.WithLabelValues("coaps", "timeout")); got != 1 {
		t.Errorf("coaps timeout = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.payloadBytes); got != 0 {
		t.Errorf("payload bytes = %v, want 0 after last exchange", got)
	}
}

func TestRecordConnectAttempts(t *testing.T) {
	c := NewCollector()
	c.RecordConnectAttempts("wifi:lab", 3, true)
	c.RecordConnectAttempts("wifi:lab", 3, false)

	if got := testutil.ToFloat64(c.connectAttempts.WithLabelValues("wifi:lab", "success")); got != 1 {
		t.Errorf("success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.connectAttempts.WithLabelValues("wifi:lab", "failure")); got != 5 {
		t.Errorf("failure = %v, want 5", got)
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.RecordExchange("coap", "success", time.Second, 1)
	c.RecordConnectAttempts("host", 1, true)
	c.RecordWaitBudget(6 * time.Second)
	c.RecordKeyExchange("P256", false)
	if err := c.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("WriteTextfile() on nil collector: %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector()
	c.RecordWaitBudget(6 * time.Second)
	c.RecordKeyExchange("P384", true)

	path := filepath.Join(t.TempDir(), "pqcoap.prom")
	if err := c.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	for _, want := range []string{
		"pqcoap_wait_budget_seconds 6",
		`pqcoap_key_exchange_total{fallback="true",group="P384"} 1`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}
