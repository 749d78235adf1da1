package metrics

import (
	"bytes"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/chazu/esch/alloc"
	"github.com/chazu/esch/config"
	"github.com/chazu/esch/lib/types"
	"github.com/chazu/esch/logging"
	"github.com/chazu/esch/vm"
)

func newRecorder(t *testing.T) (*Recorder, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	return r, reg
}

// sample returns the single metric of the named family.
func sample(t *testing.T, families map[string]*dto.MetricFamily, name string) *dto.Metric {
	t.Helper()
	mf, ok := families[name]
	if !ok || len(mf.GetMetric()) != 1 {
		t.Fatalf("family %s missing or not a single metric", name)
	}
	return mf.GetMetric()[0]
}

func TestRecorderCounts(t *testing.T) {
	r, reg := newRecorder(t)
	r.ObserveRecycle(vm.RecycleStats{Freed: 5, Failed: 1, Live: 3, Capacity: 8, Duration: time.Millisecond})
	r.ObserveRecycle(vm.RecycleStats{Freed: 2, Live: 1, Capacity: 8})
	r.ObserveGrow(8, 16)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"recycles", r.recycles, 2},
		{"freed", r.freed, 7},
		{"failures", r.failures, 1},
		{"grows", r.grows, 1},
		{"live", r.live, 1},
		{"capacity", r.capacity, 16},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
	if n, err := testutil.GatherAndCount(reg, "esch_gc_recycle_duration_seconds"); err != nil || n != 1 {
		t.Errorf("duration histogram count = %d, %v", n, err)
	}
}

func TestNewRecorderTwiceOnOneRegistry(t *testing.T) {
	_, reg := newRecorder(t)
	if _, err := NewRecorder(reg); err == nil {
		t.Fatal("second NewRecorder on the same registry succeeded")
	}
}

func TestWriteTextParses(t *testing.T) {
	r, reg := newRecorder(t)
	r.ObserveRecycle(vm.RecycleStats{Freed: 3, Live: 4, Capacity: 8})

	var buf bytes.Buffer
	if err := WriteText(&buf, reg); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(&buf)
	if err != nil {
		t.Fatalf("parse exposition: %v", err)
	}
	for _, name := range []string{
		"esch_gc_recycles_total", "esch_gc_freed_objects_total", "esch_gc_sweep_failures_total",
		"esch_gc_grows_total", "esch_gc_live_objects", "esch_gc_capacity_slots",
		"esch_gc_recycle_duration_seconds",
	} {
		if _, ok := families[name]; !ok {
			t.Errorf("exposition lacks %s", name)
		}
	}
	if got := sample(t, families, "esch_gc_freed_objects_total").GetCounter().GetValue(); got != 3 {
		t.Errorf("freed = %v, want 3", got)
	}
	if got := sample(t, families, "esch_gc_recycle_duration_seconds").GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("duration samples = %d, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	_, reg := newRecorder(t)
	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "esch_gc_capacity_slots") {
		t.Errorf("response lacks collector metrics:\n%s", body)
	}
}

func TestRecorderObservesCollector(t *testing.T) {
	r, _ := newRecorder(t)
	a := alloc.New()
	base := config.New(a, logging.Nop())
	root, err := types.NewVector(base)
	if err != nil {
		t.Fatalf("NewVector: %v", err)
	}
	gcCfg := base.Clone()
	_ = gcCfg.SetObject(vm.KeyRoot, root)
	_ = gcCfg.SetInt(config.KeyInitialSlots, 2)
	_ = gcCfg.SetObject(vm.KeyObserver, r)
	gc, err := vm.NewCollector(gcCfg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	cfg := base.Clone()
	_ = cfg.SetObject(vm.KeyCollector, gc)

	for i := 0; i < 3; i++ {
		if _, err := types.NewInteger(cfg, int64(i)); err != nil {
			t.Fatalf("NewInteger: %v", err)
		}
	}
	if _, err := gc.Recycle(); err != nil {
		t.Fatalf("Recycle: %v", err)
	}
	if got := testutil.ToFloat64(r.grows); got != 1 {
		t.Errorf("grows = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.freed); got != 3 {
		t.Errorf("freed = %v, want 3", got)
	}
	if got := testutil.ToFloat64(r.capacity); got != 4 {
		t.Errorf("capacity = %v, want 4", got)
	}
	if err := gc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("allocator: %v", err)
	}
}
