package perf

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/odyssey-erp/backoffice/internal/jobs"
	"github.com/odyssey-erp/backoffice/internal/lifecycle"
	"github.com/odyssey-erp/backoffice/jobs"
)

func TestExpirySweepThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	run := 0
	quotes := jobs.Sweeper{Document: "quote", Run: func(context.Context, int) (lifecycle.SweepResult, error) {
		return lifecycle.SweepResult{Scanned: 2, Transitioned: 2}, nil
	}}
	// Every fifteenth invoice scan hits a dead connection.
	invoices := jobs.Sweeper{Document: "invoice", Run: func(context.Context, int) (lifecycle.SweepResult, error) {
		run++
		if run%15 == 0 {
			return lifecycle.SweepResult{}, errors.New("conn closed")
		}
		return lifecycle.SweepResult{Scanned: 1, Transitioned: 1}, nil
	}}
	job := jobs.NewExpirySweepJob(nil, jobs.SweepConfig{}, nil, metrics, quotes, invoices)

	for i := 0; i < 30; i++ {
		_, _ = job.Run(context.Background())
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "backoffice_jobs_total", map[string]string{"job": jobs.TaskExpirySweep, "status": "success"})
	failure := metricValue(t, families, "backoffice_jobs_total", map[string]string{"job": jobs.TaskExpirySweep, "status": "failure"})
	if success+failure != 30 {
		t.Fatalf("expected 30 sweep runs, got %f", success+failure)
	}
	if ratio := success / (success + failure); ratio < 0.9 {
		t.Fatalf("sweep success ratio too low: %f", ratio)
	}

	// Quote results survive a failing invoice scan.
	if got := metricValue(t, families, "backoffice_sweep_transitioned_total", map[string]string{"document": "quote"}); got != 60 {
		t.Fatalf("quote transitions = %f, want 60", got)
	}

	if mean := histogramMean(t, families, "backoffice_job_duration_seconds", map[string]string{"job": jobs.TaskExpirySweep}); mean > 0.5 {
		t.Fatalf("sweep duration above budget: %f", mean)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
