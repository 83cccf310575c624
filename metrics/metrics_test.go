package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/jonwraymond/codecall/sandbox"
)

func TestCollector_Execution(t *testing.T) {
	c := New()

	c.ExecutionStarted()
	c.ExecutionStarted()
	if got := gaugeValue(t, c.Registry, "codecall_sandbox_active_executions"); got != 2 {
		t.Errorf("active_executions = %v, want 2", got)
	}

	c.ExecutionFinished(sandbox.OutcomeCompleted, 0.2)
	c.ExecutionFinished(sandbox.OutcomeTimeout, 30)

	if got := gaugeValue(t, c.Registry, "codecall_sandbox_active_executions"); got != 0 {
		t.Errorf("active_executions = %v, want 0", got)
	}
	if got := counterValue(t, c.Registry, "codecall_sandbox_executions_total", prometheus.Labels{"outcome": "timeout"}); got != 1 {
		t.Errorf("executions_total{timeout} = %v, want 1", got)
	}
	if got := counterValue(t, c.Registry, "codecall_sandbox_executions_total", prometheus.Labels{"outcome": "completed"}); got != 1 {
		t.Errorf("executions_total{completed} = %v, want 1", got)
	}
}

func TestCollector_ToolCalls(t *testing.T) {
	c := New()

	c.ToolCallFinished("util.echo", false, 0.01)
	c.ToolCallFinished("util.echo", true, 0.02)
	c.ToolCallFinished("util.echo", false, 0.01)
	c.ProgressEmitted()

	if got := counterValue(t, c.Registry, "codecall_tool_calls_total", prometheus.Labels{"tool": "util.echo", "failed": "false"}); got != 2 {
		t.Errorf("calls_total{failed=false} = %v, want 2", got)
	}
	if got := counterValue(t, c.Registry, "codecall_tool_calls_total", prometheus.Labels{"tool": "util.echo", "failed": "true"}); got != 1 {
		t.Errorf("calls_total{failed=true} = %v, want 1", got)
	}
	if got := counterValue(t, c.Registry, "codecall_sandbox_progress_entries_total", nil); got != 1 {
		t.Errorf("progress_entries_total = %v, want 1", got)
	}
}

func TestCollector_Isolated(t *testing.T) {
	a, b := New(), New()
	a.ProgressEmitted()
	if got := counterValue(t, b.Registry, "codecall_sandbox_progress_entries_total", nil); got != 0 {
		t.Errorf("second collector saw %v progress entries, want 0", got)
	}
}

func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels prometheus.Labels) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			lm := map[string]string{}
			for _, lp := range m.GetLabel() {
				lm[lp.GetName()] = lp.GetValue()
			}
			match := true
			for k, v := range labels {
				if lm[k] != v {
					match = false
					break
				}
			}
			if match {
				return m
			}
		}
	}
	return nil
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels prometheus.Labels) float64 {
	t.Helper()
	return findMetric(t, reg, name, labels).GetCounter().GetValue()
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	return findMetric(t, reg, name, nil).GetGauge().GetValue()
}
