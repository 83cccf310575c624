package sandbox

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"testing"

	"github.com/jonwraymond/codecall/backend"
)

func sortedMetrics(m *recordingMetrics) []toolMetric {
	got := m.observed()
	sort.Slice(got, func(i, j int) bool {
		if got[i].path != got[j].path {
			return got[i].path < got[j].path
		}
		return !got[i].failed && got[j].failed
	})
	return got
}

func TestExecute_ToolMetricLabelsBounded(t *testing.T) {
	tools := indexedTools{mockTools: echoTools(), paths: map[string]bool{"test.echo": true}}
	m := &recordingMetrics{}
	eng := newTestEngine(t, tools, func(c *Config) { c.Metrics = m })

	_, err := eng.Execute(context.Background(), script(
		`emit {"type":"call","id":1,"tool":"test.echo","args":{}}`,
		`emit {"type":"call","id":2,"tool":"random.a8f3","args":{}}`,
		`emit {"type":"call","id":3,"tool":"random.c91d","args":{}}`,
		`read 3`,
		`return-replies`,
	), Options{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []toolMetric{
		{path: "test.echo", failed: false},
		{path: UnknownToolLabel, failed: true},
		{path: UnknownToolLabel, failed: true},
	}
	sort.Slice(want, func(i, j int) bool { return want[i].path < want[j].path })
	if got := sortedMetrics(m); !reflect.DeepEqual(got, want) {
		t.Errorf("metrics = %v, want %v", got, want)
	}
}

func TestExecute_ToolMetricUnknownWithoutIndex(t *testing.T) {
	tools := &mockTools{fn: func(_ context.Context, path string, _ map[string]any) (any, error) {
		if path == "test.echo" {
			return "ok", nil
		}
		return nil, fmt.Errorf("%w: %s", backend.ErrUnknownTool, path)
	}}
	m := &recordingMetrics{}
	eng := newTestEngine(t, tools, func(c *Config) { c.Metrics = m })

	_, err := eng.Execute(context.Background(), script(
		`emit {"type":"call","id":1,"tool":"test.echo","args":{}}`,
		`emit {"type":"call","id":2,"tool":"x.y","args":{}}`,
		`read 2`,
		`return-replies`,
	), Options{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []toolMetric{{path: "test.echo"}, {path: UnknownToolLabel, failed: true}}
	if got := sortedMetrics(m); !reflect.DeepEqual(got, want) {
		t.Errorf("metrics = %v, want %v", got, want)
	}
}

func TestExecute_RejectedCallsCounted(t *testing.T) {
	tools := indexedTools{mockTools: echoTools(), paths: map[string]bool{"test.echo": true}}
	m := &recordingMetrics{}
	eng := newTestEngine(t, tools, func(c *Config) {
		c.Metrics = m
		c.MaxToolCalls = 2
	})

	_, err := eng.Execute(context.Background(), script(
		`emit {"type":"call","id":1,"tool":"test.echo","args":[1,2]}`,
		`emit {"type":"call","id":2,"tool":"test.echo","args":{}}`,
		`emit {"type":"call","id":3,"tool":"test.echo","args":{}}`,
		`read 3`,
		`return-replies`,
	), Options{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []toolMetric{
		{path: "test.echo", failed: false},
		{path: "test.echo", failed: true},
		{path: "test.echo", failed: true},
	}
	if got := sortedMetrics(m); !reflect.DeepEqual(got, want) {
		t.Errorf("metrics = %v, want %v", got, want)
	}
	if tools.count("test.echo") != 1 {
		t.Errorf("test.echo called %d times, want 1", tools.count("test.echo"))
	}
}

func TestExecute_EmptyHandlerErrorStillFails(t *testing.T) {
	tools := &mockTools{fn: func(context.Context, string, map[string]any) (any, error) {
		return nil, errors.New("")
	}}
	eng := newTestEngine(t, tools)

	res, err := eng.Execute(context.Background(), script(
		`emit {"type":"call","id":1,"tool":"test.blank","args":{}}`,
		`read 1`,
		`return-replies`,
	), Options{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	reply := res.Output.(map[string]any)["1"].(map[string]any)
	if msg, _ := reply["error"].(string); msg != "tool call failed" {
		t.Errorf("reply = %v, want error %q", reply, "tool call failed")
	}
	if _, ok := reply["result"]; ok {
		t.Errorf("reply = %v, want no result", reply)
	}
	if len(res.ToolCalls) != 1 || res.ToolCalls[0].Error != "tool call failed" {
		t.Errorf("ToolCalls = %+v, want one failed record", res.ToolCalls)
	}
}
