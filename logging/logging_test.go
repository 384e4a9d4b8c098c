package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.SetLevel(LevelWarn)

	l.Debug("debug msg")
	l.Info("info msg")
	l.Warn("warn msg")
	l.Error("error msg")

	out := buf.String()
	if strings.Contains(out, "debug msg") || strings.Contains(out, "info msg") {
		t.Errorf("filtered levels leaked: %s", out)
	}
	if !strings.Contains(out, "warn msg") || !strings.Contains(out, "error msg") {
		t.Errorf("expected warn and error entries: %s", out)
	}
}

func TestComponentAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)

	scoped := l.WithComponent("lifecycle").WithRequestID("req-7")
	scoped.Info("sweep complete", map[string]interface{}{"removed": 2})

	out := buf.String()
	if !strings.Contains(out, "[lifecycle]") {
		t.Errorf("missing component: %s", out)
	}
	if !strings.Contains(out, "request_id=req-7") {
		t.Errorf("missing request id: %s", out)
	}
	if !strings.Contains(out, "removed=2") {
		t.Errorf("missing field: %s", out)
	}
}

func TestTransitionHelper(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)

	l.Transition("agent-1", "alive", "stale")

	out := buf.String()
	if !strings.Contains(out, "lifecycle_transition") || !strings.Contains(out, "agent_id=agent-1") {
		t.Errorf("unexpected output: %s", out)
	}
}
