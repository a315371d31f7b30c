package probe

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/uptimeops/observe"
)

func TestFailureTracker(t *testing.T) {
	tr := newFailureTracker()

	if got := tr.count("web"); got != 0 {
		t.Errorf("count = %d for unknown probe, want 0", got)
	}
	if tr.reset("web") {
		t.Error("reset on a clean probe reported it as failing")
	}

	if got := tr.record("web"); got != 1 {
		t.Errorf("first record = %d, want 1", got)
	}
	if got := tr.record("web"); got != 2 {
		t.Errorf("second record = %d, want 2", got)
	}
	if got := tr.record("api"); got != 1 {
		t.Errorf("record for separate probe = %d, want 1", got)
	}

	if !tr.reset("web") {
		t.Error("reset on a failing probe reported it as clean")
	}
	if got := tr.count("web"); got != 0 {
		t.Errorf("count after reset = %d, want 0", got)
	}
	if got := tr.count("api"); got != 1 {
		t.Errorf("reset leaked across probes: api count = %d, want 1", got)
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := observe.NewLoggerWithWriter("debug", &buf)
	notifier := NewLogNotifier(logger)

	notifier.Notify(context.Background(), Alert{
		Probe:               "web",
		Channels:            []string{"ops"},
		ConsecutiveFailures: 3,
		Message:             "unexpected status 502 Bad Gateway",
		StatusCode:          502,
		Timestamp:           time.Now(),
	})

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("non-escalated alert not logged at warn: %s", out)
	}
	if !strings.Contains(out, "web") || !strings.Contains(out, "502") {
		t.Errorf("alert fields missing from log: %s", out)
	}

	buf.Reset()
	notifier.Notify(context.Background(), Alert{Probe: "web", Escalate: true, ConsecutiveFailures: 5})
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Errorf("escalated alert not logged at error: %s", buf.String())
	}
}

func TestNewLogNotifier_NilLogger(t *testing.T) {
	notifier := NewLogNotifier(nil)
	notifier.Notify(context.Background(), Alert{Probe: "web"})
}
