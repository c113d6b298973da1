package obs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestTimeLogsFailureWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := WithRequestID(context.Background(), "req-42")
	if got := RequestID(ctx); got != "req-42" {
		t.Fatalf("RequestID = %q", got)
	}

	err := errors.New("boom")
	Time(ctx, "solve")(&err)
	var ok error
	Time(ctx, "save")(&ok)

	out := buf.String()
	for _, want := range []string{"op failed", "req_id=req-42", "op=solve", "err=boom", "op done", "op=save"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
	if RequestID(context.Background()) != "" {
		t.Error("empty context should have no request id")
	}
}
