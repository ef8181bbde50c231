package notification

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerNotifierWritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	n := NewLoggerNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	if err := n.Send(context.Background(), Message{Kind: KindTransferReceived, Destination: "phantom-abc", Body: "received 5.00 USD"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"kind":"wallet_transfer_received"`) || !strings.Contains(out, `"destination":"phantom-abc"`) {
		t.Fatalf("unexpected log output %s", out)
	}

	var nilNotifier *LoggerNotifier
	if err := nilNotifier.Send(context.Background(), Message{}); err != nil {
		t.Fatalf("nil notifier should be a no-op, got %v", err)
	}
}

func TestRecorderKeepsMessages(t *testing.T) {
	var r Recorder
	_ = r.Send(context.Background(), Message{Kind: KindTransferReceived})
	_ = r.Send(context.Background(), Message{Kind: KindTransferReceived})
	if got := len(r.Messages()); got != 2 {
		t.Fatalf("expected 2 messages, got %d", got)
	}
}
