package notify

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestSigningRequest(t *testing.T) {
	msg, err := SigningRequest("alice@example.com", "contract.pdf", "http://localhost:3000/sign/abc")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if msg.Subject != "Document for Signing: contract.pdf" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if !strings.Contains(msg.Text, "http://localhost:3000/sign/abc") {
		t.Fatalf("text body missing link: %q", msg.Text)
	}
	if !strings.Contains(msg.HTML, `href="http://localhost:3000/sign/abc"`) {
		t.Fatalf("html body missing button link: %q", msg.HTML)
	}
}

func TestSigningRequestEscapesName(t *testing.T) {
	msg, err := SigningRequest("a@example.com", "<script>x</script>.pdf", "http://x/sign/1")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(msg.HTML, "<script>") {
		t.Fatalf("document name was not escaped: %q", msg.HTML)
	}
	def, err := SigningRequest("a@example.com", "", "http://x/sign/1")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if def.Subject != "Document for Signing: Document" {
		t.Fatalf("unexpected default subject %q", def.Subject)
	}
}

func TestLogSender(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := LogSender{Log: logger}
	if err := s.Send(context.Background(), Message{To: "a@example.com", Subject: "s", Text: "body"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.InfoLevel || entry.Data["to"] != "a@example.com" {
		t.Fatalf("unexpected log entry %+v", entry)
	}
}
