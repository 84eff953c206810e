package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
)

type recordingSender struct {
	sent []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestHandler_HandleSend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		body       string
		sendErr    error
		wantStatus int
		wantSent   int
	}{
		{"valid", `{"to":"Ada <ada@example.com>","subject":"Hi","body":"hello"}`, nil, http.StatusOK, 1},
		{"malformed json", `{`, nil, http.StatusBadRequest, 0},
		{"bad recipient", `{"to":"nobody","subject":"Hi"}`, nil, http.StatusBadRequest, 0},
		{"missing subject", `{"to":"ada@example.com","subject":"  "}`, nil, http.StatusBadRequest, 0},
		{"relay failure", `{"to":"ada@example.com","subject":"Hi"}`, errors.New("connection refused"), http.StatusBadGateway, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{err: tt.sendErr}
			h := NewHandler(sender, logger)

			req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.HandleSend(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if len(sender.sent) != tt.wantSent {
				t.Fatalf("expected %d sent, got %d", tt.wantSent, len(sender.sent))
			}
			if tt.wantSent == 1 && sender.sent[0].To != "ada@example.com" {
				t.Fatalf("expected bare address, got %q", sender.sent[0].To)
			}
		})
	}
}

func TestSMTPSender_Send(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string

	s := NewSMTPSender("mail.local:25", "orders@storefront.local", "", "")
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		if a != nil {
			t.Errorf("expected no auth without username")
		}
		return nil
	}

	err := s.Send(context.Background(), Message{To: "ada@example.com", Subject: "Order\r\nBcc: x@evil", Body: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAddr != "mail.local:25" || gotFrom != "orders@storefront.local" || len(gotTo) != 1 {
		t.Fatalf("unexpected envelope %s %s %v", gotAddr, gotFrom, gotTo)
	}
	if strings.Contains(gotMsg, "\r\nBcc:") {
		t.Fatalf("header injection not stripped: %q", gotMsg)
	}
	if !strings.HasSuffix(gotMsg, "\r\n\r\nhello\r\n") {
		t.Fatalf("unexpected body framing: %q", gotMsg)
	}
}
