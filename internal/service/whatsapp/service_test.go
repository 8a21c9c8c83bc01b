package whatsapp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mamadbah2/stationledger/internal/config"
	"github.com/mamadbah2/stationledger/internal/domain/models"
	"github.com/mamadbah2/stationledger/internal/service/entries"
	client "github.com/mamadbah2/stationledger/pkg/clients/whatsapp"
)

type fakeClient struct {
	sent []client.SendTextMessageRequest
	read []string
}

func (f *fakeClient) SendTextMessage(_ context.Context, req client.SendTextMessageRequest) (*client.SendTextMessageResponse, error) {
	f.sent = append(f.sent, req)
	return &client.SendTextMessageResponse{}, nil
}

func (f *fakeClient) MarkRead(_ context.Context, messageID string) error {
	f.read = append(f.read, messageID)
	return nil
}

type fakeCommands struct {
	reply string
	err   error
	calls []models.Command
}

func (f *fakeCommands) HandleCommand(_ context.Context, cmd models.Command, _ string) (string, error) {
	f.calls = append(f.calls, cmd)
	return f.reply, f.err
}

func textPayload(from, id, body string) models.WebhookPayload {
	return models.WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []models.WebhookEntry{{
			Changes: []models.WebhookChange{{
				Field: "messages",
				Value: models.WebhookValue{
					Messages: []models.InboundMessage{{From: from, ID: id, Type: "text", Text: &models.TextContent{Body: body}}},
				},
			}},
		}},
	}
}

func newService(commands CommandHandler) (*MetaWhatsAppService, *fakeClient) {
	fc := &fakeClient{}
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{VerifyToken: "verify-me"}, fc, commands, nil)
	svc.now = func() time.Time { return time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC) }
	return svc, fc
}

func TestVerifyWebhookToken(t *testing.T) {
	svc, _ := newService(&fakeCommands{})

	testCases := []struct {
		name    string
		mode    string
		token   string
		wantErr bool
	}{
		{"valid", "subscribe", "verify-me", false},
		{"wrong token", "subscribe", "nope", true},
		{"wrong mode", "unsubscribe", "verify-me", true},
		{"missing", "", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.VerifyWebhookToken(tc.mode, tc.token, "challenge-42")
			if tc.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil || got != "challenge-42" {
				t.Errorf("Expected challenge echo, got %q (%v)", got, err)
			}
		})
	}
}

func TestHandleWebhook_RepliesWithCommandResult(t *testing.T) {
	commands := &fakeCommands{reply: "Saved tofu for 2025-01-15: in 10, out 4."}
	svc, fc := newService(commands)

	if err := svc.HandleWebhook(context.Background(), textPayload("849000", "wamid.1", "/entry tofu 10 4")); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	if len(commands.calls) != 1 || commands.calls[0].Type != models.CommandEntry {
		t.Fatalf("Expected one entry command, got %+v", commands.calls)
	}
	if len(fc.sent) != 1 {
		t.Fatalf("Expected one reply, got %d", len(fc.sent))
	}
	if fc.sent[0].To != "849000" || !strings.HasPrefix(fc.sent[0].Body, "Daily Entry\nSaved tofu") {
		t.Errorf("unexpected reply %+v", fc.sent[0])
	}
	if len(fc.read) != 1 || fc.read[0] != "wamid.1" {
		t.Errorf("Expected read receipt for wamid.1, got %v", fc.read)
	}
}

func TestHandleWebhook_SkipsRedelivery(t *testing.T) {
	commands := &fakeCommands{reply: "ok"}
	svc, fc := newService(commands)
	payload := textPayload("849000", "wamid.7", "/stock tofu")

	for i := 0; i < 2; i++ {
		if err := svc.HandleWebhook(context.Background(), payload); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if len(commands.calls) != 1 || len(fc.sent) != 1 {
		t.Errorf("Expected a single dispatch, got %d calls and %d replies", len(commands.calls), len(fc.sent))
	}
}

func TestHandleWebhook_UserErrorIsReplied(t *testing.T) {
	commands := &fakeCommands{err: entries.ErrInvalidArguments}
	svc, fc := newService(commands)

	if err := svc.HandleWebhook(context.Background(), textPayload("849000", "wamid.2", "/entry tofu")); err != nil {
		t.Fatalf("Expected user error to be answered, got %v", err)
	}
	if len(fc.sent) != 1 || !strings.Contains(fc.sent[0].Body, "Not saved") {
		t.Errorf("unexpected reply %+v", fc.sent)
	}
}

func TestHandleWebhook_InternalErrorIsReturned(t *testing.T) {
	storeDown := errors.New("store down")
	svc, fc := newService(&fakeCommands{err: storeDown})

	err := svc.HandleWebhook(context.Background(), textPayload("849000", "wamid.3", "/entry tofu 1 1"))
	if !errors.Is(err, storeDown) {
		t.Fatalf("Expected store error, got %v", err)
	}
	if len(fc.sent) != 1 || !strings.Contains(fc.sent[0].Body, "Something went wrong") {
		t.Errorf("unexpected reply %+v", fc.sent)
	}
}

func TestHandleWebhook_UnknownTextGetsHelp(t *testing.T) {
	commands := &fakeCommands{reply: "Commands: ..."}
	svc, _ := newService(commands)

	if err := svc.HandleWebhook(context.Background(), textPayload("849000", "wamid.4", "hello there")); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(commands.calls) != 1 || commands.calls[0].Type != models.CommandHelp {
		t.Errorf("Expected help command, got %+v", commands.calls)
	}
}

func TestSessionManager_Expires(t *testing.T) {
	sm := NewSessionManager(time.Hour)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if !sm.MarkSeen("a", "m1", now) {
		t.Fatal("Expected first delivery to be new")
	}
	if sm.MarkSeen("a", "m1", now.Add(time.Minute)) {
		t.Fatal("Expected redelivery to be detected")
	}
	if !sm.MarkSeen("a", "m1", now.Add(2*time.Hour)) {
		t.Error("Expected expired session to be forgotten")
	}
	sm.ClearSession("a")
	if !sm.MarkSeen("a", "m1", now.Add(2*time.Hour)) {
		t.Error("Expected cleared session to be forgotten")
	}
}

func TestSessionManager_OutOfOrderRedelivery(t *testing.T) {
	sm := NewSessionManager(time.Hour)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if !sm.MarkSeen("a", "m1", now) || !sm.MarkSeen("a", "m2", now) {
		t.Fatal("Expected both messages to be new")
	}
	if sm.MarkSeen("a", "m1", now.Add(time.Minute)) {
		t.Error("Expected m1 redelivered after m2 to be detected")
	}
	if !sm.MarkSeen("b", "m1", now) {
		t.Error("Expected message ids to be tracked per sender")
	}

	for i := 0; i < recentMessages; i++ {
		sm.MarkSeen("a", "filler-"+strings.Repeat("x", i), now)
	}
	if !sm.MarkSeen("a", "m1", now) {
		t.Error("Expected the oldest id to drop out of the window")
	}
}

func TestHandleWebhook_IgnoresOlderRedelivery(t *testing.T) {
	commands := &fakeCommands{reply: "ok"}
	svc, fc := newService(commands)
	ctx := context.Background()

	for _, payload := range []models.WebhookPayload{
		textPayload("849000", "wamid.A", "/entry tofu 10 4"),
		textPayload("849000", "wamid.B", "/entry tofu 12 4"),
		textPayload("849000", "wamid.A", "/entry tofu 10 4"),
	} {
		if err := svc.HandleWebhook(ctx, payload); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	}

	if len(commands.calls) != 2 {
		t.Errorf("Expected two commands executed, got %d", len(commands.calls))
	}
	if len(fc.sent) != 2 {
		t.Errorf("Expected two replies, got %d", len(fc.sent))
	}
}
