package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stationledger/internal/config"
	"github.com/mamadbah2/stationledger/internal/domain/models"
	"github.com/mamadbah2/stationledger/internal/ledger"
	"github.com/mamadbah2/stationledger/internal/service/entries"
	client "github.com/mamadbah2/stationledger/pkg/clients/whatsapp"
)

// MessagingService describes the operations the HTTP layer and the scheduler can perform.
type MessagingService interface {
	VerifyWebhookToken(mode, verifyToken, challenge string) (string, error)
	HandleWebhook(ctx context.Context, payload models.WebhookPayload) error
	SendOutbound(ctx context.Context, msg models.OutboundMessage) error
}

// CommandHandler executes a parsed station-manager command.
type CommandHandler interface {
	HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error)
}

// MetaWhatsAppService is the production implementation backed by WhatsApp Cloud API.
type MetaWhatsAppService struct {
	cfg      config.WhatsAppConfig
	client   client.Client
	commands CommandHandler
	sessions *SessionManager
	logger   *zap.Logger
	now      func() time.Time
}

// NewMetaWhatsAppService wires a new service instance.
func NewMetaWhatsAppService(cfg config.WhatsAppConfig, client client.Client, commands CommandHandler, logger *zap.Logger) *MetaWhatsAppService {
	svc := &MetaWhatsAppService{
		cfg:      cfg,
		client:   client,
		commands: commands,
		sessions: NewSessionManager(24 * time.Hour),
		logger:   logger,
		now:      time.Now,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

var replyTitles = map[models.CommandType]models.AutomationReply{
	models.CommandEntry: {Title: "Daily Entry"},
	models.CommandPrice: {Title: "Unit Prices"},
	models.CommandStock: {Title: "Stock"},
	models.CommandHelp:  {Title: "Command Help"},
}

// VerifyWebhookToken validates the callback verification token.
func (s *MetaWhatsAppService) VerifyWebhookToken(mode, verifyToken, challenge string) (string, error) {
	if mode == "" || verifyToken == "" {
		return "", errors.New("missing mode or verify token")
	}

	if !strings.EqualFold(mode, "subscribe") {
		return "", fmt.Errorf("unsupported hub.mode %s", mode)
	}

	if verifyToken != s.cfg.VerifyToken {
		return "", errors.New("invalid verify token")
	}

	return challenge, nil
}

// HandleWebhook processes inbound webhook payloads.
func (s *MetaWhatsAppService) HandleWebhook(ctx context.Context, payload models.WebhookPayload) error {
	var firstErr error

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if err := s.handleInboundMessage(ctx, msg); err != nil {
					s.logger.Error("failed to handle inbound message", zap.Error(err), zap.String("message_id", msg.ID))
					if firstErr == nil {
						firstErr = err
					}
				}
			}
		}
	}

	return firstErr
}

func (s *MetaWhatsAppService) handleInboundMessage(ctx context.Context, msg models.InboundMessage) error {
	text := extractMessageText(msg)
	if text == "" {
		s.logger.Debug("ignoring message without text", zap.String("type", msg.Type), zap.String("message_id", msg.ID))
		return nil
	}

	if !s.sessions.MarkSeen(msg.From, msg.ID, s.now()) {
		s.logger.Info("skipping redelivered message", zap.String("message_id", msg.ID))
		return nil
	}

	cmd := models.ParseCommand(text)
	if cmd.Type == models.CommandUnknown {
		cmd = models.Command{Type: models.CommandHelp, Raw: text}
	}

	s.logger.Info("parsed inbound command",
		zap.String("from", msg.From),
		zap.String("command", string(cmd.Type)),
		zap.Strings("args", cmd.Args))

	reply := replyTitles[cmd.Type]
	body, err := s.commands.HandleCommand(ctx, cmd, msg.From)
	var internalErr error
	switch {
	case err == nil:
		reply.Message = body
	case isUserError(err):
		reply.Message = fmt.Sprintf("Not saved: %v", err)
	default:
		reply.Message = "Something went wrong, please try again later."
		internalErr = fmt.Errorf("command %s: %w", cmd.Type, err)
	}

	if err := s.client.MarkRead(ctx, msg.ID); err != nil {
		s.logger.Debug("mark read failed", zap.Error(err))
	}

	if err := s.SendOutbound(ctx, models.OutboundMessage{To: msg.From, Message: fmt.Sprintf("%s\n%s", reply.Title, reply.Message)}); err != nil {
		return err
	}
	return internalErr
}

// SendOutbound pushes a text notification to a phone number.
func (s *MetaWhatsAppService) SendOutbound(ctx context.Context, msg models.OutboundMessage) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.client.SendTextMessage(ctxWithTimeout, client.SendTextMessageRequest{
		To:         msg.To,
		Body:       msg.Message,
		PreviewURL: msg.PreviewURL,
	})
	return err
}

func isUserError(err error) bool {
	for _, target := range []error{
		entries.ErrInvalidArguments,
		entries.ErrUnsupportedCommand,
		models.ErrUnknownMaterial,
		ledger.ErrNegativeQuantity,
		ledger.ErrNegativePrice,
		ledger.ErrInvalidPeriod,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func extractMessageText(msg models.InboundMessage) string {
	if msg.Text != nil {
		return msg.Text.Body
	}

	if msg.Interactive != nil {
		if msg.Interactive.ButtonReply != nil {
			return msg.Interactive.ButtonReply.ID
		}
		if msg.Interactive.ListReply != nil {
			return msg.Interactive.ListReply.ID
		}
	}

	return ""
}
