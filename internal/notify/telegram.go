package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/gateway"
	"launch-sniper/internal/logging"
	"launch-sniper/internal/observability"
	"launch-sniper/internal/reporting"
)

// DefaultTelegramTimeout bounds each Bot API request.
const DefaultTelegramTimeout = 15 * time.Second

// Sender is the part of *tgbotapi.BotAPI the sink uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TokenInfoSource enriches announcements.
type TokenInfoSource interface {
	TokenInfo(ctx context.Context, mint string) (*gateway.TokenInfo, error)
	DexPaid(ctx context.Context, mint string) (bool, error)
}

// NewBot connects to the Bot API at endpoint (tgbotapi.APIEndpoint when
// empty). It validates the token with getMe.
func NewBot(token, endpoint string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTelegramTimeout
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return bot, nil
}

// TelegramSink posts announcements to a public channel and operator
// events (purchases, cycle reports) to an admin chat.
type TelegramSink struct {
	bot         Sender
	channelID   int64
	adminChatID int64
	info        TokenInfoSource
	reports     *reporting.Generator
	logger      *zap.Logger
}

// TelegramOption configures TelegramSink.
type TelegramOption func(*TelegramSink)

// WithTokenInfo enables announcement enrichment.
func WithTokenInfo(src TokenInfoSource) TelegramOption {
	return func(s *TelegramSink) {
		s.info = src
	}
}

// WithReports attaches the cycle report to NewCycle messages.
func WithReports(g *reporting.Generator) TelegramOption {
	return func(s *TelegramSink) {
		s.reports = g
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) TelegramOption {
	return func(s *TelegramSink) {
		s.logger = logging.OrNop(l)
	}
}

// NewTelegramSink creates a sink. adminChatID 0 disables operator messages.
func NewTelegramSink(bot Sender, channelID, adminChatID int64, opts ...TelegramOption) *TelegramSink {
	s := &TelegramSink{
		bot:         bot,
		channelID:   channelID,
		adminChatID: adminChatID,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify implements Sink. Rejections are not posted.
func (s *TelegramSink) Notify(ctx context.Context, ev domain.Event) error {
	var err error
	switch ev.Kind {
	case domain.EventAnnounced:
		err = s.announce(ctx, ev)
	case domain.EventBought:
		if ev.Record == nil {
			return nil
		}
		err = s.sendAdmin(formatBought(ev.Record))
	case domain.EventPurchaseRejected:
		err = s.sendAdmin(formatPurchaseRejected(ev))
	case domain.EventNewCycle:
		err = s.sendAdmin(s.formatNewCycle(ctx, ev))
	default:
		return nil
	}

	observability.RecordNotification(string(ev.Kind), err)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", ev.Kind, err)
	}
	return nil
}

func (s *TelegramSink) announce(ctx context.Context, ev domain.Event) error {
	if ev.Candidate == nil {
		return nil
	}
	c := ev.Candidate

	var (
		info    *gateway.TokenInfo
		dexPaid *bool
	)
	if s.info != nil {
		if ti, err := s.info.TokenInfo(ctx, c.Mint); err == nil {
			info = ti
		} else {
			s.logger.Debug("token info unavailable", zap.String("mint", c.Mint), zap.Error(err))
		}
		if paid, err := s.info.DexPaid(ctx, c.Mint); err == nil {
			dexPaid = &paid
		}
	}

	text := formatAnnouncement(c, ev.Validation, info, dexPaid)

	if info != nil && info.ImageURL != "" {
		photo := tgbotapi.NewPhoto(s.channelID, tgbotapi.FileURL(info.ImageURL))
		photo.Caption = text
		photo.ParseMode = tgbotapi.ModeHTML
		_, err := s.bot.Send(photo)
		if err == nil {
			return nil
		}
		s.logger.Warn("send photo failed, falling back to text", zap.String("mint", c.Mint), zap.Error(err))
	}
	return s.send(s.channelID, text)
}

func (s *TelegramSink) sendAdmin(text string) error {
	if s.adminChatID == 0 {
		return nil
	}
	return s.send(s.adminChatID, text)
}

func (s *TelegramSink) send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := s.bot.Send(msg)
	return err
}

func (s *TelegramSink) formatNewCycle(ctx context.Context, ev domain.Event) string {
	if ev.ClosedCycle == nil || s.reports == nil {
		return formatNewCycle(ev.At, nil)
	}
	return formatNewCycle(ev.At, s.reports.Generate(ctx, *ev.ClosedCycle))
}
