package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rungroj/internal/config"

	"github.com/rs/zerolog"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

var ErrRecipientRequired = errors.New("mail: recipient email is required")

// Sender delivers the welcome mail.
type Sender interface {
	SendWelcome(ctx context.Context, email, name string) error
}

// sendClient is the part of the SendGrid client used here.
type sendClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// SendGridSender sends the welcome template through the SendGrid v3 API.
type SendGridSender struct {
	client       sendClient
	from         *sgmail.Email
	dashboardURL string
	now          func() time.Time
	logger       zerolog.Logger
}

var _ Sender = (*SendGridSender)(nil)

func NewSendGridSender(cfg config.MailConfig, logger *zerolog.Logger) (*SendGridSender, error) {
	if cfg.SendGridKey == "" {
		return nil, errors.New("mail: sendgrid api key is required")
	}
	if cfg.FromEmail == "" {
		return nil, errors.New("mail: sender address is required")
	}
	return newSendGridSender(sendgrid.NewSendClient(cfg.SendGridKey), cfg, logger), nil
}

func newSendGridSender(client sendClient, cfg config.MailConfig, logger *zerolog.Logger) *SendGridSender {
	fromName := cfg.FromName
	if fromName == "" {
		fromName = "Rungroj CarRental 🚗"
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "mail").Logger()
	}
	return &SendGridSender{
		client:       client,
		from:         sgmail.NewEmail(fromName, cfg.FromEmail),
		dashboardURL: cfg.DashboardURL,
		now:          time.Now,
		logger:       l,
	}
}

func (s *SendGridSender) SendWelcome(ctx context.Context, email, name string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrRecipientRequired
	}

	data := WelcomeData{Name: name, DashboardURL: s.dashboardURL, Year: s.now().Year()}
	html, err := RenderWelcome(data)
	if err != nil {
		return err
	}

	message := sgmail.NewSingleEmail(s.from, Subject, sgmail.NewEmail(name, email), RenderWelcomeText(data), html)
	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("mail: sendgrid request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail: sendgrid returned %d: %s", resp.StatusCode, resp.Body)
	}

	s.logger.Info().Str("to", email).Int("status", resp.StatusCode).Msg("Welcome mail sent")
	return nil
}
