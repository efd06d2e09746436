package mail

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/campusmind/portal/backend/internal/config"
	"github.com/campusmind/portal/backend/internal/logging"
	triagemodel "github.com/campusmind/portal/backend/internal/model/triage"
)

var (
	ErrNotConfigured = errors.New("mail is not configured")
	ErrInvalidForm   = errors.New("invalid form data")
)

const defaultSenderName = "CampusMind Support"

// SupportRequest is the payload of the support contact form.
type SupportRequest struct {
	ToEmail   string `json:"toEmail"`
	FromEmail string `json:"fromEmail,omitempty"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// Service composes CampusMind emails and hands them to a Sender.
type Service struct {
	sender       Sender
	from         mail.Address
	escalationTo string
	configured   bool
	logger       *zap.Logger
}

// NewService creates the mail service. A nil sender defaults to SMTP with cfg.
func NewService(cfg config.MailConfig, sender Sender, logger *zap.Logger) *Service {
	if sender == nil {
		sender = NewSMTPSender(cfg)
	}
	name := cfg.SenderName
	if name == "" {
		name = defaultSenderName
	}
	return &Service{
		sender:       sender,
		from:         mail.Address{Name: name, Address: cfg.User},
		escalationTo: strings.TrimSpace(cfg.EscalationTo),
		configured:   cfg.Configured(),
		logger:       logging.OrNop(logger).Named("mail"),
	}
}

// Configured reports whether SMTP credentials are present.
func (s *Service) Configured() bool {
	return s.configured
}

// SendSupportEmail validates the form and delivers it.
func (s *Service) SendSupportEmail(ctx context.Context, req SupportRequest) error {
	req, err := validateSupport(req)
	if err != nil {
		return err
	}
	if !s.configured {
		return ErrNotConfigured
	}

	body := req.Body
	msg := Message{
		From:    s.from,
		To:      []string{req.ToEmail},
		Subject: req.Subject,
	}
	if req.FromEmail != "" {
		body += "\n\n--- \nThis message was sent from " + req.FromEmail
		msg.ReplyTo = req.FromEmail
	}
	msg.Text = body
	msg.HTML = toHTML(body)

	if err := s.sender.Send(ctx, msg); err != nil {
		s.logger.Error("support email failed", zap.String("to", req.ToEmail), zap.Error(err))
		return err
	}
	s.logger.Info("support email sent", zap.String("to", req.ToEmail))
	return nil
}

// NotifyEscalation alerts the support address that a conversation needs a professional.
func (s *Service) NotifyEscalation(ctx context.Context, userID, input string, result triagemodel.Result) error {
	if !s.configured || s.escalationTo == "" {
		return nil
	}

	text := fmt.Sprintf(
		"A conversation was escalated to a professional.\n\nUser: %s\nCategory: %s\n\nMessage:\n%s\n\nReply sent:\n%s",
		userID, result.Category, input, result.Text(),
	)
	return s.sender.Send(ctx, Message{
		From:    s.from,
		To:      []string{s.escalationTo},
		Subject: "CampusMind escalation: " + string(result.Category),
		Text:    text,
		HTML:    toHTML(text),
	})
}

// SendConfirmation emails a plain notice to a single recipient.
func (s *Service) SendConfirmation(ctx context.Context, to, subject, text string) error {
	if !s.configured {
		return ErrNotConfigured
	}
	return s.sender.Send(ctx, Message{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Text:    text,
		HTML:    toHTML(text),
	})
}

func validateSupport(req SupportRequest) (SupportRequest, error) {
	req.ToEmail = strings.TrimSpace(req.ToEmail)
	req.FromEmail = strings.TrimSpace(req.FromEmail)
	req.Subject = strings.TrimSpace(req.Subject)

	if !ValidAddress(req.ToEmail) {
		return req, fmt.Errorf("%w: invalid recipient", ErrInvalidForm)
	}
	if req.FromEmail != "" && !ValidAddress(req.FromEmail) {
		return req, fmt.Errorf("%w: invalid sender", ErrInvalidForm)
	}
	if req.Subject == "" || strings.TrimSpace(req.Body) == "" {
		return req, fmt.Errorf("%w: subject and body are required", ErrInvalidForm)
	}
	return req, nil
}

// ValidAddress reports whether s is a bare email address.
func ValidAddress(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s[strings.LastIndex(s, "@"):], ".")
}

func toHTML(text string) string {
	return strings.ReplaceAll(html.EscapeString(text), "\n", "<br>")
}
