package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"kidpoints/internal/config"
	"kidpoints/internal/ledger"
	"kidpoints/internal/models"
)

// sesAPI is the part of the SES client the service uses
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService sends the weekly recap via Amazon SES
type EmailService struct {
	client     sesAPI
	fromEmail  string
	fromName   string
	recipients []string
	enabled    bool
	debug      bool
	logger     *zap.Logger
}

// NewEmailService creates a new email service. It is disabled when no sender
// address or no recipient is configured.
func NewEmailService(ctx context.Context, cfg config.EmailConfig, logger *zap.Logger) (*EmailService, error) {
	if cfg.FromEmail == "" || len(cfg.Recipients) == 0 {
		logger.Info("Email service disabled: SES_FROM_EMAIL or recipients not configured")
		return &EmailService{logger: logger}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("Email service enabled",
		zap.String("from", cfg.FromEmail),
		zap.String("region", cfg.AWSRegion),
		zap.Int("recipients", len(cfg.Recipients)),
	)
	return newEmailService(sesv2.NewFromConfig(awsCfg), cfg, logger), nil
}

func newEmailService(client sesAPI, cfg config.EmailConfig, logger *zap.Logger) *EmailService {
	return &EmailService{
		client:     client,
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
		recipients: cfg.Recipients,
		enabled:    true,
		debug:      cfg.Debug,
		logger:     logger,
	}
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// WeeklyRecap is one child's archived week
type WeeklyRecap struct {
	Recap   ledger.Recap
	Archive models.HistoryEntry
}

var recapHTML = template.Must(template.New("recap").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
	<h2>Weekly recap</h2>
	{{range .}}
	<div style="margin-bottom: 20px;">
		<h3>{{.Recap.Name}}: {{printf "%.1f" .Archive.Score}} points</h3>
		<p>{{.Recap.Stats.Good}} good actions, {{.Recap.Stats.Bad}} to improve.</p>
		{{with .Recap.TopGood}}<p>Most frequent success: {{.Label}} ({{.Count}}x)</p>{{end}}
		{{with .Recap.TopBad}}<p>Most frequent slip: {{.Label}} ({{.Count}}x)</p>{{end}}
	</div>
	{{end}}
</body>
</html>`))

// SendWeeklyRecap mails the recaps to every configured recipient
func (s *EmailService) SendWeeklyRecap(ctx context.Context, recaps []WeeklyRecap) error {
	if !s.enabled {
		s.logger.Debug("Skipping weekly recap email (service disabled)")
		return nil
	}
	if len(recaps) == 0 {
		return nil
	}

	var html bytes.Buffer
	if err := recapHTML.Execute(&html, recaps); err != nil {
		return fmt.Errorf("failed to render recap: %w", err)
	}

	var text strings.Builder
	text.WriteString("Weekly recap\n\n")
	for _, r := range recaps {
		fmt.Fprintf(&text, "%s: %.1f points (%d good, %d to improve)\n",
			r.Recap.Name, r.Archive.Score, r.Recap.Stats.Good, r.Recap.Stats.Bad)
		if r.Recap.TopGood != nil {
			fmt.Fprintf(&text, "  Most frequent success: %s (%dx)\n", r.Recap.TopGood.Label, r.Recap.TopGood.Count)
		}
		if r.Recap.TopBad != nil {
			fmt.Fprintf(&text, "  Most frequent slip: %s (%dx)\n", r.Recap.TopBad.Label, r.Recap.TopBad.Count)
		}
	}

	subject := fmt.Sprintf("Weekly recap: %s", recaps[0].Archive.Date)
	if s.debug {
		s.logger.Info("Rendered weekly recap", zap.String("subject", subject), zap.String("text", text.String()))
	}
	return s.sendEmail(ctx, subject, html.String(), text.String())
}

func (s *EmailService) sendEmail(ctx context.Context, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: s.recipients,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	s.logger.Debug("Calling SES SendEmail", zap.String("subject", subject), zap.Strings("to", s.recipients))
	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	fields := []zap.Field{zap.String("subject", subject)}
	if result.MessageId != nil {
		fields = append(fields, zap.String("message_id", *result.MessageId))
	}
	s.logger.Info("Email sent successfully", fields...)
	return nil
}
