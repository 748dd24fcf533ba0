package service

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"kidpoints/internal/config"
	"kidpoints/internal/ledger"
	"kidpoints/internal/models"
)

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func sampleRecaps() []WeeklyRecap {
	return []WeeklyRecap{{
		Recap: ledger.Recap{
			ChildID: "k1",
			Name:    "Emma",
			Stats:   ledger.Stats{Good: 3, Bad: 1},
			TopGood: &ledger.ActionCount{ActionID: "sc_1", Label: "Did their homework", Count: 2},
		},
		Archive: models.HistoryEntry{Date: "11/03/2024", Score: 11},
	}}
}

func TestEmailServiceDisabled(t *testing.T) {
	svc, err := NewEmailService(context.Background(), config.EmailConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, svc.IsEnabled())
	assert.NoError(t, svc.SendWeeklyRecap(context.Background(), sampleRecaps()))
}

func TestEmailServiceSendWeeklyRecap(t *testing.T) {
	ses := &fakeSES{}
	core, logs := observer.New(zapcore.InfoLevel)
	svc := newEmailService(ses, config.EmailConfig{
		FromEmail:  "points@example.com",
		FromName:   "Kid Points",
		Recipients: []string{"parent@example.com"},
		Debug:      true,
	}, zap.New(core))

	require.NoError(t, svc.SendWeeklyRecap(context.Background(), nil))
	assert.Empty(t, ses.inputs, "nothing to send")

	require.NoError(t, svc.SendWeeklyRecap(context.Background(), sampleRecaps()))
	require.Len(t, ses.inputs, 1)

	in := ses.inputs[0]
	assert.Equal(t, "Kid Points <points@example.com>", aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"parent@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "Weekly recap: 11/03/2024", aws.ToString(in.Content.Simple.Subject.Data))

	text := aws.ToString(in.Content.Simple.Body.Text.Data)
	assert.Contains(t, text, "Emma: 11.0 points (3 good, 1 to improve)")
	assert.Contains(t, text, "Most frequent success: Did their homework (2x)")
	assert.NotContains(t, text, "slip")
	assert.Contains(t, aws.ToString(in.Content.Simple.Body.Html.Data), "<h3>Emma: 11.0 points</h3>")

	assert.Equal(t, 1, logs.FilterMessage("Rendered weekly recap").Len())
	sent := logs.FilterMessage("Email sent successfully").All()
	require.Len(t, sent, 1)
	assert.Equal(t, "msg-1", sent[0].ContextMap()["message_id"])
}

func TestEmailServiceSendFailure(t *testing.T) {
	ses := &fakeSES{err: errors.New("throttled")}
	svc := newEmailService(ses, config.EmailConfig{FromEmail: "a@example.com", Recipients: []string{"b@example.com"}}, zap.NewNop())

	err := svc.SendWeeklyRecap(context.Background(), sampleRecaps())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
