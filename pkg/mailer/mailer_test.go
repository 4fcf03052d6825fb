package mailer

import (
	"context"
	"errors"
	"testing"

	mail "github.com/go-mail/mail/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/provider-admission-api/pkg/config"
)

type recordingDialer struct {
	sent []*mail.Message
	err  error
}

func (d *recordingDialer) DialAndSend(m ...*mail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func TestNewSMTPSenderRequiresHost(t *testing.T) {
	_, err := NewSMTPSender(config.NotificationConfig{})
	require.Error(t, err)

	sender, err := NewSMTPSender(config.NotificationConfig{SMTPHost: "smtp.example.com", From: "Admissions <no-reply@example.com>"})
	require.NoError(t, err)
	d, ok := sender.dialer.(*mail.Dialer)
	require.True(t, ok)
	assert.Equal(t, 587, d.Port)
	assert.Equal(t, mail.MandatoryStartTLS, d.StartTLSPolicy)
	assert.Equal(t, "smtp.example.com", d.TLSConfig.ServerName)
}

func TestSMTPSenderSend(t *testing.T) {
	d := &recordingDialer{}
	sender := &SMTPSender{dialer: d, from: "no-reply@example.com"}

	err := sender.Send(context.Background(), Message{To: []string{"jane@example.com"}, Subject: "Application received", HTML: "<p>hi</p>"})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"Application received"}, d.sent[0].GetHeader("Subject"))
	assert.Equal(t, []string{"jane@example.com"}, d.sent[0].GetHeader("To"))

	assert.Error(t, sender.Send(context.Background(), Message{}))

	d.err = errors.New("connection refused")
	err = sender.Send(context.Background(), Message{To: []string{"jane@example.com"}})
	assert.ErrorIs(t, err, d.err)
}

func TestSMTPSenderHonoursCancelledContext(t *testing.T) {
	d := &recordingDialer{}
	sender := &SMTPSender{dialer: d, from: "no-reply@example.com"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sender.Send(ctx, Message{To: []string{"a@example.com"}}), context.Canceled)
	assert.Empty(t, d.sent)
}

func TestLogSender(t *testing.T) {
	sender := NewLogSender(nil)
	assert.NoError(t, sender.Send(context.Background(), Message{To: []string{"a@example.com"}}))
	assert.Error(t, sender.Send(context.Background(), Message{}))
}
