package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	mail "github.com/go-mail/mail/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/reimbursement-portal-api/pkg/config"
)

type recordingDialer struct {
	sent []*mail.Message
	err  error
}

func (d *recordingDialer) DialAndSend(m ...*mail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

func TestSendNotConfigured(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{})
	assert.False(t, m.Configured())
	err := m.Send(context.Background(), Message{To: []string{"a@b.c"}})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestSendBuildsMessage(t *testing.T) {
	d := &recordingDialer{}
	m := &SMTPMailer{from: "Portal <no-reply@cu.in>", dialer: d}

	err := m.Send(context.Background(), Message{
		To:       []string{"asha@cumail.in"},
		Subject:  "Request Confirmation",
		HTMLBody: "<p>REQ25040001</p>",
		Attachments: []Attachment{
			{Filename: "reimbursement_request_REQ25040001.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3")},
		},
	})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	var buf bytes.Buffer
	_, err = d.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: Request Confirmation")
	assert.Contains(t, raw, "To: asha@cumail.in")
	assert.Contains(t, raw, `filename="reimbursement_request_REQ25040001.pdf"`)
	assert.Contains(t, raw, "Content-Type: application/pdf")
}

func TestSendWrapsTransportErrors(t *testing.T) {
	m := &SMTPMailer{from: "x@y.z", dialer: &recordingDialer{err: errors.New("connection refused")}}
	err := m.Send(context.Background(), Message{To: []string{"a@b.c"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSendHonoursCancelledContext(t *testing.T) {
	d := &recordingDialer{}
	m := &SMTPMailer{from: "x@y.z", dialer: d}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, m.Send(ctx, Message{To: []string{"a@b.c"}}), context.Canceled)
	assert.Empty(t, d.sent)
}
