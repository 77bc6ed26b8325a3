package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPMailerSend(t *testing.T) {
	t.Parallel()

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	m := NewSMTPMailer(SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "mailer",
		Password: "secret",
		From:     "noreply@example.com",
	}, nil)
	m.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotFrom = from
		gotTo = to
		gotMsg = msg
		return nil
	}

	err := m.Send(context.Background(), "alice@example.com", "Task Updated: Ship it", "Hello Alice")
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Task Updated: Ship it\r\n")
	assert.Contains(t, string(gotMsg), "To: alice@example.com\r\n")
	assert.Contains(t, string(gotMsg), "\r\n\r\nHello Alice")
}

func TestSMTPMailerSendError(t *testing.T) {
	t.Parallel()

	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 25, From: "noreply@example.com"}, nil)
	m.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := m.Send(context.Background(), "bob@example.com", "subject", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bob@example.com")
}

func TestSMTPMailerCancelledContext(t *testing.T) {
	t.Parallel()

	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 25}, nil)
	m.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("sendMail should not be called with a cancelled context")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.Send(ctx, "a@b.c", "s", "b"), context.Canceled)
}

func TestLogMailerSend(t *testing.T) {
	t.Parallel()

	m := NewLogMailer(nil)
	assert.NoError(t, m.Send(context.Background(), "a@b.c", "s", "b"))
}
