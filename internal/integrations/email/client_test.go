package email

import (
	"context"
	"errors"
	"testing"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []*resend.SendEmailRequest
	err  error
}

func (f *fakeSender) SendWithContext(_ context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, params)
	return &resend.SendEmailResponse{Id: "em_1"}, nil
}

func TestSendPaymentReceipt(t *testing.T) {
	fs := &fakeSender{}
	c := &Client{sender: fs, from: "Zap Shift <noreply@zap.dev>", log: zerolog.Nop()}

	err := c.SendPaymentReceipt(context.Background(), "a@b.c", PaymentReceipt{
		TrackingID: "ZAP-1-ABCDEF", TransactionID: "pi_1", Amount: "12.50", Currency: "USD",
	})
	require.NoError(t, err)
	require.Len(t, fs.sent, 1)
	require.Equal(t, []string{"a@b.c"}, fs.sent[0].To)
	require.Equal(t, "Zap Shift <noreply@zap.dev>", fs.sent[0].From)
	require.Contains(t, fs.sent[0].Subject, "ZAP-1-ABCDEF")
	require.Contains(t, fs.sent[0].Html, "pi_1")
	require.Contains(t, fs.sent[0].Html, "12.50 USD")
}

func TestSendRiderDecision(t *testing.T) {
	fs := &fakeSender{}
	c := &Client{sender: fs, log: zerolog.Nop()}

	require.NoError(t, c.SendRiderDecision(context.Background(), "r@b.c", RiderDecision{Name: "Rahim", Status: "accepted"}))
	require.Contains(t, fs.sent[0].Html, "Rahim")
	require.Contains(t, fs.sent[0].Html, "accepted")
}

func TestSend_Disabled(t *testing.T) {
	c := New("", "x@y.z", zerolog.Nop())
	require.False(t, c.Enabled())
	require.NoError(t, c.SendRiderDecision(context.Background(), "r@b.c", RiderDecision{Status: "rejected"}))
}

func TestSend_Errors(t *testing.T) {
	c := &Client{sender: &fakeSender{err: errors.New("rate limited")}, log: zerolog.Nop()}
	err := c.SendRiderDecision(context.Background(), "r@b.c", RiderDecision{Status: "accepted"})
	require.ErrorContains(t, err, "send email")

	err = c.Send(context.Background(), "r@b.c", "s", Template("missing"), nil)
	require.ErrorContains(t, err, "render email template")
}
