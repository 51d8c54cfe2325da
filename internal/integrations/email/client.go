// Package email sends transactional mail through Resend.
package email

import (
	"bytes"
	"context"
	"embed"
	"html/template"

	"github.com/pkg/errors"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

type Template string

const (
	TemplatePaymentReceipt Template = "payment_receipt"
	TemplateRiderDecision  Template = "rider_decision"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type sender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type Client struct {
	sender sender
	from   string
	log    zerolog.Logger
}

// New returns a client that only logs when apiKey is empty.
func New(apiKey, from string, log zerolog.Logger) *Client {
	c := &Client{from: from, log: log}
	if apiKey != "" {
		c.sender = resend.NewClient(apiKey).Emails
	}
	return c
}

func (c *Client) Enabled() bool {
	return c.sender != nil
}

func (c *Client) Send(ctx context.Context, to, subject string, tmpl Template, data any) error {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, string(tmpl)+".html", data); err != nil {
		return errors.Wrapf(err, "render email template %s", tmpl)
	}

	if c.sender == nil {
		c.log.Info().Str("to", to).Str("template", string(tmpl)).Msg("email disabled, dropping message")
		return nil
	}

	_, err := c.sender.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{to},
		Subject: subject,
		Html:    body.String(),
	})
	if err != nil {
		return errors.Wrap(err, "send email")
	}
	return nil
}
