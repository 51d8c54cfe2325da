package payments

import (
	"context"

	"github.com/BearBump/zapshift/internal/apperr"
	gw "github.com/BearBump/zapshift/internal/integrations/payments"
	"github.com/pkg/errors"
)

// HandleWebhook verifies a signed processor notification and reconciles the
// session it carries. Events that do not complete a checkout are ignored and
// reported with a nil result.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (*ConfirmResult, error) {
	parser, ok := s.gateway.(gw.WebhookParser)
	if !ok {
		return nil, errors.Wrap(apperr.NotFound, "payment provider has no webhooks")
	}
	sess, ok, err := parser.ParseWebhook(payload, signature)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return s.ApplySession(ctx, sess)
}
