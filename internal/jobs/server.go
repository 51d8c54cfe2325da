package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BearBump/zapshift/internal/integrations/email"
	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type Mailer interface {
	SendPaymentReceipt(ctx context.Context, to string, r email.PaymentReceipt) error
	SendRiderDecision(ctx context.Context, to string, d email.RiderDecision) error
}

type Server struct {
	srv    *asynq.Server
	mailer Mailer
	log    zerolog.Logger
}

func NewServer(redisAddr string, concurrency int, mailer Mailer, log zerolog.Logger) *Server {
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{queueDefault: 1},
		},
	)
	return &Server{srv: srv, mailer: mailer, log: log}
}

func (s *Server) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePaymentReceipt, s.handlePaymentReceipt)
	mux.HandleFunc(TypeRiderDecision, s.handleRiderDecision)
	return mux
}

// Start runs the processors in the background; Shutdown waits for in-flight tasks.
func (s *Server) Start() error {
	s.log.Info().Msg("starting job server")
	return s.srv.Start(s.Mux())
}

func (s *Server) Shutdown() {
	s.log.Info().Msg("stopping job server")
	s.srv.Shutdown()
}

func (s *Server) handlePaymentReceipt(ctx context.Context, t *asynq.Task) error {
	var p PaymentReceiptPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return errors.Wrapf(asynq.SkipRetry, "unmarshal payload: %v", err)
	}

	l := s.log.With().Str("type", t.Type()).Str("to", p.To).Str("tracking_id", p.TrackingID).Logger()
	l.Info().Msg("processing email task")

	err := s.mailer.SendPaymentReceipt(ctx, p.To, email.PaymentReceipt{
		TrackingID:    p.TrackingID,
		TransactionID: p.TransactionID,
		Amount:        fmt.Sprintf("%.2f", p.Amount),
		Currency:      strings.ToUpper(p.Currency),
		PaidAt:        p.PaidAt.UTC().Format(time.RFC1123),
	})
	if err != nil {
		l.Error().Err(err).Msg("email task failed")
		return err
	}
	return nil
}

func (s *Server) handleRiderDecision(ctx context.Context, t *asynq.Task) error {
	var p RiderDecisionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return errors.Wrapf(asynq.SkipRetry, "unmarshal payload: %v", err)
	}

	l := s.log.With().Str("type", t.Type()).Str("to", p.To).Str("status", p.Status).Logger()
	l.Info().Msg("processing email task")

	if err := s.mailer.SendRiderDecision(ctx, p.To, email.RiderDecision{Name: p.Name, Status: p.Status}); err != nil {
		l.Error().Err(err).Msg("email task failed")
		return err
	}
	return nil
}
