package gateway

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"agendo/models"
	"agendo/utils"
)

// Service is the webhook ingestion pipeline: verify, normalize, dedup,
// dispatch. Handlers stay thin; every decision about a delivery lives
// here.
type Service struct {
	Secret     string
	Dedup      DedupStore
	Dispatcher *Dispatcher

	DefaultSMSInstance string
}

// NewService wires the ingestion pipeline.
func NewService(secret string, dedup DedupStore, dispatcher *Dispatcher, defaultSMSInstance string) *Service {
	return &Service{
		Secret:             secret,
		Dedup:              dedup,
		Dispatcher:         dispatcher,
		DefaultSMSInstance: defaultSMSInstance,
	}
}

// Verify checks the delivery signature against the raw body. Deliveries
// without a configured secret pass but are logged as unverified.
func (s *Service) Verify(body []byte, signature string) bool {
	if s.Secret == "" {
		utils.GetLogger().Warn("accepting unverified webhook: no secret configured")
		return true
	}
	return VerifySignature(s.Secret, body, signature)
}

// IngestEvolution normalizes and dispatches one Evolution delivery.
// The returned request id goes into the ack body; parse failures are
// reported so the handler can ack-and-drop.
func (s *Service) IngestEvolution(ctx context.Context, body []byte, requestID string) error {
	events, err := ParseEvolution(body)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		utils.GetLogger().Debug("webhook normalized to no events",
			zap.String("requestID", requestID))
		return nil
	}
	return s.dispatch(ctx, events, requestID)
}

// IngestSMS normalizes and dispatches one SMS form delivery.
func (s *Service) IngestSMS(ctx context.Context, from, body, messageSid, to, requestID string) error {
	ev, err := ParseSMSForm(from, body, messageSid, to, s.DefaultSMSInstance)
	if err != nil {
		return err
	}
	return s.dispatch(ctx, []models.InboundEvent{ev}, requestID)
}

func (s *Service) dispatch(ctx context.Context, events []models.InboundEvent, requestID string) error {
	logger := utils.GetLogger()
	for _, ev := range events {
		if ev.Kind == models.EventKindMessage && ev.MessageID != "" {
			fresh, err := s.Dedup.MarkIfNew(ctx, ev.MessageID)
			if err != nil {
				// Redis trouble must not drop customer messages; let
				// the duplicate through rather than lose the original.
				logger.Warn("dedup store unavailable, processing anyway",
					zap.String("requestID", requestID), zap.Error(err))
			} else if !fresh {
				logger.Info("dropping duplicate message",
					zap.String("requestID", requestID),
					zap.String("messageID", ev.MessageID))
				continue
			}
		}

		if err := s.Dispatcher.Enqueue(ev); err != nil {
			// The message never made it into a lane, so its dedup mark
			// must not survive; the vendor retry has to get through.
			if ev.Kind == models.EventKindMessage && ev.MessageID != "" {
				if ferr := s.Dedup.Forget(ctx, ev.MessageID); ferr != nil {
					logger.Error("failed to release dedup mark for undelivered message",
						zap.String("requestID", requestID),
						zap.String("messageID", ev.MessageID),
						zap.Error(ferr))
				}
			}
			return fmt.Errorf("failed to enqueue event for %s: %w", ev.LaneKey(), err)
		}
		logger.Info("event dispatched",
			zap.String("requestID", requestID),
			zap.String("instance", ev.InstanceID),
			zap.String("kind", ev.Kind))
	}
	return nil
}
