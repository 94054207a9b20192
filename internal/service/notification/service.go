package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dosewatch/adherence-api/internal/model"
	"github.com/dosewatch/adherence-api/internal/repository"
	"github.com/dosewatch/adherence-api/pkg/logger"
	"github.com/dosewatch/adherence-api/pkg/metrics"
)

// ErrEndpointGone is returned by a transport when the target endpoint is
// permanently invalid and should be pruned.
var ErrEndpointGone = errors.New("notification endpoint permanently invalid")

// Transport delivers one payload to one endpoint of its kind.
type Transport interface {
	Kind() model.EndpointKind
	Send(ctx context.Context, endpoint *model.NotificationEndpoint, payload *model.NotificationPayload) error
}

type Service interface {
	// Notify fans the payload out to every registered endpoint of the
	// user. Per-endpoint failures are logged and never surface to the
	// caller; permanently invalid endpoints are pruned.
	Notify(ctx context.Context, userID uuid.UUID, payload *model.NotificationPayload) error
}

type service struct {
	endpoints  repository.EndpointRepository
	transports map[model.EndpointKind]Transport
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewService(endpoints repository.EndpointRepository, logger *logger.Logger, m *metrics.Metrics, transports ...Transport) Service {
	byKind := make(map[model.EndpointKind]Transport, len(transports))
	for _, t := range transports {
		byKind[t.Kind()] = t
	}
	return &service{
		endpoints:  endpoints,
		transports: byKind,
		logger:     logger,
		metrics:    m,
	}
}

func (s *service) Notify(ctx context.Context, userID uuid.UUID, payload *model.NotificationPayload) error {
	if payload == nil || payload.Title == "" {
		return fmt.Errorf("notification payload requires a title")
	}

	endpoints, err := s.endpoints.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list endpoints: %w", err)
	}
	if len(endpoints) == 0 {
		s.logger.Debug("no endpoints registered", "user_id", userID.String())
		return nil
	}

	var wg sync.WaitGroup
	for _, endpoint := range endpoints {
		wg.Add(1)
		go func(endpoint *model.NotificationEndpoint) {
			defer wg.Done()
			s.deliver(ctx, endpoint, payload)
		}(endpoint)
	}
	wg.Wait()

	return nil
}

func (s *service) deliver(ctx context.Context, endpoint *model.NotificationEndpoint, payload *model.NotificationPayload) {
	transport, ok := s.transports[endpoint.Kind]
	if !ok {
		s.logger.Warn("no transport for endpoint kind",
			"kind", string(endpoint.Kind), "endpoint_id", endpoint.ID.String())
		return
	}

	err := transport.Send(ctx, endpoint, payload)
	if err == nil {
		if s.metrics != nil {
			s.metrics.NotificationsSent.Inc()
		}
		return
	}

	if errors.Is(err, ErrEndpointGone) {
		if _, pruneErr := s.endpoints.Delete(ctx, endpoint.ID, endpoint.UserID); pruneErr != nil {
			s.logger.Error(pruneErr, "failed to prune endpoint", "endpoint_id", endpoint.ID.String())
		} else if s.metrics != nil {
			s.metrics.EndpointsPruned.Inc()
		}
		return
	}

	if s.metrics != nil {
		s.metrics.NotificationsFailed.Inc()
	}
	s.logger.Error(err, "failed to deliver notification",
		"endpoint_id", endpoint.ID.String(), "kind", string(endpoint.Kind))
}
