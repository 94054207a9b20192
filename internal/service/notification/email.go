package notification

import (
	"context"

	"github.com/dosewatch/adherence-api/internal/email"
	"github.com/dosewatch/adherence-api/internal/model"
)

// emailTransport covers relatives who registered a mail address instead
// of a push-capable device.
type emailTransport struct {
	emailSvc email.Service
}

func NewEmailTransport(emailSvc email.Service) Transport {
	return &emailTransport{emailSvc: emailSvc}
}

func (t *emailTransport) Kind() model.EndpointKind {
	return model.EndpointKindEmail
}

func (t *emailTransport) Send(ctx context.Context, endpoint *model.NotificationEndpoint, payload *model.NotificationPayload) error {
	return t.emailSvc.SendCustom(ctx, endpoint.Address, payload.Title, payload.Body)
}
