package notification

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosewatch/adherence-api/internal/model"
	"github.com/dosewatch/adherence-api/pkg/logger"
)

type fakeEndpointRepo struct {
	mu        sync.Mutex
	endpoints map[uuid.UUID]*model.NotificationEndpoint
	deleted   []uuid.UUID
}

func newFakeEndpointRepo(endpoints ...*model.NotificationEndpoint) *fakeEndpointRepo {
	repo := &fakeEndpointRepo{endpoints: make(map[uuid.UUID]*model.NotificationEndpoint)}
	for _, e := range endpoints {
		repo.endpoints[e.ID] = e
	}
	return repo
}

func (r *fakeEndpointRepo) Create(_ context.Context, endpoint *model.NotificationEndpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[endpoint.ID] = endpoint
	return nil
}

func (r *fakeEndpointRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*model.NotificationEndpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.NotificationEndpoint
	for _, e := range r.endpoints {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEndpointRepo) Delete(_ context.Context, id, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	endpoint, ok := r.endpoints[id]
	if !ok || endpoint.UserID != userID {
		return false, nil
	}
	delete(r.endpoints, id)
	r.deleted = append(r.deleted, id)
	return true, nil
}

type fakeTransport struct {
	kind model.EndpointKind

	mu   sync.Mutex
	sent []uuid.UUID
	errs map[uuid.UUID]error
}

func newFakeTransport(kind model.EndpointKind) *fakeTransport {
	return &fakeTransport{kind: kind, errs: make(map[uuid.UUID]error)}
}

func (t *fakeTransport) Kind() model.EndpointKind { return t.kind }

func (t *fakeTransport) Send(_ context.Context, endpoint *model.NotificationEndpoint, _ *model.NotificationPayload) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err, ok := t.errs[endpoint.ID]; ok {
		return err
	}
	t.sent = append(t.sent, endpoint.ID)
	return nil
}

func (t *fakeTransport) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func endpoint(userID uuid.UUID, kind model.EndpointKind) *model.NotificationEndpoint {
	return &model.NotificationEndpoint{
		ID:      uuid.New(),
		UserID:  userID,
		Kind:    kind,
		Address: "addr-" + uuid.NewString(),
	}
}

func payload() *model.NotificationPayload {
	return &model.NotificationPayload{Title: "Time for your medication", Body: "Metformin 500mg"}
}

func TestNotifyFansOutToAllEndpoints(t *testing.T) {
	userID := uuid.New()
	push := endpoint(userID, model.EndpointKindPush)
	email := endpoint(userID, model.EndpointKindEmail)
	other := endpoint(uuid.New(), model.EndpointKindPush)

	pushTransport := newFakeTransport(model.EndpointKindPush)
	emailTransport := newFakeTransport(model.EndpointKindEmail)
	svc := NewService(newFakeEndpointRepo(push, email, other), testLogger(), nil, pushTransport, emailTransport)

	require.NoError(t, svc.Notify(context.Background(), userID, payload()))

	assert.Equal(t, []uuid.UUID{push.ID}, pushTransport.sent)
	assert.Equal(t, []uuid.UUID{email.ID}, emailTransport.sent)
}

func TestNotifyNoEndpointsIsNoop(t *testing.T) {
	svc := NewService(newFakeEndpointRepo(), testLogger(), nil, newFakeTransport(model.EndpointKindPush))
	require.NoError(t, svc.Notify(context.Background(), uuid.New(), payload()))
}

func TestNotifyPartialFailureDoesNotError(t *testing.T) {
	userID := uuid.New()
	healthy := endpoint(userID, model.EndpointKindPush)
	broken := endpoint(userID, model.EndpointKindPush)

	transport := newFakeTransport(model.EndpointKindPush)
	transport.errs[broken.ID] = errors.New("upstream 500")
	repo := newFakeEndpointRepo(healthy, broken)
	svc := NewService(repo, testLogger(), nil, transport)

	require.NoError(t, svc.Notify(context.Background(), userID, payload()))
	assert.Equal(t, 1, transport.sentCount())
	// A transient failure does not prune the endpoint.
	assert.Empty(t, repo.deleted)
}

func TestNotifyPrunesGoneEndpoints(t *testing.T) {
	userID := uuid.New()
	gone := endpoint(userID, model.EndpointKindPush)

	transport := newFakeTransport(model.EndpointKindPush)
	transport.errs[gone.ID] = ErrEndpointGone
	repo := newFakeEndpointRepo(gone)
	svc := NewService(repo, testLogger(), nil, transport)

	require.NoError(t, svc.Notify(context.Background(), userID, payload()))
	assert.Equal(t, []uuid.UUID{gone.ID}, repo.deleted)

	// The pruned endpoint no longer receives anything.
	require.NoError(t, svc.Notify(context.Background(), userID, payload()))
	assert.Equal(t, 0, transport.sentCount())
}

func TestNotifySkipsUnknownKind(t *testing.T) {
	userID := uuid.New()
	email := endpoint(userID, model.EndpointKindEmail)

	transport := newFakeTransport(model.EndpointKindPush)
	svc := NewService(newFakeEndpointRepo(email), testLogger(), nil, transport)

	require.NoError(t, svc.Notify(context.Background(), userID, payload()))
	assert.Equal(t, 0, transport.sentCount())
}

func TestNotifyRequiresTitle(t *testing.T) {
	svc := NewService(newFakeEndpointRepo(), testLogger(), nil)
	assert.Error(t, svc.Notify(context.Background(), uuid.New(), &model.NotificationPayload{Body: "no title"}))
	assert.Error(t, svc.Notify(context.Background(), uuid.New(), nil))
}
