package endpoint

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dosewatch/adherence-api/internal/middleware"
	"github.com/dosewatch/adherence-api/internal/model"
	"github.com/dosewatch/adherence-api/internal/repository"
	"github.com/dosewatch/adherence-api/pkg/errors"
	"github.com/dosewatch/adherence-api/pkg/httputil"
)

// Handler manages device registration for the notification dispatcher.
type Handler struct {
	endpoints repository.EndpointRepository
}

func NewHandler(endpoints repository.EndpointRepository) *Handler {
	return &Handler{endpoints: endpoints}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	endpoints := r.Group("/endpoints")
	{
		endpoints.POST("", h.Register)
		endpoints.GET("", h.List)
		endpoints.DELETE("/:id", h.Unregister)
	}
}

func (h *Handler) Register(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return
	}

	var req model.RegisterEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation(err.Error(), err))
		return
	}

	endpoint := &model.NotificationEndpoint{
		ID:         uuid.New(),
		UserID:     userID,
		Kind:       req.Kind,
		Address:    req.Address,
		DeviceName: req.DeviceName,
	}

	if err := h.endpoints.Create(c.Request.Context(), endpoint); err != nil {
		httputil.RespondWithError(c, errors.Internal(err))
		return
	}

	httputil.RespondWithCreated(c, endpoint)
}

func (h *Handler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return
	}

	endpoints, err := h.endpoints.ListByUser(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, errors.Internal(err))
		return
	}

	httputil.RespondWithSuccess(c, endpoints)
}

func (h *Handler) Unregister(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid endpoint ID", err))
		return
	}

	deleted, err := h.endpoints.Delete(c.Request.Context(), id, userID)
	if err != nil {
		httputil.RespondWithError(c, errors.Internal(err))
		return
	}
	if !deleted {
		// Covers both a nonexistent id and someone else's endpoint; the
		// response does not distinguish the two.
		httputil.RespondWithError(c, errors.NotFound("endpoint", nil))
		return
	}

	httputil.RespondWithSuccess(c, nil)
}
