package dose

import (
	"github.com/gin-gonic/gin"

	"github.com/dosewatch/adherence-api/internal/middleware"
	"github.com/dosewatch/adherence-api/internal/model"
	"github.com/dosewatch/adherence-api/internal/service/dose"
	"github.com/dosewatch/adherence-api/pkg/errors"
	"github.com/dosewatch/adherence-api/pkg/httputil"
)

type Handler struct {
	service *dose.Service
}

func NewHandler(service *dose.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doses := r.Group("/doses")
	{
		doses.POST("/acknowledge", h.Acknowledge)
		doses.POST("/sync", h.Sync)
	}
}

func (h *Handler) Acknowledge(c *gin.Context) {
	patientID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return
	}

	var req model.AcknowledgeDoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation(err.Error(), err))
		return
	}

	event, err := h.service.Acknowledge(c.Request.Context(), patientID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, event)
}

func (h *Handler) Sync(c *gin.Context) {
	patientID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return
	}

	var req model.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation(err.Error(), err))
		return
	}

	resp, err := h.service.Reconcile(c.Request.Context(), patientID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, resp)
}
