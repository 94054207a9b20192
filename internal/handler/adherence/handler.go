package adherence

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dosewatch/adherence-api/internal/middleware"
	"github.com/dosewatch/adherence-api/internal/service/adherence"
	"github.com/dosewatch/adherence-api/pkg/errors"
	"github.com/dosewatch/adherence-api/pkg/httputil"
)

type Handler struct {
	service *adherence.Service
}

func NewHandler(service *adherence.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/adherence/report", h.Report)
}

func (h *Handler) Report(c *gin.Context) {
	patientID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return
	}

	days := 7
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			httputil.RespondWithError(c, errors.Validation("days must be between 1 and 365", err))
			return
		}
		days = parsed
	}

	loc := time.UTC
	if tz := c.Query("tz"); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			httputil.RespondWithError(c, errors.Validation("invalid timezone", err))
			return
		}
		loc = parsed
	}

	report, err := h.service.Report(c.Request.Context(), patientID, days, loc)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, report)
}
