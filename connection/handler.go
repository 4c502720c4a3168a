package connection

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/medscribe/errors"
	"github.com/kbukum/medscribe/logger"
)

// Handler serves GET /api/connection-details.
type Handler struct {
	issuer *Issuer
	log    *logger.Logger
}

// NewHandler creates the endpoint handler.
func NewHandler(issuer *Issuer, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Get("connection")
	}
	return &Handler{issuer: issuer, log: log}
}

// Register mounts the endpoint on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET(Path, h.Get)
}

// Get answers with fresh details. Failures are logged and returned as a
// plain-text 500 carrying only the error message.
func (h *Handler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	details, err := h.issuer.Issue(ctx, c.Query("roomName"), c.Query("participantName"))
	if err != nil {
		msg := err.Error()
		if appErr, ok := apperrors.AsAppError(err); ok {
			msg = appErr.Message
		}
		h.log.WithContext(ctx).Error("connection details failed", logger.Fields(logger.FieldError, err.Error()))
		c.String(http.StatusInternalServerError, msg)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, details)
}
