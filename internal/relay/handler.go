package relay

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"relay/internal/logger"
	"relay/pkg/errors"
	"relay/pkg/models"
)

type Handler struct {
	service BatchHandler
	logger  logger.Logger
}

func NewHandler(service BatchHandler, log logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.POST("/batches", h.HandleBatch)
}

// HandleBatch always answers 200 once the request is well formed; per
// message failures are reported in the retry list.
func (h *Handler) HandleBatch(c *gin.Context) {
	var req models.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errors.ErrValidation.WithDetail("message", "invalid batch request").WithCause(err))
		return
	}
	if err := ValidateBatch(req); err != nil {
		h.respondError(c, err)
		return
	}

	outcome := h.service.HandleBatch(c.Request.Context(), TriggerHTTP, req.Messages)
	c.JSON(http.StatusOK, outcome)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	h.logger.WarnwCtx(c.Request.Context(), "Rejected batch request", "error", err)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

// ValidateBatch rejects requests without messages, with empty ids, or with
// duplicate ids.
func ValidateBatch(req models.BatchRequest) error {
	if req.Messages == nil {
		return errors.ErrValidation.WithDetail("message", "messages is required")
	}

	seen := make(map[string]struct{}, len(req.Messages))
	for i, msg := range req.Messages {
		if msg.MessageID == "" {
			return errors.ErrValidation.WithDetail("message", fmt.Sprintf("messages[%d].message_id is required", i))
		}
		if _, dup := seen[msg.MessageID]; dup {
			return errors.ErrValidation.WithDetail("message", fmt.Sprintf("duplicate message_id %q", msg.MessageID))
		}
		seen[msg.MessageID] = struct{}{}
	}
	return nil
}
