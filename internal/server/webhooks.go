package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	obstracing "github.com/smallbiznis/partnersync/internal/observability/tracing"
	webhookdomain "github.com/smallbiznis/partnersync/internal/webhook/domain"
	webhookservice "github.com/smallbiznis/partnersync/internal/webhook/service"
)

// ReceivePartnerWebhook acknowledges a partner delivery once it is stored.
func (s *Server) ReceivePartnerWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodySize)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, webhookdomain.Reject(webhookdomain.RejectBadPayload, "payload too large", err))
			return
		}
		AbortWithError(c, webhookdomain.Reject(webhookdomain.RejectBadPayload, "unreadable body", err))
		return
	}

	ctx := webhookservice.WithRequestContext(c.Request.Context(), c.GetString("request_id"))
	result, err := s.webhookSvc.Receive(ctx, c.Request.Header, body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obstracing.SpanKeyEventType, result.EventType)
	c.JSON(http.StatusOK, gin.H{
		"status":   result.Status,
		"event_id": result.EventID,
	})
}
