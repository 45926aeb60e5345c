package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/partnersync/internal/audit/domain"
	eventdomain "github.com/smallbiznis/partnersync/internal/webhookevent/domain"
)

const defaultEventListLimit = 50

func (s *Server) ListEvents(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"), defaultEventListLimit, maxListLimit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	events, err := s.eventSvc.List(c.Request.Context(), eventdomain.ListRequest{
		Status:    strings.ToUpper(strings.TrimSpace(c.Query("status"))),
		AccountID: strings.TrimSpace(c.Query("account_id")),
		Limit:     limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events})
}

func (s *Server) RequeueEvent(c *gin.Context) {
	event, err := s.eventSvc.Requeue(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.ActionEventRequeue, auditdomain.TargetEvent, event.ID, map[string]any{
		"external_event_id": event.ExternalEventID,
		"event_type":        event.EventType,
	})
	c.JSON(http.StatusOK, gin.H{"data": event})
}
