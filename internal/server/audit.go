package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/partnersync/internal/audit/domain"
	"go.uber.org/zap"
)

// recordAudit never fails the request; a lost entry is logged.
func (s *Server) recordAudit(c *gin.Context, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.Record(c.Request.Context(), action, targetType, targetID, metadata); err != nil {
		s.log.Warn("audit.record_failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	if s.auditSvc == nil {
		AbortWithError(c, ErrNotFound)
		return
	}
	limit, err := parseLimit(c.Query("limit"), 50, 250)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	logs, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListRequest{
		Action:     strings.TrimSpace(c.Query("action")),
		TargetType: strings.TrimSpace(c.Query("target_type")),
		TargetID:   strings.TrimSpace(c.Query("target_id")),
		Limit:      limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs})
}
