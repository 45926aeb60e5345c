package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/partnersync/internal/audit/domain"
	eventprocdomain "github.com/smallbiznis/partnersync/internal/eventprocessor/domain"
	"go.uber.org/zap"
)

const maxBatchSize = 100

// ProcessEvents runs one batch synchronously. It shares the scheduler's lock.
func (s *Server) ProcessEvents(c *gin.Context) {
	batchSize, err := parseLimit(c.Query("batch_size"), s.defaultBatchSize(), maxBatchSize)
	if err != nil {
		AbortWithError(c, newValidationError("batch_size", "invalid_batch_size", "batch_size out of range"))
		return
	}

	result, err := s.runner.Run(c.Request.Context(), batchSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("events.process.triggered",
		zap.Int("batch_size", batchSize),
		zap.Int("processed", result.Processed),
		zap.Int("errors", result.Errors),
	)
	s.recordAudit(c, auditdomain.ActionEventsProcess, auditdomain.TargetBatch, "", map[string]any{
		"batch_size": batchSize,
		"processed":  result.Processed,
		"errors":     result.Errors,
	})
	c.JSON(http.StatusOK, result)
}

func (s *Server) defaultBatchSize() int {
	if s.cfg.Processor.BatchSize > 0 {
		return s.cfg.Processor.BatchSize
	}
	return eventprocdomain.DefaultBatchSize
}
