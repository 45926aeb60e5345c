package server

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/partnersync/internal/authorization"
	"go.uber.org/zap"
)

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeWithContext(c *gin.Context, object string, action string) error {
	key, ok := operatorKeyFromContext(c)
	if !ok {
		return ErrUnauthorized
	}

	err := s.authzSvc.Authorize(c.Request.Context(), key.Subject(), key.Role, object, action)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, authorization.ErrForbidden):
		return ErrForbidden
	case errors.Is(err, authorization.ErrInvalidRole),
		errors.Is(err, authorization.ErrInvalidActor):
		s.log.Warn("authorization.invalid_subject",
			zap.String("key_id", key.KeyID),
			zap.String("role", key.Role),
			zap.Error(err),
		)
		return ErrForbidden
	default:
		return err
	}
}
