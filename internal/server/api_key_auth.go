package server

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/partnersync/internal/apikey/domain"
	obscontext "github.com/smallbiznis/partnersync/internal/observability/context"
	"go.uber.org/zap"
)

const contextOperatorKey = "operator_key"

// OperatorAuthRequired authenticates internal routes with an operator API key.
func (s *Server) OperatorAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		key, err := s.apiKeySvc.Authenticate(c.Request.Context(), raw)
		if err != nil {
			if !errors.Is(err, apikeydomain.ErrInvalidKey) {
				s.log.Warn("operator.auth.failed", zap.Error(err))
			}
			AbortWithError(c, err)
			return
		}
		if key == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), obscontext.ActorTypeOperator, key.KeyID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextOperatorKey, key)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(strings.TrimSpace(header))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func operatorKeyFromContext(c *gin.Context) (*apikeydomain.OperatorKey, bool) {
	value, ok := c.Get(contextOperatorKey)
	if !ok {
		return nil, false
	}
	key, ok := value.(*apikeydomain.OperatorKey)
	return key, ok && key != nil
}
