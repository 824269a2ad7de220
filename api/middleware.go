package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openballot/voting-core/common"
	"github.com/openballot/voting-core/logging"
	"github.com/openballot/voting-core/tokenissuer"
)

const (
	headerSubject   = "X-Subject"
	headerS2SSecret = "X-S2S-Secret"

	ctxKeyAuth = "authContext"
)

// requireSubject picks up the identity the gateway verified and resolves its
// membership flags. The core never parses identity-provider tokens itself.
func (s *Server) requireSubject() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.GetHeader(headerSubject)
		if subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("missing subject", common.ReasonInternal))
			return
		}
		membership, err := s.eligibility.Resolve(c.Request.Context(), subject)
		if err != nil {
			logging.Logger.Errorf("failed to resolve membership for request, err=%+v", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorBody("membership lookup failed", common.ReasonInternal))
			return
		}
		c.Set(ctxKeyAuth, tokenissuer.AuthContext{
			Subject:  membership.Subject,
			IsMember: membership.IsMember,
			IsAdmin:  membership.IsAdmin,
		})
		c.Next()
	}
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := authFromContext(c)
		if !auth.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody("admin required", common.ReasonNotEligible))
			return
		}
		c.Next()
	}
}

// requireS2SSecret authenticates internal callers with the pre-shared secret,
// compared in constant time by the key manager.
func (s *Server) requireS2SSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.keyManager.VerifyS2SSecret(c.GetHeader(headerS2SSecret)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("invalid s2s secret", common.ReasonInternal))
			return
		}
		c.Next()
	}
}

func authFromContext(c *gin.Context) tokenissuer.AuthContext {
	value, ok := c.Get(ctxKeyAuth)
	if !ok {
		return tokenissuer.AuthContext{}
	}
	auth, _ := value.(tokenissuer.AuthContext)
	return auth
}

// bearerToken extracts the voting token from the Authorization header.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func errorBody(msg, reason string) gin.H {
	return gin.H{"error": msg, "reason": reason}
}
