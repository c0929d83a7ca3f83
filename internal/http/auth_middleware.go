package http

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"sitewatch/internal/auth"
	"sitewatch/internal/domain"
)

// ContextUserIDKey holds the authenticated user id in the gin context.
const ContextUserIDKey = "userID"

const bearerPrefix = "Bearer "

var errVerifierMissing = errors.New("token verifier not configured")

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// AuthGate rejects requests without a valid bearer token and stores the
// token subject under ContextUserIDKey.
func AuthGate(verifier TokenVerifier, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			writeError(c, logger, domain.Unauthorized(domain.ReasonMissingHeader, "Authorization header required"))
			return
		}

		// net/http strips trailing spaces, so "Bearer " arrives as "Bearer"
		if header != strings.TrimSpace(bearerPrefix) && !strings.HasPrefix(header, bearerPrefix) {
			writeError(c, logger, domain.Unauthorized(domain.ReasonBadScheme, "Bearer token required"))
			return
		}

		token := strings.TrimPrefix(header, bearerPrefix)
		if strings.TrimSpace(token) == "" || header == strings.TrimSpace(bearerPrefix) {
			writeError(c, logger, domain.Unauthorized(domain.ReasonMissingToken, "Token not provided"))
			return
		}

		if verifier == nil {
			writeError(c, logger, domain.Internal("Server configuration error", errVerifierMissing))
			return
		}

		// exactly one space separates scheme and token
		if token != strings.TrimSpace(token) {
			writeError(c, logger, domain.Unauthorized(domain.ReasonTokenMalformed, "Malformed token"))
			return
		}

		userID, err := verifier.Verify(token)
		if err != nil {
			writeError(c, logger, verificationFailure(err))
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

func verificationFailure(err error) *domain.Error {
	var verr *auth.VerificationError
	if !errors.As(err, &verr) {
		return domain.Unauthorized(domain.ReasonTokenInvalid, "Invalid token")
	}
	switch verr.Kind {
	case auth.Expired:
		return domain.Unauthorized(domain.ReasonTokenExpired, "Token expired")
	case auth.Malformed:
		return domain.Unauthorized(domain.ReasonTokenMalformed, "Malformed token")
	case auth.NotYetValid:
		return domain.Unauthorized(domain.ReasonTokenNotActive, "Token not active")
	default:
		return domain.Unauthorized(domain.ReasonTokenInvalid, "Invalid token")
	}
}

func userIDFrom(c *gin.Context) string {
	return c.GetString(ContextUserIDKey)
}
