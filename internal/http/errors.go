package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"sitewatch/internal/domain"
)

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	writeError(c, h.logger, err)
}

// writeError renders err as {"error": message[, "details": [...]]}. Only
// the client-safe message leaves the process; causes go to the log.
func writeError(c *gin.Context, logger logrus.FieldLogger, err error) {
	de := domain.AsError(err)
	status := statusFor(de.Kind)

	entry := logger.WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
		"status": status,
		"kind":   de.Kind.String(),
	})
	switch de.Kind {
	case domain.KindInternal:
		entry.WithError(de.Err).Error(de.Message)
	case domain.KindUnauthorized:
		entry.WithField("reason", string(de.Reason)).Info("request unauthorized")
	}

	body := gin.H{"error": de.Message}
	if len(de.Details) > 0 {
		body["details"] = de.Details
	}
	c.AbortWithStatusJSON(status, body)
}
