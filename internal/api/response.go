package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bull/docqa/internal/domain"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// statusOf maps an error kind to its HTTP status.
func statusOf(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindDocumentNotFound:
		return http.StatusNotFound
	case domain.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case domain.KindExtraction:
		return http.StatusUnprocessableEntity
	case domain.KindGeneration:
		return http.StatusBadGateway
	case domain.KindRetrievalUnavailable, domain.KindEmbeddingUnavailable:
		return http.StatusServiceUnavailable
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func envelope(err error) (int, ErrorEnvelope) {
	kind := domain.KindOf(err)
	msg := err.Error()
	if kind == domain.KindInternal {
		// internal details stay in the logs
		msg = "internal error"
	}
	return statusOf(kind), ErrorEnvelope{Error: APIError{Code: string(kind), Message: msg}}
}

// RespondError writes err in the standard envelope.
func RespondError(c *gin.Context, err error) {
	status, body := envelope(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
