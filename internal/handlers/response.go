package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paulexconde/questflow/internal/pkg/logger"
	"github.com/paulexconde/questflow/pkg/fault"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondFault maps the fault taxonomy onto HTTP statuses: validation and
// other client faults are 400, missing resources 404, everything else 500.
func RespondFault(c *gin.Context, log *logger.Logger, err error) {
	switch {
	case fault.IsValidationError(err):
		RespondError(c, http.StatusBadRequest, "validation_error", err)
	case fault.IsNotFoundError(err):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case fault.IsClientError(err):
		RespondError(c, http.StatusBadRequest, "bad_request", err)
	default:
		log.Error("request failed", "path", c.FullPath(), "error", err)
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
