package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/llmrelay/llmrelay/internal/errors"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// httpStatusFor maps a stable error code to an HTTP status class.
func httpStatusFor(code errors.Code) int {
	switch code {
	case errors.CodeAccountInvalidCredential,
		errors.CodeAccountDuplicate,
		errors.CodeRelayBadRequest,
		errors.CodeAuthMissingParams:
		return http.StatusBadRequest
	case errors.CodeAccountNotFound, errors.CodeSystemNotFound:
		return http.StatusNotFound
	case errors.CodeAccountPoolExhausted:
		return http.StatusServiceUnavailable
	case errors.CodeRelayUpstreamFailed,
		errors.CodeAuthExchangeFailed,
		errors.CodeAuthRefreshFailed:
		return http.StatusBadGateway
	case errors.CodeAuthNoToken, errors.CodeAuthTokenExpired:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders the uniform error envelope for a domain error.
func writeError(c *gin.Context, err error) {
	code := errors.CodeFor(err)
	status := httpStatusFor(code)
	c.JSON(status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
		Code:    int(code),
	})
}
