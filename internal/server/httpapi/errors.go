package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lockboxhq/lockbox/internal/common"
)

// errorBody is the uniform error response. Fields is present only for
// validation failures; Code only when a machine-readable sub-code exists.
type errorBody struct {
	Error  string              `json:"error"`
	Code   string              `json:"code,omitempty"`
	Fields []common.FieldError `json:"fields,omitempty"`
}

// respondError maps a service error to a status code. Crypto and unknown
// errors collapse to a generic 500; internals never cross the boundary.
func respondError(c *gin.Context, err error) {
	var verr *common.ValidationError
	if errors.As(err, &verr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "validation failed", Fields: verr.Fields})
		return
	}

	switch {
	case errors.Is(err, common.ErrValidation):
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "validation failed"})
	case errors.Is(err, common.ErrTokenExpired):
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "token expired", Code: "TOKEN_EXPIRED"})
	case errors.Is(err, common.ErrInvalidCredentials):
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "invalid credentials"})
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrUnauthenticated):
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "unauthenticated"})
	case errors.Is(err, common.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, common.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, common.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, errorBody{Error: "already exists"})
	case errors.Is(err, common.ErrRateLimited):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{Error: "too many requests"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
