package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lockboxhq/lockbox/internal/common"
)

// bindStrict decodes the request body into out, rejecting unknown fields and
// trailing garbage. A body already truncated by MaxBytesReader reports 413.
func bindStrict(c *gin.Context, out any) bool {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(out); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
			return false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
			Error:  "validation failed",
			Fields: []common.FieldError{{Field: "body", Message: "malformed JSON"}},
		})
		return false
	}
	if dec.More() {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
			Error:  "validation failed",
			Fields: []common.FieldError{{Field: "body", Message: "unexpected trailing data"}},
		})
		return false
	}
	return true
}
