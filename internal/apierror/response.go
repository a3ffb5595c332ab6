package apierror

import (
	"github.com/gin-gonic/gin"
)

// Envelope is the JSON body of every error response.
type Envelope struct {
	Success bool   `json:"success"`
	Error   Detail `json:"error"`
}

// Detail is the error part of an Envelope.
type Detail struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int64  `json:"retryAfter,omitempty"`
	Service    string `json:"service,omitempty"`
}

// Body builds the response envelope for err.
func Body(err error) Envelope {
	e := As(err)
	return Envelope{
		Success: false,
		Error: Detail{
			Code:       e.Code.Code,
			Message:    e.Message,
			RetryAfter: e.RetryAfter,
			Service:    e.Service,
		},
	}
}

// Abort writes err as a JSON envelope and stops the handler chain.
// Errors that are not *Error are rendered as C001 without exposing their text.
func Abort(c *gin.Context, err error) {
	e := As(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(e.Status(), Body(e))
}
