package middlewares

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireJSONOrMultipart rejects write requests whose body is neither JSON
// nor a multipart form. Empty bodies pass through to binding.
func RequireJSONOrMultipart() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		if c.Request.ContentLength == 0 {
			c.Next()
			return
		}

		mt, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err != nil || (mt != gin.MIMEJSON && mt != gin.MIMEMultipartPOSTForm) {
			abortError(c, http.StatusUnsupportedMediaType, "content type must be application/json or multipart/form-data")
			return
		}
		c.Next()
	}
}
