package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
)

// GzipRequest middleware transparently decompresses gzip-encoded request
// bodies. Bulk pool uploads can run to millions of identifiers, so
// clients are allowed to compress them.
func GzipRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.EqualFold(c.GetHeader("Content-Encoding"), "gzip") {
			c.Next()
			return
		}

		reader, err := gzip.NewReader(c.Request.Body)
		if err != nil {
			_ = c.Error(apperror.NewValidation("malformed gzip request body"))
			c.Abort()
			return
		}
		defer reader.Close()

		c.Request.Body = reader
		c.Request.Header.Del("Content-Encoding")
		c.Request.ContentLength = -1

		c.Next()
	}
}
