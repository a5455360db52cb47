package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey     = "userId"
	documentIDKey = "documentId"
)

// SetUserID records the user a request acts on, for logs and rate limiting.
func SetUserID(c *gin.Context, id int64) {
	if c == nil || id <= 0 {
		return
	}
	c.Set(userIDKey, strconv.FormatInt(id, 10))
}

// UserIDFromContext returns the id stored by SetUserID, or "".
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userIDKey)
}

// SetDocumentID records the document a request acts on.
func SetDocumentID(c *gin.Context, id int64) {
	if c == nil || id <= 0 {
		return
	}
	c.Set(documentIDKey, strconv.FormatInt(id, 10))
}

// DocumentIDFromContext returns the id stored by SetDocumentID, or "".
func DocumentIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(documentIDKey)
}
