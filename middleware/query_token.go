package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextQueryTokenKey holds a token that arrived as ?token=.
const ContextQueryTokenKey = "query_token"

// HideQueryToken moves a token query parameter into the context and masks
// it in the URL. Install it before the request logger.
func HideQueryToken() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !strings.Contains(ctx.Request.URL.RawQuery, "token=") {
			ctx.Next()
			return
		}
		q := ctx.Request.URL.Query()
		if tok := strings.TrimSpace(q.Get("token")); tok != "" {
			ctx.Set(ContextQueryTokenKey, tok)
			q.Set("token", "REDACTED")
			ctx.Request.URL.RawQuery = q.Encode()
			ctx.Request.RequestURI = ctx.Request.URL.RequestURI()
		}
		ctx.Next()
	}
}
