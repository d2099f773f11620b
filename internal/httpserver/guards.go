package httpserver

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/storefront"
)

const shellCtxKey = "storefront.shell"

// shellMiddleware attaches the browser's shell to the request. It runs
// after browserMiddleware.
func (h *handlers) shellMiddleware(c *gin.Context) {
	sh, err := h.deps.Registry.Get(c.Request.Context(), browserID(c))
	if err != nil {
		h.logger.Printf("resolve shell: %v", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "storefront unavailable"})
		return
	}
	c.Set(shellCtxKey, sh)
	c.Next()
}

func shellFrom(c *gin.Context) *storefront.Shell {
	v, ok := c.Get(shellCtxKey)
	if !ok {
		return nil
	}
	sh, _ := v.(*storefront.Shell)
	return sh
}

// requireSession sends visitors without a live session to the login page,
// remembering where they were going.
func requireSession(c *gin.Context) {
	sh := shellFrom(c)
	if sh == nil || !sh.Session.Authenticated() {
		c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
		return
	}
	c.Next()
}

// guestOnly sends signed-in visitors away from login and signup.
func guestOnly(c *gin.Context) {
	sh := shellFrom(c)
	if sh != nil && sh.Session.Authenticated() {
		c.Redirect(http.StatusFound, "/")
		c.Abort()
		return
	}
	c.Next()
}

// requireAdmin admits administrators only.
func requireAdmin(c *gin.Context) {
	sh := shellFrom(c)
	switch {
	case sh == nil || !sh.Session.Authenticated():
		c.Redirect(http.StatusFound, "/login")
	case !sh.Session.IsAdmin():
		c.Redirect(http.StatusFound, "/")
	default:
		c.Next()
		return
	}
	c.Abort()
}

// safeNext keeps post-login redirects on this site. Browsers read a
// backslash as a slash and drop tabs and newlines, so either one can turn
// a path into a scheme-relative URL.
func safeNext(next string) string {
	if next == "" || next[0] != '/' {
		return "/"
	}
	if strings.ContainsRune(next, '\\') || strings.IndexFunc(next, isControl) >= 0 {
		return "/"
	}
	unescaped, err := url.PathUnescape(next)
	if err != nil || strings.HasPrefix(unescaped, "//") || strings.ContainsRune(unescaped, '\\') {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return next
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
