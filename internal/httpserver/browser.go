package httpserver

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/hkdf"
)

const (
	browserCookie   = "storefront"
	browserIDKey    = "bid"
	browserCtxKey   = "storefront.browser"
	confirmationKey = "checkout-confirmation"
	oauthStateKey   = "oauth-state"
	oauthNextKey    = "oauth-next"
)

// NewCookieStore derives the cookie signing and encryption keys from one
// configured secret.
func NewCookieStore(secret string, secure bool) (*sessions.CookieStore, error) {
	if len(secret) < 16 {
		return nil, errors.New("cookie secret must be at least 16 characters")
	}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("storefront-cookie"))
	hashKey := make([]byte, 64)
	blockKey := make([]byte, 32)
	if _, err := io.ReadFull(kdf, hashKey); err != nil {
		return nil, fmt.Errorf("derive hash key: %w", err)
	}
	if _, err := io.ReadFull(kdf, blockKey); err != nil {
		return nil, fmt.Errorf("derive block key: %w", err)
	}
	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   60 * 60 * 24 * 365,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store, nil
}

// browserMiddleware makes sure every request carries a browser id cookie.
// A cookie that fails verification is replaced by a fresh identity.
func browserMiddleware(store sessions.Store, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := store.Get(c.Request, browserCookie)
		if err != nil {
			logger.Printf("browser cookie rejected, issuing a new one: %v", err)
		}
		id, _ := sess.Values[browserIDKey].(string)
		if id == "" {
			id = uuid.NewString()
			sess.Values[browserIDKey] = id
			if err := sess.Save(c.Request, c.Writer); err != nil {
				logger.Printf("save browser cookie: %v", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not establish browser identity"})
				return
			}
		}
		c.Set(browserCtxKey, id)
		c.Next()
	}
}

func browserID(c *gin.Context) string {
	return c.GetString(browserCtxKey)
}

// setCookieValues stores short-lived values next to the browser id.
func setCookieValues(c *gin.Context, store sessions.Store, values map[string]string) error {
	sess, _ := store.Get(c.Request, browserCookie)
	for k, v := range values {
		sess.Values[k] = v
	}
	return sess.Save(c.Request, c.Writer)
}

// popCookieValues reads and deletes values set by setCookieValues. Missing
// keys come back as empty strings.
func popCookieValues(c *gin.Context, store sessions.Store, keys ...string) (map[string]string, error) {
	sess, _ := store.Get(c.Request, browserCookie)
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, _ := sess.Values[k].(string)
		out[k] = v
		delete(sess.Values, k)
	}
	return out, sess.Save(c.Request, c.Writer)
}

// addFlash queues a one-shot value for the next request.
func addFlash(c *gin.Context, store sessions.Store, key, value string) error {
	sess, _ := store.Get(c.Request, browserCookie)
	sess.AddFlash(value, key)
	return sess.Save(c.Request, c.Writer)
}

// takeFlash consumes the queued values for key, returning the last one.
func takeFlash(c *gin.Context, store sessions.Store, key string) (string, bool) {
	sess, _ := store.Get(c.Request, browserCookie)
	flashes := sess.Flashes(key)
	if len(flashes) == 0 {
		return "", false
	}
	if err := sess.Save(c.Request, c.Writer); err != nil {
		return "", false
	}
	v, ok := flashes[len(flashes)-1].(string)
	return v, ok
}
