package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/backend"
	"storefront/internal/domain"
	"storefront/internal/service/cart"
	"storefront/internal/service/checkout"
	"storefront/internal/service/oauth"
	"storefront/internal/service/session"
	"storefront/internal/service/wishlist"
)

// writeError maps service and backend errors onto the shell's responses.
// Backend failures other than validation, auth and not-found are not
// passed through verbatim.
func (h *handlers) writeError(c *gin.Context, op string, err error) {
	status, body := h.errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Printf("%s: %v", op, err)
	}
	c.JSON(status, body)
}

func (h *handlers) errorResponse(err error) (int, gin.H) {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, cart.ErrLoginRequired), errors.Is(err, wishlist.ErrLoginRequired):
		return http.StatusUnauthorized, gin.H{"error": "please log in to continue", "login": "/login"}
	case errors.Is(err, session.ErrInvalidCredentials):
		return http.StatusUnauthorized, gin.H{"error": "invalid username or password"}
	case errors.Is(err, session.ErrProviderRejected):
		return http.StatusUnauthorized, gin.H{"error": "sign-in with the provider failed"}
	case errors.Is(err, session.ErrNoSession), errors.Is(err, backend.ErrNoCredential):
		return http.StatusUnauthorized, gin.H{"error": "not signed in", "login": "/login"}
	case errors.Is(err, session.ErrAuth):
		return http.StatusBadRequest, gin.H{"error": "current password is incorrect"}
	case errors.Is(err, oauth.ErrUnknownProvider):
		return http.StatusNotFound, gin.H{"error": err.Error()}
	case errors.Is(err, cart.ErrOutOfStock), errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusConflict, gin.H{"error": err.Error()}
	case errors.Is(err, cart.ErrNotInCart), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, gin.H{"error": err.Error()}
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, gin.H{"error": err.Error()}
	case errors.As(err, &apiErr):
		switch apiErr.Status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity:
			body := gin.H{"error": apiErr.Message}
			if apiErr.Message == "" {
				body["error"] = http.StatusText(apiErr.Status)
			}
			if len(apiErr.Fields) > 0 {
				body["fields"] = apiErr.Fields
			}
			return apiErr.Status, body
		}
		return http.StatusBadGateway, gin.H{"error": "the store is temporarily unavailable"}
	}
	return http.StatusBadGateway, gin.H{"error": "the store is temporarily unavailable"}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
