package httpserver

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/backend"
	"storefront/internal/service/oauth"
	"storefront/internal/service/session"
)

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
	Next     string `json:"next" form:"next"`
}

type signupRequest struct {
	Username        string `json:"username" form:"username"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
	FirstName       string `json:"firstName" form:"firstName"`
	LastName        string `json:"lastName" form:"lastName"`
}

type resetRequest struct {
	Email string `json:"email" form:"email" binding:"required"`
}

type resetConfirmRequest struct {
	UID         string `json:"uid" form:"uid" binding:"required"`
	Token       string `json:"token" form:"token" binding:"required"`
	NewPassword string `json:"newPassword" form:"newPassword" binding:"required"`
}

func (h *handlers) loginPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"providers": h.providers(),
		"next":      safeNext(c.Query("next")),
		"error":     c.Query("error"),
	})
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "invalid login form")
		return
	}
	sh := shellFrom(c)
	sess, err := sh.Session.Login(c.Request.Context(), session.LoginInput{Identifier: req.Username, Password: req.Password})
	if err != nil {
		h.writeError(c, "login", err)
		return
	}
	next := req.Next
	if next == "" {
		next = c.Query("next")
	}
	c.JSON(http.StatusOK, gin.H{"user": sess.User, "redirect": safeNext(next)})
}

func (h *handlers) signupPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.providers()})
}

func (h *handlers) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "invalid signup form")
		return
	}
	sh := shellFrom(c)
	sess, ok, err := sh.Session.Signup(c.Request.Context(), session.SignupInput(req))
	if err != nil {
		h.writeError(c, "signup", err)
		return
	}
	if !ok {
		c.JSON(http.StatusCreated, gin.H{
			"message":  "Account created. Please log in.",
			"redirect": "/login",
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": sess.User, "redirect": "/"})
}

func (h *handlers) logout(c *gin.Context) {
	shellFrom(c).Session.Logout(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"redirect": "/"})
}

func (h *handlers) providers() []string {
	if h.deps.OAuth == nil {
		return []string{}
	}
	return h.deps.OAuth.Providers()
}

// oauthStart sends the browser to the provider's consent page. The state
// and the post-login target ride in the signed browser cookie.
func (h *handlers) oauthStart(c *gin.Context) {
	provider := strings.ToLower(c.Param("provider"))
	if h.deps.OAuth == nil || !h.deps.OAuth.Enabled(provider) {
		h.writeError(c, "oauth start", oauth.ErrUnknownProvider)
		return
	}
	state, err := oauth.StateToken()
	if err != nil {
		h.logger.Printf("oauth state: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start sign-in"})
		return
	}
	target, err := h.deps.OAuth.AuthURL(provider, state)
	if err != nil {
		h.writeError(c, "oauth start", err)
		return
	}
	if err := setCookieValues(c, h.deps.Cookies, map[string]string{
		oauthStateKey: state,
		oauthNextKey:  safeNext(c.Query("next")),
	}); err != nil {
		h.logger.Printf("oauth state cookie: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start sign-in"})
		return
	}
	c.Redirect(http.StatusFound, target)
}

func (h *handlers) oauthCallback(c *gin.Context) {
	provider := strings.ToLower(c.Param("provider"))
	if h.deps.OAuth == nil || !h.deps.OAuth.Enabled(provider) {
		h.writeError(c, "oauth callback", oauth.ErrUnknownProvider)
		return
	}
	saved, err := popCookieValues(c, h.deps.Cookies, oauthStateKey, oauthNextKey)
	if err != nil {
		h.logger.Printf("oauth state cookie: %v", err)
	}
	if reason := c.Query("error"); reason != "" {
		h.failLogin(c, provider, reason)
		return
	}
	if saved[oauthStateKey] == "" || saved[oauthStateKey] != c.Query("state") {
		h.failLogin(c, provider, "state mismatch")
		return
	}

	ctx := c.Request.Context()
	resp, err := h.deps.OAuth.Exchange(ctx, provider, c.Query("code"))
	if err != nil {
		h.failLogin(c, provider, err.Error())
		return
	}
	if _, err := shellFrom(c).Session.LoginWithExternalProvider(ctx, resp); err != nil {
		h.failLogin(c, provider, err.Error())
		return
	}
	c.Redirect(http.StatusFound, safeNext(saved[oauthNextKey]))
}

func (h *handlers) failLogin(c *gin.Context, provider, reason string) {
	h.logger.Printf("oauth %s: login failed: %s", provider, reason)
	c.Redirect(http.StatusFound, "/login?error="+url.QueryEscape(provider+" sign-in failed"))
}

func (h *handlers) requestPasswordReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "email is required")
		return
	}
	shellFrom(c).Session.RequestPasswordReset(c.Request.Context(), strings.TrimSpace(req.Email))
	c.JSON(http.StatusAccepted, gin.H{"message": "If the address is registered, a reset link is on its way."})
}

func (h *handlers) confirmPasswordReset(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "uid, token and newPassword are required")
		return
	}
	ok := shellFrom(c).Session.ConfirmPasswordReset(c.Request.Context(), backend.PasswordResetConfirm{
		UID:         req.UID,
		Token:       req.Token,
		NewPassword: req.NewPassword,
	})
	if !ok {
		badRequest(c, "the reset link is invalid or has expired")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated. Please log in.", "redirect": "/login"})
}
