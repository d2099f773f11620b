package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/service/cart"
	"storefront/internal/service/catalog"
	"storefront/internal/service/checkout"
	"storefront/internal/storefront"
)

type cartItemRequest struct {
	ProductID domain.ID `json:"productId" form:"productId" binding:"required"`
}

type passwordRequest struct {
	OldPassword     string `json:"oldPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword"`
}

func pageParam(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// sessionSummary is the header state every screen renders.
func sessionSummary(sh *storefront.Shell) gin.H {
	cur, ok := sh.Session.Current()
	if !ok {
		return gin.H{"authenticated": false, "cartCount": 0, "wishlistCount": 0}
	}
	return gin.H{
		"authenticated": true,
		"user":          cur.User,
		"name":          cur.User.Name(),
		"isAdmin":       cur.User.IsAdmin,
		"cartCount":     sh.Cart.Count(),
		"cartTotal":     sh.Cart.Total(),
		"wishlistCount": sh.Wishlist.Count(),
		"unread":        sh.Notifications.Unread(),
	}
}

func (h *handlers) home(c *gin.Context) {
	sh := shellFrom(c)
	listing, err := sh.Catalog.List(c.Request.Context(), catalog.Filter{Page: 1}, h.deps.ImageHost)
	if err != nil {
		h.writeError(c, "home", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sessionSummary(sh), "products": listing.Products, "categories": listing.Categories})
}

func (h *handlers) currentSession(c *gin.Context) {
	c.JSON(http.StatusOK, sessionSummary(shellFrom(c)))
}

func (h *handlers) refreshSession(c *gin.Context) {
	sh := shellFrom(c)
	if _, err := sh.Session.Refresh(c.Request.Context()); err != nil {
		h.writeError(c, "refresh session", err)
		return
	}
	c.JSON(http.StatusOK, sessionSummary(sh))
}

func (h *handlers) listProducts(c *gin.Context) {
	sh := shellFrom(c)
	f := catalog.ParseFilter(c.Request.URL.Query())
	listing, err := sh.Catalog.List(c.Request.Context(), f, h.deps.ImageHost)
	if err != nil {
		h.writeError(c, "list products", err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (h *handlers) getProduct(c *gin.Context) {
	sh := shellFrom(c)
	p, err := sh.Catalog.Product(c.Request.Context(), domain.ID(c.Param("id")), h.deps.ImageHost)
	if err != nil {
		h.writeError(c, "get product", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product":    p,
		"inCart":     sh.Cart.Quantity(p.ID),
		"wishlisted": sh.Wishlist.Contains(p.ID),
	})
}

func cartView(sh *storefront.Shell) gin.H {
	return gin.H{"lines": sh.Cart.Lines(), "count": sh.Cart.Count(), "total": sh.Cart.Total()}
}

func (h *handlers) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, cartView(shellFrom(c)))
}

// addToCart looks the product up first so the optimistic line carries its
// price and stock.
func (h *handlers) addToCart(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "productId is required")
		return
	}
	sh := shellFrom(c)
	ctx := c.Request.Context()
	if !sh.Session.Authenticated() {
		h.writeError(c, "add to cart", cart.ErrLoginRequired)
		return
	}
	p, err := sh.Catalog.Product(ctx, req.ProductID, h.deps.ImageHost)
	if err != nil {
		h.writeError(c, "add to cart", err)
		return
	}
	if err := sh.Cart.Add(ctx, p); err != nil {
		h.writeError(c, "add to cart", err)
		return
	}
	c.JSON(http.StatusOK, cartView(sh))
}

func (h *handlers) incrementCartItem(c *gin.Context) {
	sh := shellFrom(c)
	if err := sh.Cart.Increment(c.Request.Context(), domain.ID(c.Param("productId"))); err != nil {
		h.writeError(c, "increment cart item", err)
		return
	}
	c.JSON(http.StatusOK, cartView(sh))
}

func (h *handlers) decrementCartItem(c *gin.Context) {
	sh := shellFrom(c)
	if err := sh.Cart.Decrement(c.Request.Context(), domain.ID(c.Param("productId"))); err != nil {
		h.writeError(c, "decrement cart item", err)
		return
	}
	c.JSON(http.StatusOK, cartView(sh))
}

func (h *handlers) removeCartItem(c *gin.Context) {
	sh := shellFrom(c)
	if err := sh.Cart.Remove(c.Request.Context(), domain.ID(c.Param("productId"))); err != nil {
		h.writeError(c, "remove cart item", err)
		return
	}
	c.JSON(http.StatusOK, cartView(sh))
}

func (h *handlers) clearCart(c *gin.Context) {
	sh := shellFrom(c)
	if err := sh.Cart.Clear(c.Request.Context()); err != nil {
		h.writeError(c, "clear cart", err)
		return
	}
	c.JSON(http.StatusOK, cartView(sh))
}

func wishlistView(sh *storefront.Shell) gin.H {
	return gin.H{"entries": sh.Wishlist.Entries(), "count": sh.Wishlist.Count()}
}

func (h *handlers) getWishlist(c *gin.Context) {
	c.JSON(http.StatusOK, wishlistView(shellFrom(c)))
}

func (h *handlers) toggleWishlist(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "productId is required")
		return
	}
	sh := shellFrom(c)
	ctx := c.Request.Context()
	if !sh.Session.Authenticated() {
		h.writeError(c, "toggle wishlist", cart.ErrLoginRequired)
		return
	}
	p, err := sh.Catalog.Product(ctx, req.ProductID, h.deps.ImageHost)
	if err != nil {
		h.writeError(c, "toggle wishlist", err)
		return
	}
	if err := sh.Wishlist.Toggle(ctx, p); err != nil {
		h.writeError(c, "toggle wishlist", err)
		return
	}
	c.JSON(http.StatusOK, wishlistView(sh))
}

func (h *handlers) removeWishlistItem(c *gin.Context) {
	sh := shellFrom(c)
	if err := sh.Wishlist.Remove(c.Request.Context(), domain.ID(c.Param("productId"))); err != nil {
		h.writeError(c, "remove wishlist item", err)
		return
	}
	c.JSON(http.StatusOK, wishlistView(sh))
}

func (h *handlers) moveToCart(c *gin.Context) {
	sh := shellFrom(c)
	if err := sh.Wishlist.MoveToCart(c.Request.Context(), sh.Cart, domain.ID(c.Param("productId"))); err != nil {
		h.writeError(c, "move to cart", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wishlist": wishlistView(sh), "cart": cartView(sh)})
}

func (h *handlers) reviewCheckout(c *gin.Context) {
	var form checkout.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "invalid checkout form")
		return
	}
	sh := shellFrom(c)
	review, err := sh.Checkout.Review(form, sh.Cart.Lines())
	if err != nil {
		h.writeError(c, "review checkout", err)
		return
	}
	c.JSON(http.StatusOK, review)
}

func (h *handlers) submitCheckout(c *gin.Context) {
	var form checkout.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "invalid checkout form")
		return
	}
	sh := shellFrom(c)
	order, err := sh.Checkout.Submit(c.Request.Context(), form, sh.Cart)
	if err != nil {
		h.writeError(c, "submit checkout", err)
		return
	}
	if err := addFlash(c, h.deps.Cookies, confirmationKey, order.ID.String()); err != nil {
		h.logger.Printf("checkout confirmation flash: %v", err)
	}
	c.JSON(http.StatusCreated, gin.H{"order": order, "redirect": "/api/checkout/confirmation"})
}

// confirmation is shown once per placed order.
func (h *handlers) confirmation(c *gin.Context) {
	id, ok := takeFlash(c, h.deps.Cookies, confirmationKey)
	if !ok || id == "" {
		c.Redirect(http.StatusFound, "/")
		return
	}
	sh := shellFrom(c)
	order, err := sh.Orders.Order(c.Request.Context(), domain.ID(id))
	if err != nil {
		h.logger.Printf("confirmation: load order %s: %v", id, err)
		c.JSON(http.StatusOK, gin.H{"orderId": id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orderId": id, "order": order})
}

func (h *handlers) listOrders(c *gin.Context) {
	history, err := shellFrom(c).Orders.History(c.Request.Context(), pageParam(c))
	if err != nil {
		h.writeError(c, "list orders", err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *handlers) getOrder(c *gin.Context) {
	order, err := shellFrom(c).Orders.Order(c.Request.Context(), domain.ID(c.Param("id")))
	if err != nil {
		h.writeError(c, "get order", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handlers) listNotifications(c *gin.Context) {
	sh := shellFrom(c)
	items, err := sh.Notifications.Load(c.Request.Context())
	if err != nil {
		h.writeError(c, "list notifications", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items, "unread": sh.Notifications.Unread()})
}

func (h *handlers) markNotificationRead(c *gin.Context) {
	sh := shellFrom(c)
	if err := sh.Notifications.MarkRead(c.Request.Context(), domain.ID(c.Param("id"))); err != nil {
		h.writeError(c, "mark notification read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": sh.Notifications.Items(), "unread": sh.Notifications.Unread()})
}

func (h *handlers) getProfile(c *gin.Context) {
	cur, _ := shellFrom(c).Session.Current()
	c.JSON(http.StatusOK, cur.User)
}

func (h *handlers) updateProfile(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid profile")
		return
	}
	sess, err := shellFrom(c).Session.UpdateProfile(c.Request.Context(), patch)
	if err != nil {
		h.writeError(c, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, sess.User)
}

func (h *handlers) changePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "oldPassword and newPassword are required")
		return
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.NewPassword {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "passwords do not match"})
		return
	}
	if err := shellFrom(c).Session.ChangePassword(c.Request.Context(), req.OldPassword, req.NewPassword); err != nil {
		h.writeError(c, "change password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed."})
}
