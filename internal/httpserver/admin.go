package httpserver

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/backend"
	"storefront/internal/domain"
)

type orderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type userBlockRequest struct {
	Blocked *bool `json:"blocked" binding:"required"`
}

type productRequest struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Price       domain.Money `json:"price"`
	Stock       int          `json:"stock"`
	Category    string       `json:"category"`
	ImageURLs   []string     `json:"imageUrls"`
}

type notificationRequest struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Recipient domain.ID `json:"recipient"`
}

func (h *handlers) adminStats(c *gin.Context) {
	stats, err := shellFrom(c).Admin.Dashboard(c.Request.Context())
	if err != nil {
		h.writeError(c, "admin stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *handlers) adminOrders(c *gin.Context) {
	q := backend.AdminOrderQuery{Page: pageParam(c)}
	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			h.writeError(c, "admin orders", err)
			return
		}
		q.Status = status
	}
	table, err := shellFrom(c).Admin.Orders(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, "admin orders", err)
		return
	}
	c.JSON(http.StatusOK, table)
}

func (h *handlers) adminSetOrderStatus(c *gin.Context) {
	var req orderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}
	table, err := shellFrom(c).Admin.SetOrderStatus(c.Request.Context(), domain.ID(c.Param("id")), req.Status)
	if err != nil {
		h.writeError(c, "admin order status", err)
		return
	}
	c.JSON(http.StatusOK, table)
}

func (h *handlers) adminUsers(c *gin.Context) {
	table, err := shellFrom(c).Admin.Users(c.Request.Context(), c.Query("search"), pageParam(c))
	if err != nil {
		h.writeError(c, "admin users", err)
		return
	}
	c.JSON(http.StatusOK, table)
}

func (h *handlers) adminSetUserBlocked(c *gin.Context) {
	var req userBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "blocked is required")
		return
	}
	table, err := shellFrom(c).Admin.SetUserBlocked(c.Request.Context(), domain.ID(c.Param("id")), *req.Blocked)
	if err != nil {
		h.writeError(c, "admin block user", err)
		return
	}
	c.JSON(http.StatusOK, table)
}

func (h *handlers) adminDeleteUser(c *gin.Context) {
	table, err := shellFrom(c).Admin.DeleteUser(c.Request.Context(), domain.ID(c.Param("id")))
	if err != nil {
		h.writeError(c, "admin delete user", err)
		return
	}
	c.JSON(http.StatusOK, table)
}

func (h *handlers) adminProducts(c *gin.Context) {
	table, err := shellFrom(c).Admin.Products(c.Request.Context(), c.Query("search"), pageParam(c))
	if err != nil {
		h.writeError(c, "admin products", err)
		return
	}
	c.JSON(http.StatusOK, table)
}

func (h *handlers) adminCreateProduct(c *gin.Context) {
	in, closeUploads, err := productInput(c)
	defer closeUploads()
	if err != nil {
		h.writeError(c, "admin create product", err)
		return
	}
	p, err := shellFrom(c).Admin.CreateProduct(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, "admin create product", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *handlers) adminUpdateProduct(c *gin.Context) {
	in, closeUploads, err := productInput(c)
	defer closeUploads()
	if err != nil {
		h.writeError(c, "admin update product", err)
		return
	}
	p, err := shellFrom(c).Admin.UpdateProduct(c.Request.Context(), domain.ID(c.Param("id")), in)
	if err != nil {
		h.writeError(c, "admin update product", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) adminDeleteProduct(c *gin.Context) {
	table, err := shellFrom(c).Admin.DeleteProduct(c.Request.Context(), domain.ID(c.Param("id")))
	if err != nil {
		h.writeError(c, "admin delete product", err)
		return
	}
	c.JSON(http.StatusOK, table)
}

func (h *handlers) adminBroadcast(c *gin.Context) {
	var req notificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid notification")
		return
	}
	res, err := shellFrom(c).Admin.Broadcast(c.Request.Context(), backend.NotificationInput(req))
	if err != nil {
		h.writeError(c, "admin broadcast", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// productInput reads the product form. Multipart bodies carry image files
// under "images"; JSON bodies reference images by URL. The returned func
// closes any opened upload.
func productInput(c *gin.Context) (backend.ProductInput, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var req productRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return backend.ProductInput{}, noop, fmt.Errorf("%w: invalid product body", domain.ErrValidation)
		}
		return backend.ProductInput{
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			Stock:       req.Stock,
			Category:    req.Category,
			ImageURLs:   req.ImageURLs,
		}, noop, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return backend.ProductInput{}, noop, fmt.Errorf("%w: invalid multipart form", domain.ErrValidation)
	}
	in := backend.ProductInput{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		Category:    c.PostForm("category"),
		ImageURLs:   c.PostFormArray("image_urls"),
	}
	price, err := strconv.ParseFloat(c.PostForm("price"), 64)
	if err != nil {
		return backend.ProductInput{}, noop, fmt.Errorf("%w: price must be a number", domain.ErrValidation)
	}
	in.Price = domain.Money(price)
	if raw := c.PostForm("stock"); raw != "" {
		if in.Stock, err = strconv.Atoi(raw); err != nil {
			return backend.ProductInput{}, noop, fmt.Errorf("%w: stock must be a whole number", domain.ErrValidation)
		}
	}

	var opened []io.Closer
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	for _, fh := range form.File["images"] {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return backend.ProductInput{}, noop, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		opened = append(opened, f)
		in.Uploads = append(in.Uploads, backend.Upload{Filename: fh.Filename, Content: f})
	}
	return in, closeAll, nil
}
