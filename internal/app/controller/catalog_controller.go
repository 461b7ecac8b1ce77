package controller

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront/internal/catalog"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/middleware"
)

// CatalogController serves products, content pages and the public forms.
type CatalogController struct{}

func NewCatalogController() *CatalogController {
	return &CatalogController{}
}

// ListProducts
// GET /api/v1/products
func (ctrl *CatalogController) ListProducts(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	sess, ok := visitor(c)
	if !ok {
		return
	}

	products, err := sess.Catalog.ListProducts(c.Request.Context())
	if err != nil {
		log.Error("Failed to fetch products", err)
		apperrors.Respond(c, err, "products")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// GetProduct
// GET /api/v1/products/:slug
func (ctrl *CatalogController) GetProduct(c *gin.Context) {
	sess, ok := visitor(c)
	if !ok {
		return
	}

	product, err := sess.Catalog.ProductBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		apperrors.Respond(c, err, "product")
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

// SearchProducts answers immediately; debounced search-as-you-type goes over
// the websocket instead.
// GET /api/v1/search?query=
func (ctrl *CatalogController) SearchProducts(c *gin.Context) {
	sess, ok := visitor(c)
	if !ok {
		return
	}

	query := strings.TrimSpace(c.Query("query"))
	products, err := sess.Catalog.SearchProducts(c.Request.Context(), query)
	if err != nil {
		apperrors.Respond(c, err, "product search")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":    query,
		"products": products,
		"count":    len(products),
	})
}

// ListBlogs
// GET /api/v1/blogs
func (ctrl *CatalogController) ListBlogs(c *gin.Context) {
	sess, ok := visitor(c)
	if !ok {
		return
	}

	blogs, err := sess.Catalog.ListBlogs(c.Request.Context())
	if err != nil {
		apperrors.Respond(c, err, "blogs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"blogs": blogs})
}

// GetBlog
// GET /api/v1/blogs/:slug
func (ctrl *CatalogController) GetBlog(c *gin.Context) {
	sess, ok := visitor(c)
	if !ok {
		return
	}

	blog, err := sess.Catalog.BlogBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		apperrors.Respond(c, err, "blog")
		return
	}
	c.JSON(http.StatusOK, gin.H{"blog": blog})
}

// ListCategories
// GET /api/v1/categories
func (ctrl *CatalogController) ListCategories(c *gin.Context) {
	sess, ok := visitor(c)
	if !ok {
		return
	}

	categories, err := sess.Catalog.ListCategories(c.Request.Context())
	if err != nil {
		apperrors.Respond(c, err, "categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// ListFAQs
// GET /api/v1/faqs
func (ctrl *CatalogController) ListFAQs(c *gin.Context) {
	sess, ok := visitor(c)
	if !ok {
		return
	}

	faqs, err := sess.Catalog.ListFAQs(c.Request.Context())
	if err != nil {
		apperrors.Respond(c, err, "faqs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"faqs": faqs})
}

// SubmitReview requires a logged-in visitor
// POST /api/v1/reviews
func (ctrl *CatalogController) SubmitReview(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	sess, ok := visitor(c)
	if !ok {
		return
	}

	var req catalog.ReviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithValidationError(c, err)
		return
	}

	if err := sess.Catalog.SubmitReview(c.Request.Context(), req); err != nil {
		log.Warn("Review submission failed", map[string]interface{}{
			"product_id": req.ProductID,
			"error":      err.Error(),
		})
		apperrors.Respond(c, err, "review")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Review submitted"})
}

// SubmitContact
// POST /api/v1/contact
func (ctrl *CatalogController) SubmitContact(c *gin.Context) {
	sess, ok := visitor(c)
	if !ok {
		return
	}

	var req catalog.ContactInput
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithValidationError(c, err)
		return
	}

	if err := sess.Catalog.SubmitContact(c.Request.Context(), req); err != nil {
		apperrors.Respond(c, err, "contact")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Thanks for reaching out. We will get back to you soon."})
}

// SubmitChatbotLead
// POST /api/v1/chatbot
func (ctrl *CatalogController) SubmitChatbotLead(c *gin.Context) {
	sess, ok := visitor(c)
	if !ok {
		return
	}

	var req catalog.LeadInput
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithValidationError(c, err)
		return
	}

	if err := sess.Catalog.SubmitChatbotLead(c.Request.Context(), req); err != nil {
		apperrors.Respond(c, err, "chatbot")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Thanks! Our team will contact you shortly."})
}
