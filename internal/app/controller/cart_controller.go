package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront/internal/cart"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/middleware"
)

type CartController struct{}

func NewCartController() *CartController {
	return &CartController{}
}

// UpdateCartRequest changes a line's quantity by Delta.
type UpdateCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Variant   string `json:"variant"`
	Packaging string `json:"packaging"`
	Delta     int    `json:"delta" binding:"required"`
}

type RemoveCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Variant   string `json:"variant"`
	Packaging string `json:"packaging"`
}

func cartResponse(snap cart.Snapshot) gin.H {
	return gin.H{
		"cart":  snap,
		"count": snap.ItemCount(),
		"total": snap.Total,
	}
}

// GetCart refetches the visitor's cart from the backend
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	sess, ok := visitor(c)
	if !ok {
		return
	}

	snap, err := sess.Cart.Fetch(c.Request.Context())
	if err != nil {
		log.Warn("Failed to fetch cart", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.Respond(c, err, "fetch cart")
		return
	}

	log.Debug("Cart fetched", map[string]interface{}{
		"lines": len(snap.Items),
		"total": snap.Total.String(),
	})
	c.JSON(http.StatusOK, cartResponse(snap))
}

// AddToCart
// POST /api/v1/cart/items
func (ctrl *CartController) AddToCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	sess, ok := visitor(c)
	if !ok {
		return
	}

	var req cart.AddInput
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.RespondWithValidationError(c, err)
		return
	}

	snap, err := sess.Cart.Add(c.Request.Context(), req)
	if err != nil {
		apperrors.Respond(c, err, "add to cart")
		return
	}

	resp := cartResponse(snap)
	resp["message"] = "Item added to cart"
	c.JSON(http.StatusOK, resp)
}

// UpdateCartItem applies a quantity delta; dropping below one removes the line
// PATCH /api/v1/cart/items
func (ctrl *CartController) UpdateCartItem(c *gin.Context) {
	sess, ok := visitor(c)
	if !ok {
		return
	}

	var req UpdateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithValidationError(c, err)
		return
	}

	key := cart.Key{ProductID: req.ProductID, Variant: req.Variant, Packaging: req.Packaging}
	snap, err := sess.Cart.UpdateQuantity(c.Request.Context(), key, req.Delta)
	if err != nil {
		apperrors.Respond(c, err, "update cart")
		return
	}

	c.JSON(http.StatusOK, cartResponse(snap))
}

// RemoveCartItem
// DELETE /api/v1/cart/items
func (ctrl *CartController) RemoveCartItem(c *gin.Context) {
	sess, ok := visitor(c)
	if !ok {
		return
	}

	var req RemoveCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithValidationError(c, err)
		return
	}

	snap, err := sess.Cart.Remove(c.Request.Context(), cart.Key{
		ProductID: req.ProductID,
		Variant:   req.Variant,
		Packaging: req.Packaging,
	})
	if err != nil {
		apperrors.Respond(c, err, "remove from cart")
		return
	}

	resp := cartResponse(snap)
	resp["message"] = "Item removed from cart"
	c.JSON(http.StatusOK, resp)
}

// ClearCart
// DELETE /api/v1/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	sess, ok := visitor(c)
	if !ok {
		return
	}

	snap, err := sess.Cart.Clear(c.Request.Context())
	if err != nil {
		apperrors.Respond(c, err, "clear cart")
		return
	}

	resp := cartResponse(snap)
	resp["message"] = "Cart cleared"
	c.JSON(http.StatusOK, resp)
}
