package controller

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/middleware"
	"github.com/ikkim/storefront/internal/orders"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type OrderController struct{}

func NewOrderController() *OrderController {
	return &OrderController{}
}

// GetMyOrders
// GET /api/v1/orders
func (ctrl *OrderController) GetMyOrders(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	sess, ok := visitor(c)
	if !ok {
		return
	}

	list, err := sess.Orders.MyOrders(c.Request.Context())
	if err != nil {
		log.Warn("Failed to fetch orders", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.Respond(c, err, "orders")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": list,
		"count":  len(list),
	})
}

// GetOrder looks an order up by its number or id
// GET /api/v1/orders/:orderNumber
func (ctrl *OrderController) GetOrder(c *gin.Context) {
	sess, ok := visitor(c)
	if !ok {
		return
	}

	order, err := sess.Orders.Find(c.Request.Context(), c.Param("orderNumber"))
	if err != nil {
		apperrors.Respond(c, err, "order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// ExportOrders downloads the order history as a spreadsheet
// GET /api/v1/orders/export
func (ctrl *OrderController) ExportOrders(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	sess, ok := visitor(c)
	if !ok {
		return
	}

	list, err := sess.Orders.MyOrders(c.Request.Context())
	if err != nil {
		apperrors.Respond(c, err, "orders")
		return
	}

	var buf bytes.Buffer
	if err := orders.ExportXLSX(list, &buf); err != nil {
		log.Error("Failed to build order export", err)
		apperrors.InternalError(c, "Failed to export orders")
		return
	}

	filename := fmt.Sprintf("orders-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())

	log.Info("Orders exported", map[string]interface{}{
		"count": len(list),
		"bytes": buf.Len(),
	})
}
