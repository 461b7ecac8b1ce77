package controller

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/middleware"
	"github.com/ikkim/storefront/pkg/formpost"
)

type PaymentController struct{}

func NewPaymentController() *PaymentController {
	return &PaymentController{}
}

// Pay initializes payment for an order and answers with an auto-submitting
// form that posts the gateway fields to the gateway URL. Nothing is rendered
// unless every required field came back.
// GET /checkout/pay/:orderId
func (ctrl *PaymentController) Pay(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	sess, ok := visitor(c)
	if !ok {
		return
	}

	orderID := c.Param("orderId")
	redirect, err := sess.Payment.Prepare(c.Request.Context(), orderID)
	if err != nil {
		info := apperrors.RespondWithRetry(c, err, "payment init", "/checkout/pay/"+url.PathEscape(orderID))
		log.Warn("Payment redirect not rendered", map[string]interface{}{
			"order_id": orderID,
			"code":     info.Code,
		})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Render(http.StatusOK, render.HTML{
		Template: formpost.Template,
		Name:     formpost.TemplateName,
		Data:     redirect.Form,
	})
}
