package httpserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"marketplace-storefront/internal/domain"
	ordersvc "marketplace-storefront/internal/service/order"
	paymentsvc "marketplace-storefront/internal/service/payment"
)

type assignShippingRequest struct {
	OptionID string `json:"option_id"`
	SellerID string `json:"seller_id"`
}

type selectPaymentRequest struct {
	ProviderID string `json:"provider_id"`
}

// currentCart resolves the session's cart; a failure has been written when
// ok is false.
func (h *handlers) currentCart(c *gin.Context) (*domain.Cart, bool) {
	cart, err := h.deps.Carts.Current(c.Request.Context(), sessionID(c))
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	return cart, true
}

func (h *handlers) getShippingQuote(c *gin.Context) {
	cart, ok := h.currentCart(c)
	if !ok {
		return
	}
	quote, err := h.deps.Shipping.Quote(c.Request.Context(), cart.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": quote})
}

func (h *handlers) assignShipping(c *gin.Context) {
	var req assignShippingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	cart, ok := h.currentCart(c)
	if !ok {
		return
	}
	cart, err := h.deps.Shipping.AssignQuoted(c.Request.Context(), cart.ID, req.OptionID, req.SellerID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.deps.Carts.Price(cart, displayCurrency(c, "")))
}

func (h *handlers) removeShipping(c *gin.Context) {
	cart, ok := h.currentCart(c)
	if !ok {
		return
	}
	cart, err := h.deps.Shipping.Remove(c.Request.Context(), cart.ID, c.Param("methodId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.deps.Carts.Price(cart, displayCurrency(c, "")))
}

func (h *handlers) listPaymentProviders(c *gin.Context) {
	cart, ok := h.currentCart(c)
	if !ok {
		return
	}
	providers, err := h.deps.Payments.Providers(c.Request.Context(), cart.RegionID)
	if err != nil {
		h.writePaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_providers": providers})
}

func (h *handlers) selectPayment(c *gin.Context) {
	var req selectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ProviderID) == "" {
		badRequest(c, "provider_id is required")
		return
	}
	cart, ok := h.currentCart(c)
	if !ok {
		return
	}
	session, err := h.deps.Payments.Select(c.Request.Context(), cart.ID, req.ProviderID)
	if err != nil {
		h.writePaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_session": session})
}

func (h *handlers) getPaymentSession(c *gin.Context) {
	cart, ok := h.currentCart(c)
	if !ok {
		return
	}
	session, err := h.deps.Payments.Status(c.Request.Context(), cart.ID)
	if err != nil {
		h.writePaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_session": session})
}

func (h *handlers) finalizePayment(c *gin.Context) {
	var req paymentsvc.FinalizeInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	cart, ok := h.currentCart(c)
	if !ok {
		return
	}
	res, err := h.deps.Payments.Finalize(c.Request.Context(), sessionID(c), cart.ID, req)
	if err != nil {
		h.writePaymentError(c, err)
		return
	}
	if res.Pending {
		writePending(c, res.RetryAfter, res.Message)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) completeCart(c *gin.Context) {
	cart, ok := h.currentCart(c)
	if !ok {
		return
	}
	res, err := h.deps.Orders.Complete(c.Request.Context(), sessionID(c), cart.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if res == nil {
		res = &ordersvc.Result{Pending: true}
	}
	writePending(c, res.RetryAfter, res.Message)
}

// writePending answers a placement that produced no orders yet.
func writePending(c *gin.Context, retryAfter time.Duration, msg string) {
	seconds := int(retryAfter / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.JSON(http.StatusAccepted, gin.H{"pending": true, "message": msg, "retry_after_seconds": seconds})
}
