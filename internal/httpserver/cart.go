package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	cartsvc "marketplace-storefront/internal/service/cart"
	checkoutsvc "marketplace-storefront/internal/service/checkout"
)

type createCartRequest struct {
	CurrencyCode string `json:"currency_code"`
}

type lineItemRequest struct {
	VariantID    string `json:"variant_id"`
	Quantity     int    `json:"quantity"`
	CurrencyCode string `json:"currency_code"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// displayCurrency is the ?currency= query, falling back to a body value.
func displayCurrency(c *gin.Context, fallback string) string {
	if v := strings.TrimSpace(c.Query("currency")); v != "" {
		return v
	}
	return fallback
}

func (h *handlers) createCart(c *gin.Context) {
	var req createCartRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	currency := displayCurrency(c, req.CurrencyCode)
	cart, err := h.deps.Carts.Ensure(c.Request.Context(), sessionID(c), currency)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.deps.Carts.Price(cart, currency))
}

func (h *handlers) getCart(c *gin.Context) {
	priced, err := h.deps.Carts.View(c.Request.Context(), sessionID(c), displayCurrency(c, ""))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, priced)
}

func (h *handlers) addLineItem(c *gin.Context) {
	var req lineItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	currency := displayCurrency(c, req.CurrencyCode)
	cart, err := h.deps.Carts.UpsertItem(c.Request.Context(), sessionID(c), req.VariantID, req.Quantity, currency)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.deps.Carts.Price(cart, currency))
}

func (h *handlers) updateLineItem(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	cart, err := h.deps.Carts.UpdateItem(c.Request.Context(), sessionID(c), c.Param("lineId"), req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.deps.Carts.Price(cart, displayCurrency(c, "")))
}

func (h *handlers) deleteLineItem(c *gin.Context) {
	cart, err := h.deps.Carts.RemoveItem(c.Request.Context(), sessionID(c), c.Param("lineId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.deps.Carts.Price(cart, displayCurrency(c, "")))
}

func (h *handlers) setShippingAddress(c *gin.Context) {
	var req cartsvc.AddressInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	cart, err := h.deps.Carts.SetShippingAddress(c.Request.Context(), sessionID(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.deps.Carts.Price(cart, displayCurrency(c, "")))
}

func (h *handlers) getCheckout(c *gin.Context) {
	step := checkoutsvc.Step(c.Query("step"))
	if parsed, ok := checkoutsvc.ParseStep(c.Query("step")); ok {
		step = parsed
	}
	view, err := h.deps.Checkout.View(c.Request.Context(), sessionID(c), step, displayCurrency(c, ""))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) getProduct(c *gin.Context) {
	view, err := h.deps.Products.Get(c.Request.Context(), c.Param("id"), displayCurrency(c, ""))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
