package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"marketplace-storefront/internal/backend"
	"marketplace-storefront/internal/domain"
	paymentsvc "marketplace-storefront/internal/service/payment"
)

const retryMessage = "The store is temporarily unavailable, please retry."

// writeError maps service errors onto responses. A redirect signal is not
// a failure and is answered with 200.
func (h *handlers) writeError(c *gin.Context, err error) {
	if redirect, ok := domain.AsRedirect(err); ok {
		c.JSON(http.StatusOK, gin.H{"redirect": redirect.Location})
		return
	}
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Printf("httpserver: request failed method=%s path=%s error=%v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, backend.ErrUnavailable):
		return http.StatusServiceUnavailable, retryMessage
	case errors.Is(err, domain.ErrNoCart):
		return http.StatusNotFound, "no cart for this session"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, paymentsvc.ErrUnsupportedProvider):
		return http.StatusBadRequest, paymentsvc.UserMessage(err)
	}
	if be, ok := backend.AsError(err); ok {
		if be.Status == http.StatusNotFound {
			return http.StatusNotFound, be.Message
		}
		return http.StatusBadRequest, strings.TrimSpace(be.Message)
	}
	return http.StatusInternalServerError, "internal error"
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// writePaymentError is writeError with processor wrapper labels removed
// from validation messages.
func (h *handlers) writePaymentError(c *gin.Context, err error) {
	if _, ok := domain.AsRedirect(err); ok {
		h.writeError(c, err)
		return
	}
	status, _ := classify(err)
	if status != http.StatusBadRequest {
		h.writeError(c, err)
		return
	}
	c.JSON(status, gin.H{"error": paymentsvc.UserMessage(err)})
}
