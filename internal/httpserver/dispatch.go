package httpserver

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

type confirmDeliveryRequest struct {
	OrderID       string `json:"order_id"`
	FulfillmentID string `json:"fulfillment_id"`
	Token         string `json:"token"`
}

func (h *handlers) getTimeline(c *gin.Context) {
	timeline, err := h.deps.Dispatch.Current(c.Request.Context(), c.Param("orderId"), c.Param("fulfillmentId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, timeline)
}

// streamTimeline pushes a "timeline" event per change until the pair is
// terminal or the client goes away.
func (h *handlers) streamTimeline(c *gin.Context) {
	ctx := c.Request.Context()
	sub, err := h.deps.Dispatch.Watch(ctx, c.Param("orderId"), c.Param("fulfillmentId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer sub.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case timeline, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent("timeline", timeline)
			return true
		}
	})
}

func (h *handlers) confirmDelivery(c *gin.Context) {
	var req confirmDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.deps.Dispatch.ConfirmDelivery(c.Request.Context(), req.OrderID, req.FulfillmentID, req.Token); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}
