package httpserver

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"marketplace-storefront/internal/domain"
	"marketplace-storefront/internal/metrics"
	cartsvc "marketplace-storefront/internal/service/cart"
	checkoutsvc "marketplace-storefront/internal/service/checkout"
	dispatchsvc "marketplace-storefront/internal/service/dispatch"
	ordersvc "marketplace-storefront/internal/service/order"
	paymentsvc "marketplace-storefront/internal/service/payment"
	productsvc "marketplace-storefront/internal/service/product"
)

type SessionIssuer interface {
	Issue() string
	Valid(id string) bool
	CartTTLSeconds() int
}

type CartService interface {
	Current(ctx context.Context, sessionID string) (*domain.Cart, error)
	Ensure(ctx context.Context, sessionID, currencyCode string) (*domain.Cart, error)
	View(ctx context.Context, sessionID, displayCurrency string) (*cartsvc.Priced, error)
	Price(cart *domain.Cart, displayCurrency string) *cartsvc.Priced
	UpsertItem(ctx context.Context, sessionID, variantID string, quantity int, currencyCode string) (*domain.Cart, error)
	UpdateItem(ctx context.Context, sessionID, lineID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, sessionID, lineID string) (*domain.Cart, error)
	SetShippingAddress(ctx context.Context, sessionID string, in cartsvc.AddressInput) (*domain.Cart, error)
}

type ProductService interface {
	Get(ctx context.Context, productID, currencyCode string) (*productsvc.View, error)
}

type CheckoutService interface {
	View(ctx context.Context, sessionID string, requested checkoutsvc.Step, currency string) (*checkoutsvc.View, error)
}

type ShippingService interface {
	Quote(ctx context.Context, cartID string) (*domain.ShippingQuote, error)
	AssignQuoted(ctx context.Context, cartID, optionID, sellerID string) (*domain.Cart, error)
	Remove(ctx context.Context, cartID, methodID string) (*domain.Cart, error)
}

type PaymentService interface {
	Providers(ctx context.Context, regionID string) ([]paymentsvc.ProviderInfo, error)
	Select(ctx context.Context, cartID, providerID string) (*domain.PaymentSession, error)
	Status(ctx context.Context, cartID string) (*domain.PaymentSession, error)
	Finalize(ctx context.Context, sessionID, cartID string, in paymentsvc.FinalizeInput) (*paymentsvc.FinalizeResult, error)
}

type OrderService interface {
	Complete(ctx context.Context, sessionID, cartID string) (*ordersvc.Result, error)
}

type DispatchTracker interface {
	Watch(ctx context.Context, orderID, fulfillmentID string) (*dispatchsvc.Subscription, error)
	Current(ctx context.Context, orderID, fulfillmentID string) (*domain.Timeline, error)
	ConfirmDelivery(ctx context.Context, orderID, fulfillmentID, token string) error
}

// Deps holds the services the router serves. Metrics and Gatherer may be
// nil.
type Deps struct {
	Sessions SessionIssuer
	Carts    CartService
	Products ProductService
	Checkout CheckoutService
	Shipping ShippingService
	Payments PaymentService
	Orders   OrderService
	Dispatch DispatchTracker

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	// ReadyChecks are probed by /readyz after the database.
	ReadyChecks map[string]func(context.Context) error

	CORSOrigins   []string
	SessionCookie string
}

func (d Deps) validate() error {
	switch {
	case d.Sessions == nil:
		return errors.New("session service is required")
	case d.Carts == nil:
		return errors.New("cart service is required")
	case d.Products == nil:
		return errors.New("product service is required")
	case d.Checkout == nil:
		return errors.New("checkout service is required")
	case d.Shipping == nil:
		return errors.New("shipping service is required")
	case d.Payments == nil:
		return errors.New("payment service is required")
	case d.Orders == nil:
		return errors.New("order service is required")
	case d.Dispatch == nil:
		return errors.New("dispatch tracker is required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.SessionCookie == "" {
		deps.SessionCookie = "_storefront_session"
	}

	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	router.Use(metricsMiddleware(deps.Metrics))
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"Retry-After"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db, deps.ReadyChecks))
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	h := &handlers{deps: deps, logger: logger}

	store := router.Group("/store")
	store.GET("/products/:id", h.getProduct)
	store.POST("/deliveries/confirm", h.confirmDelivery)

	orders := store.Group("/orders/:orderId/fulfillments/:fulfillmentId")
	orders.GET("/timeline", h.getTimeline)
	orders.GET("/timeline/stream", h.streamTimeline)

	cart := store.Group("", sessionMiddleware(deps.Sessions, deps.SessionCookie))
	cart.POST("/cart", h.createCart)
	cart.GET("/cart", h.getCart)
	cart.POST("/cart/line-items", h.addLineItem)
	cart.PATCH("/cart/line-items/:lineId", h.updateLineItem)
	cart.DELETE("/cart/line-items/:lineId", h.deleteLineItem)
	cart.POST("/cart/shipping-address", h.setShippingAddress)
	cart.GET("/checkout", h.getCheckout)

	cart.GET("/cart/shipping/quote", h.getShippingQuote)
	cart.POST("/cart/shipping", h.assignShipping)
	cart.DELETE("/cart/shipping/:methodId", h.removeShipping)

	cart.GET("/cart/payment/providers", h.listPaymentProviders)
	cart.POST("/cart/payment/session", h.selectPayment)
	cart.GET("/cart/payment/session", h.getPaymentSession)
	cart.POST("/cart/payment/finalize", h.finalizePayment)
	cart.POST("/cart/complete", h.completeCart)

	return router, nil
}

type handlers struct {
	deps   Deps
	logger *log.Logger
}
