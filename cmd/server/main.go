package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/yourorg/checkout-orchestrator/internal/catalog"
	"github.com/yourorg/checkout-orchestrator/internal/config"
	"github.com/yourorg/checkout-orchestrator/internal/gateway/paypal"
	"github.com/yourorg/checkout-orchestrator/internal/gateway/stripe"
	"github.com/yourorg/checkout-orchestrator/internal/identity"
	"github.com/yourorg/checkout-orchestrator/internal/monitor"
	"github.com/yourorg/checkout-orchestrator/internal/orchestrator"
	"github.com/yourorg/checkout-orchestrator/internal/orchestrator/circuitbreaker"
	"github.com/yourorg/checkout-orchestrator/internal/order"
	"github.com/yourorg/checkout-orchestrator/internal/policy"
	"github.com/yourorg/checkout-orchestrator/internal/reporting"
	"github.com/yourorg/checkout-orchestrator/internal/store"
)

const schemaPath = "configs/gateways.schema.json"

type server struct {
	orc      *orchestrator.Orchestrator
	products catalog.Repository
	reporter *reporting.Reporter
}

type submitRequest struct {
	ProductID string `json:"product_id"`
	Gateway   string `json:"payment_gateway"`
	Token     string `json:"token"`
}

// submitOrder settles a checkout submission and answers with the
// caller-facing result string. The status is always 200; the outcome lives
// in the body.
func (s *server) submitOrder(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("submit: bad request: %v", err)
		c.String(http.StatusOK, orchestrator.FailureMessage)
		return
	}
	msg := s.orc.Submit(c.Request.Context(), orchestrator.Submission{
		ProductID:    req.ProductID,
		BuyerID:      c.GetHeader("X-Buyer-ID"),
		Gateway:      req.Gateway,
		PaymentToken: req.Token,
	})
	c.String(http.StatusOK, msg)
}

type createRequest struct {
	ProductID string `json:"product_id"`
}

func (s *server) paypalCreatePayment(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		unprocessable(c)
		return
	}
	token, err := s.orc.CreatePayment(c.Request.Context(), c.GetHeader("X-Buyer-ID"), req.ProductID)
	if err != nil {
		unprocessable(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type executePaymentRequest struct {
	PaymentID string `json:"payment_id"`
	PayerID   string `json:"payer_id"`
}

func (s *server) paypalExecutePayment(c *gin.Context) {
	var req executePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		unprocessable(c)
		return
	}
	if err := s.orc.ExecutePayment(c.Request.Context(), req.PaymentID, req.PayerID); err != nil {
		unprocessable(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

func (s *server) paypalCreateSubscription(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		unprocessable(c)
		return
	}
	token, err := s.orc.CreateSubscription(c.Request.Context(), c.GetHeader("X-Buyer-ID"), req.ProductID)
	if err != nil {
		unprocessable(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type executeSubscriptionRequest struct {
	Token string `json:"token"`
}

func (s *server) paypalExecuteSubscription(c *gin.Context) {
	var req executeSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		unprocessable(c)
		return
	}
	agreementID, err := s.orc.ExecuteSubscription(c.Request.Context(), req.Token)
	if err != nil {
		unprocessable(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agreement_id": agreementID})
}

// unprocessable answers a two-phase endpoint failure. Callers get the same
// generic error whatever the cause.
func unprocessable(c *gin.Context) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "payment request cannot be processed"})
}

// listProducts answers the storefront listing, split into one-time
// purchases and recurring subscriptions.
func (s *server) listProducts(c *gin.Context) {
	products, err := s.products.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot list products"})
		return
	}
	purchase := make([]catalog.Product, 0, len(products))
	subscription := make([]catalog.Product, 0)
	for _, p := range products {
		if p.Recurring() {
			subscription = append(subscription, p)
		} else {
			purchase = append(purchase, p)
		}
	}
	c.JSON(http.StatusOK, gin.H{"purchase": purchase, "subscription": subscription})
}

// orderReport answers the retrospective over orders created since the
// given RFC3339 time, defaulting to the last 24 hours.
func (s *server) orderReport(c *gin.Context) {
	since := time.Now().Add(-24 * time.Hour)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		since = parsed
	}
	orders, err := s.orc.Report(c.Request.Context(), since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot build report"})
		return
	}
	c.JSON(http.StatusOK, s.reporter.Generate(orders))
}

func (s *server) setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("checkout-orchestrator"))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/products", s.listProducts)
	router.GET("/orders/report", s.orderReport)
	router.POST("/orders/submit", s.submitOrder)
	router.POST("/orders/paypal/create_payment", s.paypalCreatePayment)
	router.POST("/orders/paypal/execute_payment", s.paypalExecutePayment)
	router.POST("/orders/paypal/create_subscription", s.paypalCreateSubscription)
	router.POST("/orders/paypal/execute_subscription", s.paypalExecuteSubscription)
	return router
}

// initTracer installs a stdout span exporter and returns its shutdown
// hook.
func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// seedDev fills the in-memory collaborators with development data.
func seedDev(products *catalog.InMemoryRepository, buyers *identity.InMemoryRepository) {
	products.Add(catalog.Product{ID: "prod-honey", Name: "Honey Jar", PriceCents: 500})
	products.Add(catalog.Product{ID: "prod-candles", Name: "Beeswax Candles", PriceCents: 1250})
	products.Add(catalog.Product{ID: "prod-club", Name: "Honey of the Month", PriceCents: 999,
		StripePlanID: "plan_honey_monthly", PayPalPlanID: "P-HONEY-MONTHLY"})
	buyers.Add(identity.Buyer{ID: "buyer-dev", Email: "dev@example.com"})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	schema, err := os.ReadFile(schemaPath)
	if err != nil {
		log.Fatalf("Failed to read configuration schema: %v", err)
	}
	contract, err := monitor.NewContractMonitor(schema)
	if err != nil {
		log.Fatalf("Failed to compile configuration schema: %v", err)
	}
	doc, err := cfg.Document()
	if err != nil {
		log.Fatalf("Failed to render configuration document: %v", err)
	}
	ok, violations, err := contract.Validate(doc)
	if err != nil {
		log.Fatalf("Failed to validate configuration: %v", err)
	}
	if !ok {
		log.Fatalf("Configuration breaks the gateway contract: %s", monitor.FormatErrors(violations))
	}

	shutdown, err := initTracer()
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("Tracer shutdown: %v", err)
		}
	}()

	var orders order.Store
	if cfg.MySQLDSN != "" {
		mysqlStore, err := store.OpenMySQL(cfg.MySQLDSN)
		if err != nil {
			log.Fatalf("Failed to open MySQL store: %v", err)
		}
		orders = mysqlStore
		log.Println("Using MySQL order store")
	} else {
		orders = store.NewMemory()
		log.Println("MYSQL_DSN not set, using in-memory order store")
	}

	products := catalog.NewInMemoryRepository()
	buyers := identity.NewInMemoryRepository()
	seedDev(products, buyers)

	charger := stripe.NewAdapter(nil, cfg.Stripe.APIKey)
	if cfg.Stripe.APIBaseURL != "" {
		charger.SetBaseURL(cfg.Stripe.APIBaseURL)
	}
	twoPhase := paypal.NewAdapter(nil, cfg.PayPal.ClientID, cfg.PayPal.ClientSecret,
		cfg.PayPal.ReturnURL, cfg.PayPal.CancelURL)
	if cfg.PayPal.APIBaseURL != "" {
		twoPhase.SetBaseURL(cfg.PayPal.APIBaseURL)
	}

	enforcer, err := policy.NewEnforcer(policy.DefaultSubmissionRules())
	if err != nil {
		log.Fatalf("Failed to compile submission rules: %v", err)
	}
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{})

	orc := orchestrator.New(orders, products, buyers, charger, twoPhase, enforcer, breaker, cfg.RecencyWindow)
	srv := &server{orc: orc, products: products, reporter: reporting.NewReporter()}

	log.Printf("Starting server on %s", cfg.Addr)
	if err := srv.setupRouter().Run(cfg.Addr); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
