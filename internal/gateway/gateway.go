package gateway

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/paybridge/paybridge/internal/auth"
	"github.com/paybridge/paybridge/internal/engine"
	"github.com/paybridge/paybridge/internal/payments"
)

// Gateway exposes the settlement engine over HTTP. It is the engine's only
// call boundary: the caller identity on every mutating route comes from the
// verified token, never from the request body.
type Gateway struct {
	router  *gin.Engine
	engine  *engine.Engine
	auth    *auth.Service
	limiter *RateLimiter
	hub     *Hub
	log     *slog.Logger
}

// Config holds gateway construction parameters.
type Config struct {
	Engine *engine.Engine
	Auth   *auth.Service

	// Limiter is optional; a nil limiter disables rate limiting.
	Limiter *RateLimiter

	Logger *slog.Logger
}

// NewGateway builds the router and its middleware chain.
func NewGateway(cfg Config) *Gateway {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	g := &Gateway{
		router:  gin.New(),
		engine:  cfg.Engine,
		auth:    cfg.Auth,
		limiter: cfg.Limiter,
		hub:     NewHub(log),
		log:     log,
	}

	g.router.Use(gin.Recovery())
	g.router.Use(g.correlationMiddleware())
	g.router.Use(g.loggingMiddleware())
	if g.limiter != nil {
		g.router.Use(g.rateLimitMiddleware())
	}

	g.setupRoutes()
	return g
}

func (g *Gateway) setupRoutes() {
	g.router.GET("/health", g.healthCheck)

	v1 := g.router.Group("/api/v1")
	{
		v1.POST("/deposits", g.authMiddleware(), g.deposit)
		v1.POST("/payments", g.authMiddleware(), g.createPayment)
		v1.POST("/payments/:id/execute", g.authMiddleware(), g.executePayment)
		v1.PUT("/chains/:id", g.authMiddleware(), g.configureChain)

		v1.GET("/payments/:id", g.getPayment)
		v1.GET("/chains/:id", g.getChain)
		v1.GET("/accounts/:account/balance", g.getBalance)
		v1.GET("/accounts/:account/pending", g.getPendingCount)

		v1.GET("/ws", g.authMiddleware(), g.handleWebSocket)
	}
}

// Handler returns the underlying HTTP handler, mainly for tests and for
// embedding into an http.Server.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Middleware

func (g *Gateway) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		claims, err := g.auth.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("account", claims.Account)
		c.Next()
	}
}

func (g *Gateway) correlationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set("correlation_id", correlationID)
		c.Header("X-Correlation-ID", correlationID)
		c.Next()
	}
}

func (g *Gateway) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		g.log.Info("request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"correlation_id", c.GetString("correlation_id"),
		)
	}
}

func (g *Gateway) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := g.limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			// A broken limiter backend must not take the API down.
			g.log.Warn("rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// Handlers

func (g *Gateway) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

type depositRequest struct {
	Amount uint64 `json:"amount"`
}

func (g *Gateway) deposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	caller := c.MustGet("account").(string)
	g.engine.Deposit(c.Request.Context(), caller, req.Amount)

	c.JSON(http.StatusOK, gin.H{
		"account": caller,
		"balance": g.engine.GetBalance(caller),
	})
}

type createPaymentRequest struct {
	Recipient        string `json:"recipient" binding:"required"`
	Amount           uint64 `json:"amount"`
	DestinationChain uint32 `json:"destination_chain"`
	Kind             string `json:"kind"`
}

func (g *Gateway) createPayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	kind := payments.KindPayment
	if req.Kind != "" {
		parsed, err := payments.ParseKind(req.Kind)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		kind = parsed
	}

	sender := c.MustGet("account").(string)
	id, err := g.engine.CreateCrossChainPayment(c.Request.Context(), sender, req.Recipient, req.Amount, req.DestinationChain, kind)
	if err != nil {
		g.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"payment_id": id})
}

func (g *Gateway) executePayment(c *gin.Context) {
	id, ok := paymentID(c)
	if !ok {
		return
	}

	caller := c.MustGet("account").(string)
	if err := g.engine.ExecuteCrossChainPayment(c.Request.Context(), caller, id); err != nil {
		g.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment_id": id, "executed": true})
}

type configureChainRequest struct {
	Supported bool   `json:"supported"`
	Relayer   string `json:"relayer"`
}

func (g *Gateway) configureChain(c *gin.Context) {
	id, ok := chainID(c)
	if !ok {
		return
	}

	var req configureChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	caller := c.MustGet("account").(string)
	if err := g.engine.ConfigureChain(c.Request.Context(), caller, id, req.Supported, req.Relayer); err != nil {
		g.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chain_id": id, "supported": req.Supported})
}

func (g *Gateway) getPayment(c *gin.Context) {
	id, ok := paymentID(c)
	if !ok {
		return
	}

	record, found := g.engine.GetPaymentInfo(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_id":        id,
		"sender":            record.Sender,
		"recipient":         record.Recipient,
		"amount":            record.Amount,
		"source_chain":      record.SourceChain,
		"destination_chain": record.DestinationChain,
		"kind":              record.Kind.String(),
		"executed":          record.Executed,
		"created_at":        record.CreatedAt,
	})
}

func (g *Gateway) getChain(c *gin.Context) {
	id, ok := chainID(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chain_id":  id,
		"supported": g.engine.IsChainSupported(id),
	})
}

func (g *Gateway) getBalance(c *gin.Context) {
	account := c.Param("account")
	c.JSON(http.StatusOK, gin.H{
		"account": account,
		"balance": g.engine.GetBalance(account),
	})
}

func (g *Gateway) getPendingCount(c *gin.Context) {
	account := c.Param("account")
	c.JSON(http.StatusOK, gin.H{
		"account": account,
		"pending": g.engine.GetPendingPaymentsCount(account),
	})
}

// renderError maps engine sentinels to HTTP status codes.
func (g *Gateway) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrInvalidAmount), errors.Is(err, engine.ErrInvalidChain):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrInsufficientBalance):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrPaymentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrAlreadyExecuted):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrUnauthorized):
		status = http.StatusForbidden
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func paymentID(c *gin.Context) (uint32, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return 0, false
	}
	return uint32(id), true
}

func chainID(c *gin.Context) (uint32, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chain id"})
		return 0, false
	}
	return uint32(id), true
}
