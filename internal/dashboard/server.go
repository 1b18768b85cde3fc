// Package dashboard exposes the console state and the checkout trigger over
// HTTP. It is the display surface consumed by the rendering layer.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ashendes/commerce-console/internal/apperr"
	"github.com/ashendes/commerce-console/internal/metrics"
	"github.com/ashendes/commerce-console/internal/models"
	"github.com/ashendes/commerce-console/internal/patterns"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// ServiceName labels the console's own request metrics
const ServiceName = "commerce-console"

// State is the read side of the coordinator
type State interface {
	Catalog() models.Catalog
	CatalogError() error
	Snapshot() (models.HealthSnapshot, bool)
	LastSubmission() (models.SubmissionResult, bool)
}

// Refresher triggers on-demand refreshes
type Refresher interface {
	RefreshHealth(ctx context.Context) models.HealthSnapshot
	RefreshCatalog(ctx context.Context) error
}

// Submitter runs one checkout attempt
type Submitter interface {
	Submit(ctx context.Context, itemID string, quantity int, paymentMethod string, catalog models.Catalog) models.SubmissionResult
}

// Inspector performs read-only inventory calls
type Inspector interface {
	Inspect(ctx context.Context, name string) (models.InspectResult, error)
}

// Breaker reports the state of one circuit breaker
type Breaker interface {
	CircuitStatus() patterns.CircuitStatus
}

// Handler serves the console API
type Handler struct {
	State     State
	Refresher Refresher
	Submitter Submitter
	Inspector Inspector
	Breakers  []Breaker
}

// CheckoutRequest is the body of POST /console/checkout
type CheckoutRequest struct {
	ItemID        string `json:"itemId"`
	Quantity      int    `json:"quantity"`
	PaymentMethod string `json:"paymentMethod"`
}

// NewRouter creates a gin engine with recovery and request metrics
func NewRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.PrometheusMiddleware(ServiceName))
	router.Use(requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": ServiceName})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// Register mounts the console routes
func (h *Handler) Register(router gin.IRouter) {
	g := router.Group("/console")
	g.GET("/health", h.getHealth)
	g.POST("/health/refresh", h.refreshHealth)
	g.GET("/catalog", h.getCatalog)
	g.POST("/catalog/refresh", h.refreshCatalog)
	g.POST("/checkout", h.checkout)
	g.GET("/last-checkout", h.lastCheckout)
	g.GET("/inspect/:name", h.inspect)
	g.GET("/circuit-status", h.getCircuitStatus)
}

func (h *Handler) getHealth(c *gin.Context) {
	snapshot, ok := h.State.Snapshot()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no health snapshot yet"})
		return
	}
	c.JSON(http.StatusOK, healthView(snapshot))
}

func (h *Handler) refreshHealth(c *gin.Context) {
	c.JSON(http.StatusOK, healthView(h.Refresher.RefreshHealth(c.Request.Context())))
}

func healthView(s models.HealthSnapshot) gin.H {
	return gin.H{
		"services":     s.Outcomes,
		"up":           s.UpCount(),
		"total":        len(s.Outcomes),
		"all_up":       s.AllUp(),
		"started_at":   s.StartedAt,
		"completed_at": s.CompletedAt,
	}
}

func (h *Handler) getCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, catalogView(h.State.Catalog(), h.State.CatalogError()))
}

func (h *Handler) refreshCatalog(c *gin.Context) {
	err := h.Refresher.RefreshCatalog(c.Request.Context())
	c.JSON(apperr.HTTPStatus(err), catalogView(h.State.Catalog(), err))
}

func catalogView(catalog models.Catalog, err error) gin.H {
	lowStock := 0
	for _, item := range catalog.Items {
		if item.LowStock() {
			lowStock++
		}
	}
	view := gin.H{
		"items":     catalog.Items,
		"source":    catalog.Source,
		"loaded_at": catalog.LoadedAt,
		"count":     catalog.Len(),
		"low_stock": lowStock,
	}
	if err != nil {
		view["error"] = err.Error()
		view["error_kind"] = apperr.Kind(err)
	}
	return view
}

func (h *Handler) checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "invalid request body",
			"error_kind": apperr.Kind(apperr.ErrValidation),
		})
		return
	}

	// A client disconnect must not abort a checkout already on the wire
	result := h.Submitter.Submit(context.WithoutCancel(c.Request.Context()), req.ItemID, req.Quantity, req.PaymentMethod, h.State.Catalog())
	c.JSON(statusFor(result), result)
}

func (h *Handler) lastCheckout(c *gin.Context) {
	result, ok := h.State.LastSubmission()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no checkout submitted yet"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) inspect(c *gin.Context) {
	result, err := h.Inspector.Inspect(c.Request.Context(), c.Param("name"))
	if err != nil && result.StatusCode == 0 {
		c.JSON(apperr.HTTPStatus(err), gin.H{
			"error":      err.Error(),
			"error_kind": apperr.Kind(err),
		})
		return
	}

	// Upstream HTTP errors are reported as data, not as console failures
	view := gin.H{
		"method":      result.Method,
		"path":        result.Path,
		"status_code": result.StatusCode,
		"status":      result.Status,
		"elapsed_ms":  result.ElapsedMs,
	}
	if json.Valid(result.Body) {
		view["body"] = json.RawMessage(result.Body)
	} else {
		view["body"] = string(result.Body)
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) getCircuitStatus(c *gin.Context) {
	view := gin.H{}
	for _, b := range h.Breakers {
		st := b.CircuitStatus()
		view[strings.ToLower(st.Name)+"_circuit"] = gin.H{
			"name":  st.Name,
			"state": st.State,
			"value": st.Value,
		}
	}
	c.JSON(http.StatusOK, view)
}

// statusFor maps a classified result onto the console's HTTP status
func statusFor(r models.SubmissionResult) int {
	if r.Succeeded() {
		return http.StatusOK
	}
	return apperr.HTTPStatus(kindError(r.ErrorKind))
}

func kindError(kind string) error {
	switch kind {
	case "validation":
		return apperr.ErrValidation
	case "business":
		return apperr.ErrBusinessRejection
	case "http":
		return apperr.ErrHTTPStatus
	case "timeout":
		return context.DeadlineExceeded
	case "transport":
		return apperr.ErrTransport
	default:
		return errors.New(kind)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(log.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("Console request")
	}
}
