package cli

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/ledgerbridge/internal/bridge"
)

// adminHandler serves metrics and read-only ledger queries for a running
// node.
type adminHandler struct {
	api      *bridge.API
	registry prometheus.Gatherer
	logger   *slog.Logger
}

func newAdminRouter(api *bridge.API, registry prometheus.Gatherer, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	h := &adminHandler{api: api, registry: registry, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), h.logRequests())
	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	{
		v1.GET("/subjects", h.listSubjects)
		v1.GET("/governances", h.listGovernances)
		v1.GET("/subjects/:id", h.getSubject)
		v1.GET("/subjects/:id/events", h.listEvents)
		v1.GET("/subjects/:id/events/:sn", h.getEvent)
		v1.GET("/subjects/:id/verify", h.verifyChain)
		v1.GET("/requests/:id", h.getRequest)
		v1.GET("/approvals", h.listApprovals)
	}
	return r
}

func (h *adminHandler) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		h.logger.Debug("admin request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func statusFor(err error) int {
	switch bridge.KindOf(err) {
	case bridge.KindMalformedIdentifier, bridge.KindDeserialization:
		return http.StatusBadRequest
	case bridge.KindNotFound:
		return http.StatusNotFound
	case bridge.KindNodeUnavailable, bridge.KindNoConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *adminHandler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("admin query failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": errorCode(err)})
}

// page reads the from and quantity query parameters.
func page(c *gin.Context) (string, int64, bool) {
	quantity := int64(0)
	if q := c.Query("quantity"); q != "" {
		n, err := strconv.ParseInt(q, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be an integer"})
			return "", 0, false
		}
		quantity = n
	}
	return c.Query("from"), quantity, true
}

func subjectsJSON(subjects []*bridge.Subject) []bridge.SubjectData {
	out := make([]bridge.SubjectData, 0, len(subjects))
	for _, s := range subjects {
		if data, ok := s.Data(); ok {
			out = append(out, data)
		}
	}
	return out
}

func (h *adminHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "controller": h.api.Controller()})
}

// listSubjects handles GET /v1/subjects?namespace=&from=&quantity=.
func (h *adminHandler) listSubjects(c *gin.Context) {
	from, quantity, ok := page(c)
	if !ok {
		return
	}
	var (
		subjects []*bridge.Subject
		err      error
	)
	if gov := c.Query("governance"); gov != "" {
		subjects, err = h.api.GetSubjectsByGovernance(gov, from, quantity)
	} else {
		subjects, err = h.api.GetSubjects(c.Query("namespace"), from, quantity)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, subjectsJSON(subjects))
}

func (h *adminHandler) listGovernances(c *gin.Context) {
	from, quantity, ok := page(c)
	if !ok {
		return
	}
	govs, err := h.api.GetGovernances(c.Query("namespace"), from, quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, subjectsJSON(govs))
}

func (h *adminHandler) getSubject(c *gin.Context) {
	subj, err := h.api.GetSubject(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	data, _ := subj.Data()
	c.JSON(http.StatusOK, data)
}

// listEvents handles GET /v1/subjects/:id/events. from is an sn here and
// may be negative to count back from the latest event.
func (h *adminHandler) listEvents(c *gin.Context) {
	fromRaw, quantity, ok := page(c)
	if !ok {
		return
	}
	var from *int64
	if fromRaw != "" {
		sn, err := strconv.ParseInt(fromRaw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be an integer"})
			return
		}
		from = &sn
	}
	events, err := h.api.GetEvents(c.Param("id"), from, quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *adminHandler) getEvent(c *gin.Context) {
	sn, err := strconv.ParseUint(c.Param("sn"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sn must be a non-negative integer"})
		return
	}
	ev, err := h.api.GetEvent(c.Param("id"), sn)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// verifyChain reports a broken chain as 200 with valid=false.
func (h *adminHandler) verifyChain(c *gin.Context) {
	report, err := h.api.VerifyChain(c.Param("id"))
	if err != nil {
		if bridge.IsKind(err, bridge.KindExecutionError) {
			h.logger.Warn("event chain verification failed", "subject", c.Param("id"), "error", err)
			c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "report": report})
}

func (h *adminHandler) getRequest(c *gin.Context) {
	req, err := h.api.GetRequest(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *adminHandler) listApprovals(c *gin.Context) {
	from, quantity, ok := page(c)
	if !ok {
		return
	}
	approvals, err := h.api.GetPendingApprovals(from, quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, approvals)
}
