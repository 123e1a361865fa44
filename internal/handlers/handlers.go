package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/agrilens/internal/auth"
	"github.com/example/agrilens/internal/dashboard"
	"github.com/example/agrilens/internal/intake"
	"github.com/example/agrilens/internal/marketplace"
	"github.com/example/agrilens/internal/outcome"
	"github.com/example/agrilens/internal/report"
	"github.com/example/agrilens/internal/session"
	"github.com/example/agrilens/internal/usecase"
)

const (
	// MaxUploadSize bounds the in-memory part of multipart parsing.
	MaxUploadSize = 10 << 20

	// multipartOverhead leaves room for boundaries and form fields around the image.
	multipartOverhead = 1 << 20

	maxWait       = 30 * time.Second
	defaultRecent = 10
	maxRecent     = 50
)

// Deps groups the services the HTTP layer exposes.
type Deps struct {
	Scans       *usecase.ScanUseCase
	Catalog     *marketplace.Catalog
	Favorites   marketplace.Favorites
	Dashboard   *dashboard.Service
	Logger      *zap.Logger
	ReadyChecks map[string]func(context.Context) error
}

type handler struct {
	Deps
}

type snapshotResponse struct {
	session.Snapshot
	DataURL string `json:"data_url,omitempty"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, deps Deps, authMiddleware gin.HandlerFunc) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	h := &handler{Deps: deps}

	router.GET("/health", h.health)

	api := router.Group("/", authMiddleware)
	api.POST("/sessions", h.createSession)
	api.GET("/sessions/:id", h.getSession)
	api.DELETE("/sessions/:id", h.closeSession)
	api.POST("/sessions/:id/image", h.uploadImage)
	api.GET("/samples", h.listSamples)
	api.POST("/sessions/:id/samples/:name", h.useSample)
	api.POST("/sessions/:id/analyze", h.analyze)
	api.POST("/sessions/:id/reset", h.reset)
	api.GET("/sessions/:id/outcome", h.getOutcome)
	api.GET("/sessions/:id/report", h.getReport)
	api.GET("/scans/recent", h.recentScans)
	api.GET("/metrics/outcomes", h.outcomeMetrics)
	api.GET("/marketplace/listings", h.listListings)
	api.POST("/marketplace/listings/:id/favorite", h.toggleFavorite)
	api.GET("/marketplace/favorites", h.listFavorites)
	api.GET("/dashboard", h.dashboard)
}

func (h *handler) health(c *gin.Context) {
	checks := gin.H{}
	status := http.StatusOK
	for name, check := range h.ReadyChecks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		err := check(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}

func (h *handler) createSession(c *gin.Context) {
	var req struct {
		Kind string `json:"kind"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	kind, err := outcome.ParseKind(req.Kind)
	if err != nil {
		h.fail(c, err)
		return
	}
	snap, err := h.Scans.CreateSession(c.Request.Context(), userID(c), kind)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toResponse(snap))
}

func (h *handler) getSession(c *gin.Context) {
	var (
		snap session.Snapshot
		err  error
	)
	if raw := c.Query("wait"); raw != "" {
		wait, perr := time.ParseDuration(raw)
		if perr != nil || wait < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "wait must be a non-negative duration"})
			return
		}
		snap, err = h.Scans.AwaitSession(c.Request.Context(), userID(c), c.Param("id"), min(wait, maxWait))
	} else {
		snap, err = h.Scans.Session(c.Request.Context(), userID(c), c.Param("id"))
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(snap))
}

func (h *handler) closeSession(c *gin.Context) {
	if err := h.Scans.CloseSession(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) uploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Scans.MaxUploadBytes()+multipartOverhead)

	file, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
		return
	}
	defer src.Close()

	origin := intake.ParseOrigin(c.PostForm("origin"))
	snap, err := h.Scans.UploadImage(c.Request.Context(), userID(c), c.Param("id"), src, file.Filename, origin)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(snap))
}

func (h *handler) listSamples(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"samples": h.Scans.SampleNames()})
}

func (h *handler) useSample(c *gin.Context) {
	snap, err := h.Scans.UseSample(c.Request.Context(), userID(c), c.Param("id"), c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(snap))
}

func (h *handler) analyze(c *gin.Context) {
	snap, err := h.Scans.StartAnalysis(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toResponse(snap))
}

func (h *handler) reset(c *gin.Context) {
	snap, err := h.Scans.Reset(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(snap))
}

func (h *handler) getOutcome(c *gin.Context) {
	stored, err := h.Scans.GetOutcome(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stored)
}

func (h *handler) getReport(c *gin.Context) {
	stored, err := h.Scans.GetOutcome(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	var buf bytes.Buffer
	err = report.WriteScan(&buf, report.Scan{
		SessionID:   stored.SessionID,
		Kind:        stored.Kind,
		Outcome:     stored.Outcome,
		ImageName:   stored.ImageName,
		ImageOrigin: string(stored.ImageOrigin),
		ImageSHA1:   stored.ImageSHA1,
		AnalyzedAt:  stored.CreatedAt,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="agrilens-`+stored.SessionID+`.md"`)
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", buf.Bytes())
}

func (h *handler) recentScans(c *gin.Context) {
	limit := defaultRecent
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRecent)
	}
	scans, err := h.Scans.RecentScans(c.Request.Context(), userID(c), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": scans})
}

func (h *handler) outcomeMetrics(c *gin.Context) {
	kind, err := outcome.ParseKind(c.Query("kind"))
	if err != nil {
		h.fail(c, err)
		return
	}
	summary, err := h.Scans.GetOutcomeSummary(c.Request.Context(), kind)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *handler) listListings(c *gin.Context) {
	verified, _ := strconv.ParseBool(c.Query("verified"))
	listings := h.Catalog.Search(marketplace.Filter{
		Category:     c.Query("category"),
		Query:        c.Query("q"),
		Grade:        c.Query("grade"),
		VerifiedOnly: verified,
	})
	c.JSON(http.StatusOK, gin.H{"listings": listings, "categories": marketplace.Categories})
}

func (h *handler) toggleFavorite(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing id must be an integer"})
		return
	}
	if _, err := h.Catalog.Get(id); err != nil {
		h.fail(c, err)
		return
	}
	favorite, err := h.Favorites.Toggle(c.Request.Context(), userID(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listing_id": id, "favorite": favorite})
}

func (h *handler) listFavorites(c *gin.Context) {
	ids, err := h.Favorites.List(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	listings := make([]marketplace.Listing, 0, len(ids))
	for _, id := range ids {
		if l, err := h.Catalog.Get(id); err == nil {
			listings = append(listings, l)
		}
	}
	c.JSON(http.StatusOK, gin.H{"listings": listings})
}

func (h *handler) dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.Dashboard.Overview(c.Request.Context(), userID(c)))
}

// fail maps domain errors onto HTTP statuses. Unexpected errors are logged
// and reported without detail.
func (h *handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, intake.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, intake.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, intake.ErrReadFailure), errors.Is(err, outcome.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, intake.ErrUnknownSample),
		errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrClosed),
		errors.Is(err, usecase.ErrOutcomeNotFound),
		errors.Is(err, marketplace.ErrListingNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrAnalysisInProgress),
		errors.Is(err, session.ErrNoImage),
		errors.Is(err, usecase.ErrOutcomeNotReady):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func toResponse(snap session.Snapshot) snapshotResponse {
	resp := snapshotResponse{Snapshot: snap}
	if snap.Asset != nil {
		resp.DataURL = snap.Asset.DataURL()
	}
	return resp
}

func userID(c *gin.Context) string {
	id, _ := auth.GetUserID(c.Request.Context())
	return strings.TrimSpace(id)
}
