package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"sitewatch/internal/domain"
	"sitewatch/internal/service"
	"sitewatch/internal/storage"
)

// Pinger reports database reachability for the health check.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users          service.UserService
	websites       service.WebsiteService
	verifier       TokenVerifier
	db             Pinger
	logger         logrus.FieldLogger
	requestTimeout time.Duration
}

func NewHandler(users service.UserService, websites service.WebsiteService, verifier TokenVerifier, db Pinger, logger logrus.FieldLogger, requestTimeout time.Duration) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		users:          users,
		websites:       websites,
		verifier:       verifier,
		db:             db,
		logger:         logger,
		requestTimeout: requestTimeout,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(), requestLogger(h.logger), requestTimeout(h.requestTimeout))

	api := router.Group("/api")
	api.GET("/health", h.health)

	v1 := api.Group("/v1")
	{
		users := v1.Group("/users")
		users.POST("/signup", h.signup)
		users.POST("/login", h.login)

		website := v1.Group("/website", AuthGate(h.verifier, h.logger))
		website.POST("/create_url", h.createWebsite)
		website.GET("/get_url/:id", h.getWebsite)
		website.GET("/ticks/:id", h.listTicks)
		website.POST("/export/:id", h.exportTicks)
		website.GET("/export/:id", h.listExports)
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createWebsiteRequest struct {
	URL string `json:"url"`
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) health(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			h.logger.WithError(err).Error("health check: database ping failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": "ok"})
}

func (h *Handler) signup(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, bindError(err))
		return
	}

	user, err := h.users.Signup(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"message":  "User created successfully",
	})
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, bindError(err))
		return
	}

	token, err := h.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"message": "Login successful",
	})
}

func (h *Handler) createWebsite(c *gin.Context) {
	var req createWebsiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, bindError(err))
		return
	}

	// owner always comes from the gate, never from the body
	website, err := h.websites.CreateWebsite(c.Request.Context(), userIDFrom(c), req.URL)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, websiteToResponse(*website))
}

func (h *Handler) getWebsite(c *gin.Context) {
	website, err := h.websites.GetWebsite(c.Request.Context(), userIDFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, websiteToDetailResponse(*website))
}

func (h *Handler) listTicks(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.respondError(c, domain.Validation("Invalid input data", domain.FieldError{
				Field:   "limit",
				Rule:    "numeric",
				Message: "limit must be an integer",
			}))
			return
		}
		limit = n
	}

	websiteID := c.Param("id")
	ticks, err := h.websites.ListTicks(c.Request.Context(), userIDFrom(c), websiteID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]TickResponse, len(ticks))
	for i := range ticks {
		resp[i] = tickToResponse(ticks[i])
	}
	c.JSON(http.StatusOK, gin.H{"websiteId": websiteID, "ticks": resp})
}

func (h *Handler) exportTicks(c *gin.Context) {
	export, err := h.websites.ExportTicks(c.Request.Context(), userIDFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"websiteId": export.WebsiteID,
		"key":       export.Key,
		"location":  export.Location,
		"count":     export.Count,
	})
}

func (h *Handler) listExports(c *gin.Context) {
	websiteID := c.Param("id")
	objects, err := h.websites.ListExports(c.Request.Context(), userIDFrom(c), websiteID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, gin.H{"websiteId": websiteID, "exports": resp})
}

// bindError turns a JSON decoding failure into a validation error.
func bindError(err error) error {
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		return domain.Validation("Invalid input data", domain.FieldError{
			Field:   typeErr.Field,
			Rule:    "type",
			Param:   typeErr.Type.String(),
			Message: typeErr.Field + " must be a " + typeErr.Type.String(),
		})
	case errors.Is(err, io.EOF):
		return domain.Validation("Invalid input data", domain.FieldError{
			Field:   "body",
			Rule:    "required",
			Message: "request body is required",
		})
	default:
		return domain.Validation("Invalid input data", domain.FieldError{
			Field:   "body",
			Rule:    "json",
			Message: "request body must be a JSON object",
		})
	}
}

type WebsiteResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	OwnerID   string `json:"ownerId"`
	CreatedAt string `json:"createdAt"`
}

type WebsiteDetailResponse struct {
	WebsiteResponse
	LatestTick *TickResponse `json:"latestTick"`
}

type TickResponse struct {
	ID             string `json:"id"`
	WebsiteID      string `json:"websiteId"`
	Status         string `json:"status"`
	StatusCode     int    `json:"statusCode"`
	ResponseTimeMS int64  `json:"responseTimeMs"`
	CreatedAt      string `json:"createdAt"`
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"lastModified,omitempty"`
}

func websiteToResponse(website domain.Website) WebsiteResponse {
	return WebsiteResponse{
		ID:        website.ID,
		URL:       website.URL,
		OwnerID:   website.OwnerID,
		CreatedAt: website.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func websiteToDetailResponse(website domain.Website) WebsiteDetailResponse {
	resp := WebsiteDetailResponse{WebsiteResponse: websiteToResponse(website)}
	if website.LatestTick != nil {
		tick := tickToResponse(*website.LatestTick)
		resp.LatestTick = &tick
	}
	return resp
}

func tickToResponse(tick domain.Tick) TickResponse {
	return TickResponse{
		ID:             tick.ID,
		WebsiteID:      tick.WebsiteID,
		Status:         string(tick.Status),
		StatusCode:     tick.StatusCode,
		ResponseTimeMS: tick.ResponseTimeMS,
		CreatedAt:      tick.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.UTC().Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
