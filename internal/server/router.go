package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fountainhead-app/fountainhead/internal/auth"
	"github.com/fountainhead-app/fountainhead/internal/documents"
	"github.com/fountainhead-app/fountainhead/internal/lock"
	"github.com/fountainhead-app/fountainhead/internal/presence"
)

const (
	userIDContextKey      = "fountainhead_user_id"
	displayNameContextKey = "fountainhead_display_name"
)

var (
	errMissingSessionTokens   = errors.New("session token manager dependency required")
	errMissingDocumentService = errors.New("document service dependency required")
	errMissingLockService     = errors.New("lock service dependency required")
	errMissingPresence        = errors.New("presence service dependency required")
	errInvalidAuthorization   = errors.New("authorization header missing or invalid")
)

// SessionTokens issues and validates editor session tokens.
type SessionTokens interface {
	IssueToken(userID, displayName string) (string, error)
	ValidateToken(token string) (auth.SessionClaims, error)
}

// Dependencies wires the HTTP surface to its collaborators.
type Dependencies struct {
	SessionTokens SessionTokens
	Documents     *documents.Service
	Locks         lock.Service
	Cursors       presence.Service
	Logger        *zap.Logger
}

// NewHTTPHandler builds the collaboration backend router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionTokens == nil {
		return nil, errMissingSessionTokens
	}
	if deps.Documents == nil {
		return nil, errMissingDocumentService
	}
	if deps.Locks == nil {
		return nil, errMissingLockService
	}
	if deps.Cursors == nil {
		return nil, errMissingPresence
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:    deps.SessionTokens,
		documents: deps.Documents,
		locks:     deps.Locks,
		cursors:   deps.Cursors,
		logger:    logger,
	}

	router.POST("/auth/session", handler.handleIssueSession)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/documents", handler.handleListDocuments)
	protected.POST("/documents", handler.handleCreateDocument)
	protected.GET("/documents/:id", handler.handleGetDocument)
	protected.PUT("/documents/:id", handler.handleUpdateDocument)
	protected.DELETE("/documents/:id", handler.handleDeleteDocument)
	protected.PUT("/documents/:id/collaborators", handler.handleShareDocument)
	protected.GET("/documents/:id/lock", handler.handleLockStatus)
	protected.POST("/documents/:id/lock", handler.handleLockAcquire)
	protected.PUT("/documents/:id/lock", handler.handleLockHeartbeat)
	protected.DELETE("/documents/:id/lock", handler.handleLockRelease)
	protected.GET("/documents/:id/cursors", handler.handleListCursors)
	protected.PUT("/documents/:id/cursor", handler.handlePublishCursor)
	protected.DELETE("/documents/:id/cursor", handler.handleClearCursor)

	return router, nil
}

type httpHandler struct {
	tokens    SessionTokens
	documents *documents.Service
	locks     lock.Service
	cursors   presence.Service
	logger    *zap.Logger
}

type sessionRequestPayload struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type sessionResponsePayload struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// handleIssueSession mints a session token for the supplied identity. The
// reference backend has no upstream identity provider; deployments front it
// with one and keep this endpoint internal.
func (h *httpHandler) handleIssueSession(c *gin.Context) {
	var request sessionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.UserID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	token, err := h.tokens.IssueToken(request.UserID, request.DisplayName)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, sessionResponsePayload{
		AccessToken: token,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, claims.UserID)
	c.Set(displayNameContextKey, claims.UserDisplayName)
	c.Next()
}

type createDocumentPayload struct {
	Title   string `json:"title"`
	Author  string `json:"author"`
	Content string `json:"content"`
}

func (h *httpHandler) handleCreateDocument(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	var request createDocumentPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	snapshot, err := h.documents.Create(c.Request.Context(), userID, documents.CreateInput{
		Title:   request.Title,
		Author:  request.Author,
		Content: request.Content,
	})
	if err != nil {
		h.respondDocumentError(c, "create", err)
		return
	}
	c.JSON(http.StatusCreated, snapshot)
}

func (h *httpHandler) handleGetDocument(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	snapshot, err := h.documents.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.respondDocumentError(c, "get", err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

type updateDocumentPayload struct {
	Title   string `json:"title"`
	Author  string `json:"author"`
	Content string `json:"content"`
	Version int64  `json:"version"`
	Force   bool   `json:"force"`
}

func (h *httpHandler) handleUpdateDocument(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	var request updateDocumentPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	snapshot, err := h.documents.Update(c.Request.Context(), userID, documents.UpdateInput{
		ID:      c.Param("id"),
		Title:   request.Title,
		Author:  request.Author,
		Content: request.Content,
		Version: request.Version,
		Force:   request.Force,
	})
	if err != nil {
		h.respondDocumentError(c, "update", err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *httpHandler) handleListDocuments(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	snapshots, err := h.documents.List(c.Request.Context(), userID)
	if err != nil {
		h.respondDocumentError(c, "list", err)
		return
	}
	c.JSON(http.StatusOK, snapshots)
}

func (h *httpHandler) handleDeleteDocument(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if err := h.documents.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondDocumentError(c, "delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type sharePayload struct {
	Collaborators []string `json:"collaborators"`
}

func (h *httpHandler) handleShareDocument(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	var request sharePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	snapshot, err := h.documents.Share(c.Request.Context(), userID, c.Param("id"), request.Collaborators)
	if err != nil {
		h.respondDocumentError(c, "share", err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

type lockRequestPayload struct {
	DeviceID string `json:"device_id"`
}

type lockStatusPayload struct {
	Held           bool   `json:"held"`
	HolderUserID   string `json:"holder_user_id,omitempty"`
	HolderDeviceID string `json:"holder_device_id,omitempty"`
	HolderName     string `json:"holder_name,omitempty"`
}

func lockStatusOf(status lock.Status) lockStatusPayload {
	return lockStatusPayload{
		Held:           status.Held,
		HolderUserID:   status.HolderUserID,
		HolderDeviceID: status.HolderDeviceID,
		HolderName:     status.HolderName,
	}
}

func (h *httpHandler) lockClaim(c *gin.Context) (lock.Claim, bool) {
	var request lockRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.DeviceID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return lock.Claim{}, false
	}
	return lock.Claim{
		DocumentID:  c.Param("id"),
		UserID:      c.GetString(userIDContextKey),
		DeviceID:    request.DeviceID,
		DisplayName: c.GetString(displayNameContextKey),
	}, true
}

func (h *httpHandler) handleLockAcquire(c *gin.Context) {
	claim, ok := h.lockClaim(c)
	if !ok {
		return
	}
	status, err := h.locks.Acquire(c.Request.Context(), claim)
	if err != nil {
		h.logger.Error("lock acquire failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lock_failed"})
		return
	}
	c.JSON(http.StatusOK, lockStatusOf(status))
}

func (h *httpHandler) handleLockHeartbeat(c *gin.Context) {
	claim, ok := h.lockClaim(c)
	if !ok {
		return
	}
	if err := h.locks.Heartbeat(c.Request.Context(), claim); err != nil {
		h.logger.Error("lock heartbeat failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lock_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleLockRelease(c *gin.Context) {
	claim, ok := h.lockClaim(c)
	if !ok {
		return
	}
	if err := h.locks.Release(c.Request.Context(), claim); err != nil {
		h.logger.Error("lock release failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lock_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleLockStatus(c *gin.Context) {
	status, err := h.locks.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("lock status failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lock_failed"})
		return
	}
	c.JSON(http.StatusOK, lockStatusOf(status))
}

type cursorPayload struct {
	Position       int `json:"position"`
	SelectionStart int `json:"selection_start"`
	SelectionEnd   int `json:"selection_end"`
}

func (h *httpHandler) handlePublishCursor(c *gin.Context) {
	var request cursorPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	record := presence.CursorRecord{
		UserID:            c.GetString(userIDContextKey),
		DisplayName:       c.GetString(displayNameContextKey),
		Position:          request.Position,
		SelectionStart:    request.SelectionStart,
		SelectionEnd:      request.SelectionEnd,
		LastSeenAtSeconds: time.Now().Unix(),
	}
	if err := h.cursors.Publish(c.Request.Context(), c.Param("id"), record); err != nil {
		h.logger.Error("cursor publish failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cursor_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleClearCursor(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if err := h.cursors.Clear(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.logger.Error("cursor clear failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cursor_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListCursors(c *gin.Context) {
	records, err := h.cursors.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("cursor list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cursor_failed"})
		return
	}
	if records == nil {
		records = []presence.CursorRecord{}
	}
	c.JSON(http.StatusOK, records)
}

// respondDocumentError translates document service failures to the wire
// statuses editor clients key off of.
func (h *httpHandler) respondDocumentError(c *gin.Context, action string, err error) {
	switch {
	case errors.Is(err, documents.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, documents.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, documents.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "version_conflict"})
	case errors.Is(err, documents.ErrDeleted):
		c.JSON(http.StatusGone, gin.H{"error": "deleted"})
	default:
		h.logger.Error("document request failed", zap.String("action", action), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}
