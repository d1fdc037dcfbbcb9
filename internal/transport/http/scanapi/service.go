package scanapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"carscan-server/internal/domain/auth"
	imgcodec "carscan-server/internal/domain/image"
	"carscan-server/internal/domain/intake"
	"carscan-server/internal/domain/scan"
	"carscan-server/internal/platform/config"
	platformerrors "carscan-server/internal/platform/errors"
	"carscan-server/internal/platform/logging"
	httptransport "carscan-server/internal/transport/http"
)

const overlayTimeout = 10 * time.Second

// Service exposes scan sessions over HTTP.
type Service struct {
	logger    *logging.Logger
	manager   *scan.Manager
	tokens    *auth.SessionToken
	maxUpload int64
}

func NewService(cfg *config.Config, logger *logging.Logger, manager *scan.Manager, tokens *auth.SessionToken) (*Service, error) {
	if cfg == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "scanapi.new", "config is required")
	}
	if manager == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "scanapi.new", "session manager is required")
	}
	if tokens == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "scanapi.new", "token helper is required")
	}
	maxUpload := cfg.Upload.MaxFileSize
	if maxUpload <= 0 {
		maxUpload = config.DefaultMaxFileSize
	}
	return &Service{
		logger:    logger,
		manager:   manager,
		tokens:    tokens,
		maxUpload: maxUpload,
	}, nil
}

// Register mounts the session routes under router.
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	sessions := router.Group("/sessions")
	sessions.POST("", s.handleCreate)

	secured := sessions.Group("/:id", s.RequireSession())
	{
		secured.GET("", s.handleGet)
		secured.DELETE("", s.handleDelete)
		secured.POST("/upload", s.handleUpload)
		secured.POST("/cancel", s.handleCancel)
		secured.POST("/reset", s.handleReset)
		secured.GET("/image", s.handleImage)
		secured.GET("/overlay.png", s.handleOverlay)
	}

	s.logger.InfoTag("HTTP", "session routes registered")
	return nil
}

// RequireSession checks that the request carries a token issued for :id.
func (s *Service) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c.Request)
		if token == "" {
			httptransport.AbortWithError(c, http.StatusUnauthorized, "missing session token")
			return
		}
		if err := s.tokens.Authorize(token, c.Param("id")); err != nil {
			s.logger.WarnTag("HTTP", "token rejected for session %s: %v", c.Param("id"), err)
			httptransport.AbortWithError(c, http.StatusUnauthorized, "invalid session token")
			return
		}
		c.Next()
	}
}

// TokenFromRequest reads a bearer token, the Token header or ?token=.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	if h := r.Header.Get("Token"); h != "" {
		return h
	}
	return r.URL.Query().Get("token")
}

// handleCreate starts a new session.
// @Summary Create a scan session
// @Tags Sessions
// @Produce json
// @Success 201 {object} CreateSessionData
// @Failure 500 {object} httptransport.APIResponse
// @Router /api/sessions [post]
func (s *Service) handleCreate(c *gin.Context) {
	sess, err := s.manager.Create(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	token, err := s.tokens.Issue(sess.ID())
	if err != nil {
		_ = s.manager.Remove(c.Request.Context(), sess.ID())
		s.fail(c, platformerrors.Wrap(platformerrors.KindTransport, "scanapi.create", "failed to issue token", err))
		return
	}
	httptransport.RespondSuccess(c, http.StatusCreated, CreateSessionData{
		Session:   sess.Snapshot(),
		Token:     token,
		ExpiresIn: int64(s.tokens.TTL().Seconds()),
	}, "session created")
}

// handleGet returns the session snapshot.
// @Summary Get session state
// @Tags Sessions
// @Produce json
// @Param id path string true "session id"
// @Param Authorization header string true "Bearer token"
// @Success 200 {object} scan.Snapshot
// @Failure 401 {object} httptransport.APIResponse
// @Failure 404 {object} httptransport.APIResponse
// @Router /api/sessions/{id} [get]
func (s *Service) handleGet(c *gin.Context) {
	snap, err := s.manager.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, snap, "")
}

// @Summary Close a session
// @Tags Sessions
// @Param id path string true "session id"
// @Param Authorization header string true "Bearer token"
// @Success 200 {object} httptransport.APIResponse
// @Router /api/sessions/{id} [delete]
func (s *Service) handleDelete(c *gin.Context) {
	if err := s.manager.Remove(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, nil, "session closed")
}

// handleUpload accepts one or more multipart "file" parts. With
// source=picker only the first part counts, otherwise the first image wins.
// @Summary Upload an image and start a scan
// @Tags Sessions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "session id"
// @Param Authorization header string true "Bearer token"
// @Param file formData file true "vehicle image"
// @Param source query string false "picker or drop"
// @Success 200 {object} UploadData
// @Failure 400 {object} httptransport.APIResponse
// @Failure 409 {object} httptransport.APIResponse
// @Failure 413 {object} httptransport.APIResponse
// @Router /api/sessions/{id}/upload [post]
func (s *Service) handleUpload(c *gin.Context) {
	sess, err := s.manager.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	if c.Request.ContentLength > s.maxUpload {
		s.tooLarge(c)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	form, err := c.MultipartForm()
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.tooLarge(c)
			return
		}
		httptransport.RespondError(c, http.StatusBadRequest, "invalid multipart body", nil)
		return
	}
	headers := form.File["file"]
	if len(headers) == 0 {
		httptransport.RespondError(c, http.StatusBadRequest, "file field is required", nil)
		return
	}

	files := make([]intake.File, 0, len(headers))
	for _, fh := range headers {
		f, err := intake.FromMultipart(fh)
		if err != nil {
			s.fail(c, err)
			return
		}
		files = append(files, f)
	}

	deliver := sess.Drop
	if c.Query("source") == "picker" {
		deliver = sess.Choose
	}
	accepted, err := deliver(files)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !accepted {
		s.logger.DebugTag("HTTP", "session %s upload ignored: no image among %d part(s)", sess.ID(), len(files))
		httptransport.RespondSuccess(c, http.StatusOK, UploadData{Accepted: false, Session: sess.Snapshot()}, "file ignored")
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, UploadData{Accepted: accepted, Session: sess.Snapshot()}, "")
}

// @Summary Cancel a running scan
// @Tags Sessions
// @Param id path string true "session id"
// @Param Authorization header string true "Bearer token"
// @Success 200 {object} CancelData
// @Router /api/sessions/{id}/cancel [post]
func (s *Service) handleCancel(c *gin.Context) {
	sess, err := s.manager.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	canceled := sess.Cancel()
	httptransport.RespondSuccess(c, http.StatusOK, CancelData{Canceled: canceled, Session: sess.Snapshot()}, "")
}

// @Summary Start over
// @Tags Sessions
// @Param id path string true "session id"
// @Param Authorization header string true "Bearer token"
// @Success 200 {object} scan.Snapshot
// @Router /api/sessions/{id}/reset [post]
func (s *Service) handleReset(c *gin.Context) {
	sess, err := s.manager.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	sess.Reset()
	httptransport.RespondSuccess(c, http.StatusOK, sess.Snapshot(), "")
}

// @Summary Uploaded image bytes
// @Tags Sessions
// @Produce image/jpeg,image/png,image/webp
// @Param id path string true "session id"
// @Param token query string true "session token"
// @Success 200 {file} binary
// @Failure 409 {object} httptransport.APIResponse
// @Router /api/sessions/{id}/image [get]
func (s *Service) handleImage(c *gin.Context) {
	sess, err := s.manager.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	file, err := sess.Image()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// handleOverlay renders the last result as PNG.
// @Summary Detection overlay
// @Tags Sessions
// @Produce image/png
// @Param id path string true "session id"
// @Param token query string true "session token"
// @Param mode query string false "composite (default) or overlay"
// @Success 200 {file} binary
// @Failure 409 {object} httptransport.APIResponse
// @Router /api/sessions/{id}/overlay.png [get]
func (s *Service) handleOverlay(c *gin.Context) {
	sess, err := s.manager.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), overlayTimeout)
	defer cancel()
	frame, marks, err := sess.Overlay(ctx, c.DefaultQuery("mode", "composite") != "overlay")
	if err != nil {
		s.fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := imgcodec.EncodePNG(&buf, frame); err != nil {
		s.fail(c, err)
		return
	}
	c.Header("X-Detections", strconv.Itoa(len(marks)))
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Service) tooLarge(c *gin.Context) {
	httptransport.RespondError(c, http.StatusRequestEntityTooLarge,
		"upload exceeds "+strconv.FormatInt(s.maxUpload, 10)+" bytes", nil)
}

func (s *Service) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorTag("HTTP", "%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		_ = c.Error(err)
	}
	httptransport.RespondError(c, status, platformerrors.MessageOf(err), nil)
}

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, scan.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, scan.ErrScanInProgress),
		errors.Is(err, scan.ErrNoResult),
		errors.Is(err, scan.ErrNoUpload),
		platformerrors.IsKind(err, platformerrors.KindRender):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case platformerrors.IsKind(err, platformerrors.KindIntake):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
