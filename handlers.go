package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"docintake/models"
	"docintake/pkg/apierr"
	"docintake/pkg/audit"
	"docintake/pkg/auth"
	"docintake/pkg/classifier"
	"docintake/pkg/config"
	"docintake/pkg/documents"
	"docintake/pkg/logger"
	"docintake/pkg/storage"
	"docintake/pkg/tabular"
	"docintake/pkg/token"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"
)

const eventTypesNote = "Los eventos de login y refresh token se registran como 'Interacción del usuario'"

var errEmptyFile = errors.New("file is empty")

// server holds the collaborators every handler needs.
type server struct {
	cfg       *config.Config
	log       *logger.Logger
	tokens    *token.Issuer
	auth      *auth.Service
	audit     *audit.Service
	tabular   *tabular.Processor
	documents *documents.Service
}

func buildServer(cfg *config.Config, db *gorm.DB, store storage.Store, c classifier.Classifier, log *logger.Logger) *server {
	tokens := token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)
	auditSvc := audit.New(db, log)
	return &server{
		cfg:       cfg,
		log:       log,
		tokens:    tokens,
		auth:      auth.New(db, tokens, auditSvc, log),
		audit:     auditSvc,
		tabular:   tabular.NewProcessor(db, store, auditSvc, log),
		documents: documents.NewService(db, store, c, auditSvc, log),
	}
}

// newServer wires the configured blob store and classifier. The returned
// func releases both.
func newServer(ctx context.Context, cfg *config.Config, db *gorm.DB, log *logger.Logger) (*server, func(), error) {
	store, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return nil, nil, err
	}
	c, closer, err := classifier.New(ctx, cfg.AI, log)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := closer.Close(); err != nil {
			log.Warn("classifier close failed", "error", err)
		}
		if sc, ok := store.(io.Closer); ok {
			if err := sc.Close(); err != nil {
				log.Warn("storage close failed", "error", err)
			}
		}
	}
	return buildServer(cfg, db, store, c, log), cleanup, nil
}

func setupRoutes(r *gin.Engine, s *server) {
	r.Use(gin.Recovery())
	if s.cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(s.cfg.Tracing.ServiceName))
	}
	r.Use(requestLogger(s.log))
	r.Use(corsMiddleware(s.cfg.CORS))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", s.loginHandler)
	v1.POST("/token/refresh", s.refreshHandler)

	authGroup := v1.Group("")
	authGroup.Use(bearerAuth(s.tokens))
	authGroup.POST("/files/upload", requireRole(models.RoleUploader), s.uploadHandler)
	authGroup.GET("/files/analysis/:id", s.getAnalysisHandler)
	authGroup.PUT("/files/analysis/:id", requireRole(models.RoleUploader), s.updateAnalysisHandler)
	authGroup.GET("/audit/logs", s.auditLogsHandler)
	authGroup.GET("/audit/event-types", s.eventTypesHandler)
}

func (s *server) loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Write(c, apierr.BadRequest(err))
		return
	}
	tok, err := s.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			apierr.Write(c, apierr.Unauthorized(auth.ErrUnauthorized))
			return
		}
		apierr.Write(c, apierr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, tok)
}

// refreshHandler verifies the presented bearer itself so that failed
// refreshes are audited too.
func (s *server) refreshHandler(c *gin.Context) {
	raw, ok := bearerToken(c)
	if !ok {
		apierr.Write(c, apierr.Unauthorized(errMissingBearer))
		return
	}
	tok, err := s.auth.Refresh(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			apierr.Write(c, apierr.Unauthorized(errExpiredToken))
			return
		}
		apierr.Write(c, apierr.Unauthorized(errInvalidToken))
		return
	}
	c.JSON(http.StatusOK, tok)
}

func (s *server) uploadHandler(c *gin.Context) {
	if limit := s.cfg.Upload.MaxBytes; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		if tooLarge(err) {
			apierr.Write(c, s.tooLargeErr())
			return
		}
		apierr.Write(c, apierr.Badf("file missing"))
		return
	}
	if s.cfg.Upload.MaxBytes > 0 && fh.Size > s.cfg.Upload.MaxBytes {
		apierr.Write(c, s.tooLargeErr())
		return
	}
	f, err := fh.Open()
	if err != nil {
		apierr.Write(c, apierr.Internal(fmt.Errorf("open upload: %w", err)))
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		apierr.Write(c, apierr.Internal(fmt.Errorf("read upload: %w", err)))
		return
	}
	if len(data) == 0 {
		apierr.Write(c, apierr.BadRequest(errEmptyFile))
		return
	}

	ctx := c.Request.Context()
	contentType := fh.Header.Get("Content-Type")
	if tabular.IsTabular(fh.Filename, contentType) {
		res, err := s.tabular.Process(ctx, tabular.Upload{
			FileName:    fh.Filename,
			ContentType: contentType,
			Data:        data,
			Param1:      formParam(c, "parametro1"),
			Param2:      formParam(c, "parametro2"),
			UploadedBy:  subject(c),
		})
		if err != nil {
			if errors.Is(err, tabular.ErrMissingParams) || errors.Is(err, tabular.ErrUnreadable) {
				apierr.Write(c, apierr.BadRequest(err))
				return
			}
			apierr.Write(c, apierr.Internal(err))
			return
		}
		c.JSON(http.StatusOK, res)
		return
	}

	out, err := s.documents.AnalyzeAndStore(ctx, documents.Upload{
		FileName:    fh.Filename,
		ContentType: contentType,
		Data:        data,
		UploadedBy:  subject(c),
	})
	if err != nil {
		apierr.Write(c, apierr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, out)
}

// formParam returns nil when key is absent from the form.
func formParam(c *gin.Context, key string) *string {
	v, ok := c.GetPostForm(key)
	if !ok {
		return nil
	}
	return &v
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

func (s *server) tooLargeErr() *apierr.Error {
	return apierr.New(http.StatusRequestEntityTooLarge, "too_large",
		fmt.Errorf("file too large (max %d bytes)", s.cfg.Upload.MaxBytes))
}

func analysisID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apierr.Badf("invalid analysis id %q", c.Param("id"))
	}
	return uint(id), nil
}

func (s *server) getAnalysisHandler(c *gin.Context) {
	id, err := analysisID(c)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	rec, err := s.documents.Get(c.Request.Context(), id)
	if err != nil {
		apierr.Write(c, analysisErr(err))
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *server) updateAnalysisHandler(c *gin.Context) {
	id, err := analysisID(c)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	var patch documents.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		apierr.Write(c, apierr.Badf("invalid body: %v", err))
		return
	}
	rec, err := s.documents.Update(c.Request.Context(), id, patch)
	if err != nil {
		apierr.Write(c, analysisErr(err))
		return
	}
	c.JSON(http.StatusOK, rec)
}

func analysisErr(err error) error {
	switch {
	case errors.Is(err, documents.ErrNotFound):
		return apierr.NotFound(err)
	case errors.Is(err, documents.ErrInvalidClassification):
		return apierr.BadRequest(err)
	default:
		return apierr.Internal(err)
	}
}

func (s *server) auditLogsHandler(c *gin.Context) {
	f, err := parseAuditFilter(c)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	page, err := s.audit.Query(c.Request.Context(), f)
	if err != nil {
		apierr.Write(c, apierr.Internal(fmt.Errorf("query audit logs: %w", err)))
		return
	}
	c.JSON(http.StatusOK, page)
}

func parseAuditFilter(c *gin.Context) (audit.Filter, error) {
	f := audit.Filter{
		UserID: strings.TrimSpace(c.Query("user_id")),
		Limit:  audit.DefaultLimit,
	}
	if raw := c.Query("event_type"); raw != "" {
		et, err := audit.ParseEventType(raw)
		if err != nil {
			return f, apierr.BadRequest(err)
		}
		f.Type = et
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > audit.MaxLimit {
			return f, apierr.Badf("limit must be between 1 and %d", audit.MaxLimit)
		}
		f.Limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, apierr.Badf("offset must be >= 0")
		}
		f.Offset = n
	}
	var err error
	if f.Start, err = audit.ParseBound(c.Query("start_date"), false); err != nil {
		return f, apierr.BadRequest(fmt.Errorf("start_date: %w", err))
	}
	if f.End, err = audit.ParseBound(c.Query("end_date"), true); err != nil {
		return f, apierr.BadRequest(fmt.Errorf("end_date: %w", err))
	}
	return f, nil
}

func (s *server) eventTypesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"event_types": audit.Types(), "note": eventTypesNote})
}
