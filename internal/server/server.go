// Package server exposes the engine over HTTP for the review UI.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pekarna-dev/invoice-engine/internal/common"
	"github.com/pekarna-dev/invoice-engine/internal/ocr"
	"github.com/pekarna-dev/invoice-engine/internal/pipeline"
	"github.com/pekarna-dev/invoice-engine/internal/repository"
	"github.com/pekarna-dev/invoice-engine/internal/template"
)

type Server struct {
	engine    *gin.Engine
	processor *pipeline.Processor
	templates *template.Store
	invoices  *repository.InvoiceRepository
	ocr       *ocr.Client
	logger    *slog.Logger
}

func New(processor *pipeline.Processor, templates *template.Store, invoices *repository.InvoiceRepository, ocrClient *ocr.Client, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine:    gin.New(),
		processor: processor,
		templates: templates,
		invoices:  invoices,
		ocr:       ocrClient,
		logger:    logger,
	}
	s.engine.Use(gin.Recovery(), s.requestLog())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api/v1")
	{
		api.POST("/invoices/process", s.processInvoice)
		api.POST("/invoices/process-text", s.processInvoiceText)
		api.POST("/invoices/approve", s.approveInvoice)
		api.GET("/invoices/:id", s.getInvoice)

		api.GET("/templates/:supplierID", s.listTemplates)
		api.GET("/templates/:supplierID/active", s.getActiveTemplate)
		api.POST("/templates/:supplierID/train", s.trainTemplate)
		api.POST("/templates/:supplierID", s.saveTemplate)
		api.POST("/templates/:supplierID/activate/:templateID", s.activateTemplate)
	}
}

// Handler exposes the router, used by tests and embedding callers.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.start", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("server.stop")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http.request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}

// fail maps application errors to HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := common.CodeInternal

	var appErr *common.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		switch appErr.Code {
		case common.CodeInvalidInput:
			status = http.StatusBadRequest
		case common.CodeNotFound:
			status = http.StatusNotFound
		case common.CodeDuplicate:
			status = http.StatusConflict
		case common.CodeOCR:
			status = http.StatusBadGateway
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("http.error", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"code": code, "error": err.Error()})
}
