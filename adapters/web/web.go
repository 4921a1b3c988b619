package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Go-routine-4595/equipment-dash/model"
	"github.com/Go-routine-4595/equipment-dash/service"
)

const shutdownTimeout = 5 * time.Second

type WebConfig struct {
	Addr      string `yaml:"Addr"`
	BodyLimit string `yaml:"BodyLimit"`
}

type Dashboard interface {
	Refresh(ctx context.Context, trigger string) (model.View, error)
	SetFilter(filter string) (model.View, error)
	View() model.View
}

type Uploads interface {
	Stage(file model.StagedFile) error
	Submit(ctx context.Context) error
	Status() service.UploadStatus
}

// Server is the HTTP presentation shell: it serves the derived view model and
// forwards filter, refresh and upload actions to the engine.
type Server struct {
	echo      *echo.Echo
	addr      string
	dashboard Dashboard
	uploads   Uploads
	logger    zerolog.Logger
}

type filterRequest struct {
	Type string `json:"type"`
}

type uploadResponse struct {
	Upload service.UploadStatus `json:"upload"`
	View   model.View           `json:"view"`
}

func NewServer(conf WebConfig, d Dashboard, u Uploads, logger zerolog.Logger) *Server {
	s := &Server{
		echo:      echo.New(),
		addr:      conf.Addr,
		dashboard: d,
		uploads:   u,
		logger:    logger,
	}
	if s.addr == "" {
		s.addr = ":8080"
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = ErrorHandler
	s.echo.Use(middleware.Recover())
	if conf.BodyLimit != "" {
		s.echo.Use(middleware.BodyLimit(conf.BodyLimit))
	}
	s.echo.Use(s.requestLogger)

	api := s.echo.Group("/api")
	api.GET("/view", s.HandleView)
	api.POST("/filter", s.HandleFilter)
	api.POST("/refresh", s.HandleRefresh)
	api.GET("/upload", s.HandleUploadStatus)
	api.POST("/upload/stage", s.HandleStage)
	api.POST("/upload", s.HandleUpload)

	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.logger.Info().Str("addr", s.addr).Msg("web shell listening")
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("web shell stopped")
		}
	}()
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("web shell shutdown")
		}
	}()
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if c.Path() != "/metrics" {
			s.logger.Debug().Str("method", c.Request().Method).Str("path", c.Path()).
				Int("status", c.Response().Status).Dur("elapsed", time.Since(start)).Msg("request")
		}
		return err
	}
}

func (s *Server) HandleView(c echo.Context) error {
	return c.JSON(http.StatusOK, s.dashboard.View())
}

func (s *Server) HandleFilter(c echo.Context) error {
	var req filterRequest

	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("BAD_REQUEST", "invalid JSON body", err)
	}
	if req.Type == "" {
		return NewValidationError("type")
	}
	v, err := s.dashboard.SetFilter(req.Type)
	if errors.Is(err, service.ErrUnknownFilter) {
		return NewValidationError("type")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

// cycleContext keeps the request values but not its cancellation. Fetch cycles
// and uploads are shared by every viewer and outlive the caller.
func cycleContext(c echo.Context) context.Context {
	return context.WithoutCancel(c.Request().Context())
}

func (s *Server) HandleRefresh(c echo.Context) error {
	v, err := s.dashboard.Refresh(cycleContext(c), service.TriggerManual)
	if err != nil && !errors.Is(err, service.ErrCycleDiscarded) {
		return NewBadGatewayError("FETCH_FAILED", v.Error)
	}
	return c.JSON(http.StatusOK, s.dashboard.View())
}

func (s *Server) HandleUploadStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.uploads.Status())
}

// HandleStage stages the multipart "file" without submitting it.
func (s *Server) HandleStage(c echo.Context) error {
	file, err := readFormFile(c)
	if err != nil {
		return err
	}
	if file == nil {
		return NewValidationError("file")
	}
	if err = s.stage(*file); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.uploads.Status())
}

// HandleUpload submits the staged file. A "file" part in the request is staged
// first, replacing any earlier selection.
func (s *Server) HandleUpload(c echo.Context) error {
	file, err := readFormFile(c)
	if err != nil {
		return err
	}
	if file != nil {
		if err = s.stage(*file); err != nil {
			return err
		}
	}

	err = s.uploads.Submit(cycleContext(c))
	switch {
	case errors.Is(err, service.ErrNoFileStaged):
		return NewBadRequestError("NO_FILE_STAGED", s.uploads.Status().Message, nil)
	case errors.Is(err, service.ErrUploadInProgress):
		return NewConflictError("an upload is already in progress")
	case err != nil:
		return NewBadGatewayError("UPLOAD_FAILED", s.uploads.Status().Message)
	}

	return c.JSON(http.StatusOK, uploadResponse{
		Upload: s.uploads.Status(),
		View:   s.dashboard.View(),
	})
}

func (s *Server) stage(file model.StagedFile) error {
	err := s.uploads.Stage(file)
	if errors.Is(err, service.ErrUploadInProgress) {
		return NewConflictError("an upload is already in progress")
	}
	return err
}

// readFormFile returns nil when the request carries no "file" part.
func readFormFile(c echo.Context) (*model.StagedFile, error) {
	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, NewBadRequestError("BAD_REQUEST", "invalid multipart body", err)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, NewBadRequestError("BAD_REQUEST", "cannot open uploaded file", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, NewBadRequestError("BAD_REQUEST", "cannot read uploaded file", err)
	}
	return &model.StagedFile{Name: fh.Filename, Data: data}, nil
}
