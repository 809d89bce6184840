// Package server exposes the HTTP API: task upload and lifecycle,
// transcript export, annotation-platform operations, a websocket watch
// feed, and the static file route backing public object URLs.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"transcript-hub/internal/apperr"
	"transcript-hub/internal/blob"
	"transcript-hub/internal/diagnostics"
	"transcript-hub/internal/domain"
	"transcript-hub/internal/events"
	"transcript-hub/internal/store"
	"transcript-hub/internal/syncer"
)

// maxUploadBytes bounds one audio upload.
const maxUploadBytes = 512 << 20

// Enqueuer schedules background transcription runs.
type Enqueuer interface {
	EnqueueTranscription(ctx context.Context, taskID string) error
}

// Server wires the HTTP routes to the application services.
type Server struct {
	echo     *echo.Echo
	tasks    store.Store
	blobs    blob.Store
	blobRoot string
	coord    *syncer.Coordinator
	jobs     Enqueuer
	bus      *events.Bus
	checker  *diagnostics.Checker
	settings domain.Settings
}

// New assembles the server and registers all routes.
func New(tasks store.Store, blobs blob.Store, blobRoot string, coord *syncer.Coordinator, jobs Enqueuer, bus *events.Bus, checker *diagnostics.Checker, settings domain.Settings) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORS())
	e.HTTPErrorHandler = errorHandler

	s := &Server{
		echo:     e,
		tasks:    tasks,
		blobs:    blobs,
		blobRoot: blobRoot,
		coord:    coord,
		jobs:     jobs,
		bus:      bus,
		checker:  checker,
		settings: settings,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.echo.Group("/api")

	api.POST("/tasks", s.handleUpload)
	api.GET("/tasks", s.handleListTasks)
	api.GET("/tasks/watch", s.handleWatch)
	api.GET("/tasks/:id", s.handleGetTask)
	api.DELETE("/tasks/:id", s.handleDeleteTask)

	api.GET("/export/:id", s.handleExport)
	api.POST("/export/batch", s.handleExportBatch)

	api.POST("/label-studio/create", s.handleCreateMirror)
	api.POST("/label-studio/sync/:id", s.handleSyncAnnotations)
	api.GET("/label-studio/task/:id", s.handleMirrorInfo)
	api.DELETE("/label-studio/task/:id", s.handleDeleteMirror)

	api.GET("/diagnostics", s.handleDiagnostics)

	s.echo.Static("/files", s.blobRoot)
}

// Start blocks serving HTTP on the given address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the route tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// errorHandler maps application error codes onto HTTP statuses with a
// stable JSON error body.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	code := apperr.CodeStorage
	message := err.Error()

	var httpErr *echo.HTTPError
	var appErr *apperr.Error
	switch {
	case errors.As(err, &httpErr):
		status = httpErr.Code
		code = apperr.CodeValidation
		message = fmt.Sprintf("%v", httpErr.Message)
	case errors.As(err, &appErr):
		code = appErr.Code
		message = appErr.Message
		switch appErr.Code {
		case apperr.CodeNotFound:
			status = http.StatusNotFound
		case apperr.CodeValidation:
			status = http.StatusBadRequest
		case apperr.CodeAuth:
			status = http.StatusBadGateway
		case apperr.CodeUpstream:
			status = http.StatusBadGateway
		}
	}

	_ = c.JSON(status, map[string]string{
		"error":   string(code),
		"message": message,
	})
}

// handleUpload accepts a multipart audio upload, stores the object,
// creates the task record, and enqueues transcription.
func (s *Server) handleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperr.New(apperr.CodeValidation, "multipart field 'file' is required")
	}
	if fileHeader.Size > maxUploadBytes {
		return apperr.New(apperr.CodeValidation, "upload exceeds %d bytes", maxUploadBytes)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return apperr.Wrap(apperr.CodeStorage, err, "open upload")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorage, err, "read upload")
	}

	filename := filepath.Base(fileHeader.Filename)
	if filename == "" || filename == "." {
		filename = "audio"
	}

	key := fmt.Sprintf("audio/%s/%s", uuid.NewString(), filename)
	err = s.blobs.Upload(c.Request().Context(), key, data, blob.UploadOptions{
		ContentType: fileHeader.Header.Get("Content-Type"),
	})
	if err != nil {
		return err
	}

	task := domain.Task{
		Filename:    filename,
		AudioURL:    s.blobs.PublicURL(key),
		StoragePath: key,
	}
	if err := s.tasks.Create(c.Request().Context(), &task); err != nil {
		return err
	}

	if err := s.jobs.EnqueueTranscription(c.Request().Context(), task.ID); err != nil {
		// The record exists and can be retried later; surface the
		// broker failure on the task instead of losing the upload.
		_ = s.tasks.MarkError(c.Request().Context(), task.ID, "enqueue failed: "+err.Error())
		return err
	}

	return c.JSON(http.StatusCreated, task)
}

func (s *Server) handleListTasks(c echo.Context) error {
	tasks, err := s.tasks.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleGetTask(c echo.Context) error {
	task, err := s.tasks.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) handleDeleteTask(c echo.Context) error {
	if err := s.coord.DeleteTask(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDiagnostics(c echo.Context) error {
	return c.JSON(http.StatusOK, s.checker.Run(s.settings))
}
