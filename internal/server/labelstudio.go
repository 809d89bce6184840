package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"transcript-hub/internal/apperr"
)

// createMirrorRequest identifies the task to mirror.
type createMirrorRequest struct {
	TaskID string `json:"taskId"`
}

// handleCreateMirror mirrors a transcribed task into the annotation
// platform. Mirroring an already-mirrored task returns the existing
// link with 200 instead of 201.
func (s *Server) handleCreateMirror(c echo.Context) error {
	var req createMirrorRequest
	if err := c.Bind(&req); err != nil || req.TaskID == "" {
		return apperr.New(apperr.CodeValidation, "taskId is required")
	}

	mirror, err := s.coord.CreateMirror(c.Request().Context(), req.TaskID)
	if err != nil {
		return err
	}

	status := http.StatusCreated
	if mirror.Existing {
		status = http.StatusOK
	}
	return c.JSON(status, mirror)
}

// handleSyncAnnotations pulls the latest human review back into the
// task.
func (s *Server) handleSyncAnnotations(c echo.Context) error {
	result, err := s.coord.SyncAnnotations(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// handleMirrorInfo reports a task's annotation-platform link.
func (s *Server) handleMirrorInfo(c echo.Context) error {
	mirror, err := s.coord.MirrorInfo(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mirror)
}

// handleDeleteMirror removes the platform counterpart and clears the
// link, keeping the internal task.
func (s *Server) handleDeleteMirror(c echo.Context) error {
	if err := s.coord.DeleteMirror(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
