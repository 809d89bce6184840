package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"transcript-hub/internal/apperr"
	"transcript-hub/internal/domain"
	"transcript-hub/internal/export"
)

// renderExport produces the export body for one task. Format validity
// is checked by the handlers before any task is loaded.
func renderExport(task domain.Task, format string) (string, error) {
	if len(task.Segments) == 0 {
		return "", apperr.New(apperr.CodeValidation, "task %s has no segments to export", task.ID)
	}

	switch strings.ToLower(format) {
	case "srt":
		return export.RenderSRT(task.Segments), nil
	case "vtt":
		return export.RenderVTT(task.Segments), nil
	case "txt":
		return export.RenderPlainText(task.Segments, true), nil
	case "json":
		return export.RenderStructured(task)
	default:
		return "", unsupportedFormat(format)
	}
}

func unsupportedFormat(format string) error {
	return apperr.New(apperr.CodeValidation,
		"unsupported format %q, supported formats: %s", format, strings.Join(export.Formats, ", "))
}

// exportFilename picks the download name: the original filename (or
// the task id when it is gone) with the format extension appended
// verbatim, so "clip.mp3" exports as "clip.mp3.srt".
func exportFilename(task domain.Task, format string) string {
	base := task.Filename
	if base == "" {
		base = task.ID
	}
	return base + export.FileExtension(format)
}

// handleExport streams one task's transcript in the requested format
// as a download.
func (s *Server) handleExport(c echo.Context) error {
	format := c.QueryParam("format")
	if !export.IsSupported(format) {
		return unsupportedFormat(format)
	}

	task, err := s.tasks.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	body, err := renderExport(task, format)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", exportFilename(task, format)))
	return c.Blob(http.StatusOK, export.ContentType(format), []byte(body))
}

// batchExportRequest is the body of a batch export call.
type batchExportRequest struct {
	IDs    []string `json:"ids"`
	Format string   `json:"format"`
}

// batchExportItem is one per-task outcome. Content and Error are
// mutually exclusive.
type batchExportItem struct {
	ID       string `json:"id"`
	Filename string `json:"filename,omitempty"`
	Content  string `json:"content,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleExportBatch renders many tasks in one call. A failing task
// yields a per-item error and never aborts the rest.
func (s *Server) handleExportBatch(c echo.Context) error {
	var req batchExportRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.CodeValidation, "invalid batch export body")
	}
	if !export.IsSupported(req.Format) {
		return unsupportedFormat(req.Format)
	}
	if len(req.IDs) == 0 {
		return apperr.New(apperr.CodeValidation, "ids must not be empty")
	}

	items := make([]batchExportItem, 0, len(req.IDs))
	for _, id := range req.IDs {
		item := batchExportItem{ID: id}

		task, err := s.tasks.Get(c.Request().Context(), id)
		if err == nil {
			var body string
			body, err = renderExport(task, req.Format)
			if err == nil {
				item.Filename = exportFilename(task, req.Format)
				item.Content = body
			}
		}
		if err != nil {
			item.Error = err.Error()
		}
		items = append(items, item)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"format":  strings.ToLower(req.Format),
		"results": items,
	})
}
