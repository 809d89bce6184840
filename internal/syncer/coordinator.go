// Package syncer coordinates the two-system lifecycle between the
// internal task store and the Label Studio mirror: creating mirrors,
// pulling human corrections back, and cleaning both sides up on
// deletion.
package syncer

import (
	"context"
	"log"

	"transcript-hub/internal/apperr"
	"transcript-hub/internal/blob"
	"transcript-hub/internal/domain"
	"transcript-hub/internal/labelstudio"
)

// platformClient is the annotation-platform subset the coordinator
// drives.
type platformClient interface {
	CreateTask(ctx context.Context, params labelstudio.CreateTaskParams) (labelstudio.Created, error)
	GetAnnotations(ctx context.Context, taskID int64) ([]labelstudio.Annotation, error)
	DeleteTask(ctx context.Context, taskID int64) error
	ReviewURL(taskID int64) string
}

// taskStore is the persistence subset the coordinator needs.
type taskStore interface {
	Get(ctx context.Context, id string) (domain.Task, error)
	SetMirror(ctx context.Context, id string, mirrorID int64, mirrorURL string) error
	ClearMirror(ctx context.Context, id string) error
	SetReviewed(ctx context.Context, id string, segments []domain.Segment) error
	Delete(ctx context.Context, id string) error
}

// Coordinator owns the cross-system task lifecycle.
type Coordinator struct {
	tasks    taskStore
	platform platformClient
	blobs    blob.Store
}

// NewCoordinator wires the coordinator's collaborators.
func NewCoordinator(tasks taskStore, platform platformClient, blobs blob.Store) *Coordinator {
	return &Coordinator{tasks: tasks, platform: platform, blobs: blobs}
}

// Mirror describes a task's annotation-platform counterpart.
type Mirror struct {
	TaskID    int64  `json:"labelStudioTaskId"`
	URL       string `json:"labelStudioUrl"`
	ReviewURL string `json:"reviewUrl"`
	Existing  bool   `json:"existing"`
}

// CreateMirror mirrors a transcribed task into the platform. A task
// that already has a mirror returns it unchanged: re-mirroring would
// duplicate the platform task and orphan the first one's annotations.
func (c *Coordinator) CreateMirror(ctx context.Context, taskID string) (Mirror, error) {
	task, err := c.tasks.Get(ctx, taskID)
	if err != nil {
		return Mirror{}, err
	}

	if task.HasMirror() {
		return Mirror{
			TaskID:    task.LabelStudioTaskID,
			URL:       task.LabelStudioURL,
			ReviewURL: c.platform.ReviewURL(task.LabelStudioTaskID),
			Existing:  true,
		}, nil
	}
	if len(task.Segments) == 0 {
		return Mirror{}, apperr.New(apperr.CodeValidation, "task %s has no segments to mirror", taskID)
	}

	created, err := c.platform.CreateTask(ctx, labelstudio.CreateTaskParams{
		AudioURL: task.AudioURL,
		Segments: task.Segments,
		TaskID:   task.ID,
		Filename: task.Filename,
	})
	if err != nil {
		return Mirror{}, err
	}

	if err := c.tasks.SetMirror(ctx, taskID, created.ID, created.URL); err != nil {
		return Mirror{}, err
	}
	return Mirror{
		TaskID:    created.ID,
		URL:       created.URL,
		ReviewURL: c.platform.ReviewURL(created.ID),
	}, nil
}

// MirrorInfo reports a task's existing mirror. The stored platform URL
// can be absent for links written by older imports; the review URL is
// rebuilt from the project either way and stands in for it.
func (c *Coordinator) MirrorInfo(ctx context.Context, taskID string) (Mirror, error) {
	task, err := c.tasks.Get(ctx, taskID)
	if err != nil {
		return Mirror{}, err
	}
	if !task.HasMirror() {
		return Mirror{}, apperr.New(apperr.CodeNotFound, "task %s has no annotation-platform mirror", taskID)
	}

	reviewURL := c.platform.ReviewURL(task.LabelStudioTaskID)
	url := task.LabelStudioURL
	if url == "" {
		url = reviewURL
	}
	return Mirror{
		TaskID:    task.LabelStudioTaskID,
		URL:       url,
		ReviewURL: reviewURL,
		Existing:  true,
	}, nil
}

// SyncResult reports one annotation pull.
type SyncResult struct {
	Synced       bool `json:"synced"`
	SegmentCount int  `json:"segmentCount"`
}

// SyncAnnotations pulls the latest human review from the platform and
// applies it. No usable annotation is not an error: the reviewer may
// simply not have finished yet.
func (c *Coordinator) SyncAnnotations(ctx context.Context, taskID string) (SyncResult, error) {
	task, err := c.tasks.Get(ctx, taskID)
	if err != nil {
		return SyncResult{}, err
	}
	if !task.HasMirror() {
		return SyncResult{}, apperr.New(apperr.CodeValidation, "task %s has no annotation-platform mirror", taskID)
	}

	annotations, err := c.platform.GetAnnotations(ctx, task.LabelStudioTaskID)
	if err != nil {
		return SyncResult{}, err
	}

	segments := labelstudio.ParseAnnotations(annotations)
	if len(segments) == 0 {
		return SyncResult{Synced: false}, nil
	}

	if err := c.tasks.SetReviewed(ctx, taskID, segments); err != nil {
		return SyncResult{}, err
	}
	return SyncResult{Synced: true, SegmentCount: len(segments)}, nil
}

// DeleteMirror removes the platform counterpart and clears the link.
// An already-absent platform task still clears the link.
func (c *Coordinator) DeleteMirror(ctx context.Context, taskID string) error {
	task, err := c.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if !task.HasMirror() {
		return nil
	}

	if err := c.platform.DeleteTask(ctx, task.LabelStudioTaskID); err != nil {
		return err
	}
	return c.tasks.ClearMirror(ctx, taskID)
}

// DeleteTask removes a task everywhere: platform mirror, audio object,
// peaks artifact, then the record itself. Cleanup steps log and
// continue on failure so one dangling artifact never blocks deletion;
// only the final record delete propagates an error.
func (c *Coordinator) DeleteTask(ctx context.Context, taskID string) error {
	task, err := c.tasks.Get(ctx, taskID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil
		}
		return err
	}

	if task.HasMirror() {
		if err := c.platform.DeleteTask(ctx, task.LabelStudioTaskID); err != nil {
			log.Printf("syncer: platform task %d for %s not deleted: %v", task.LabelStudioTaskID, taskID, err)
		}
	}

	audioKey := task.StoragePath
	if audioKey == "" {
		audioKey = blob.ResolveStorageKey(task.AudioURL)
	}
	if audioKey != "" {
		if err := c.blobs.Delete(ctx, audioKey); err != nil {
			log.Printf("syncer: audio object %s for %s not deleted: %v", audioKey, taskID, err)
		}
	}

	if task.PeaksURL != "" {
		if peaksKey := blob.ResolveStorageKey(task.PeaksURL); peaksKey != "" {
			if err := c.blobs.Delete(ctx, peaksKey); err != nil {
				log.Printf("syncer: peaks object %s for %s not deleted: %v", peaksKey, taskID, err)
			}
		}
	}

	return c.tasks.Delete(ctx, taskID)
}
