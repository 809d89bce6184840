package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"transcript-hub/internal/apperr"
	"transcript-hub/internal/domain"
	"transcript-hub/internal/events"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tasks (
	id            TEXT PRIMARY KEY,
	filename      TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	audio_url     TEXT NOT NULL DEFAULT '',
	storage_path  TEXT NOT NULL DEFAULT '',
	duration      REAL,
	segments_json TEXT NOT NULL DEFAULT '[]',
	peaks_url     TEXT NOT NULL DEFAULT '',
	ls_task_id    INTEGER NOT NULL DEFAULT 0,
	ls_task_url   TEXT NOT NULL DEFAULT '',
	error_msg     TEXT NOT NULL DEFAULT '',
	stt_raw       TEXT,
	metadata_json TEXT NOT NULL DEFAULT '{}',
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL,
	reviewed_at   TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at DESC);
`

// SQLStore is the sqlite-backed task store. It publishes change
// events to an optional bus for the real-time watch endpoint.
type SQLStore struct {
	db  *sql.DB
	bus *events.Bus
}

// Open opens (or creates) the sqlite database at dsn and applies the
// schema.
func Open(dsn string, bus *events.Bus) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLStore{db: db, bus: bus}, nil
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// publish emits a change event when a bus is attached.
func (s *SQLStore) publish(eventType events.Type, id string, status domain.TaskStatus) {
	if s.bus != nil {
		s.bus.Publish(events.Event{Type: eventType, TaskID: id, Status: status})
	}
}

// Create inserts a new task, assigning id, timestamps, and the queued
// status when absent.
func (s *SQLStore) Create(ctx context.Context, task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusQueued
	}
	now := nowUTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	segments, err := marshalSegments(task.Segments)
	if err != nil {
		return err
	}
	metadata := task.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorage, err, "encode metadata")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, filename, status, audio_url, storage_path, duration,
			segments_json, peaks_url, ls_task_id, ls_task_url, error_msg, stt_raw,
			metadata_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Filename, string(task.Status), task.AudioURL, task.StoragePath,
		nullFloat(task.Duration), string(segments), task.PeaksURL,
		task.LabelStudioTaskID, task.LabelStudioURL, task.Error,
		nullString(string(task.STTRaw)), string(metadataJSON), now, now,
	)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorage, err, "insert task")
	}

	s.publish(events.TypeTaskCreated, task.ID, task.Status)
	return nil
}

// Get returns one task by id.
func (s *SQLStore) Get(ctx context.Context, id string) (domain.Task, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, apperr.New(apperr.CodeNotFound, "task %s not found", id)
	}
	if err != nil {
		return domain.Task{}, apperr.Wrap(apperr.CodeStorage, err, "read task %s", id)
	}
	return task, nil
}

// List returns all tasks ordered by creation time descending.
func (s *SQLStore) List(ctx context.Context) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` FROM tasks ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, err, "list tasks")
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeStorage, err, "scan task")
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, err, "iterate tasks")
	}
	return tasks, nil
}

// Claim atomically flips a queued task to transcribing. The first
// caller wins; later callers see false and must no-op.
func (s *SQLStore) Claim(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(domain.TaskStatusTranscribing), nowUTC(), id, string(domain.TaskStatusQueued),
	)
	if err != nil {
		return false, apperr.Wrap(apperr.CodeStorage, err, "claim task %s", id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(apperr.CodeStorage, err, "claim task %s", id)
	}
	if affected == 0 {
		return false, nil
	}

	s.publish(events.TypeTaskUpdated, id, domain.TaskStatusTranscribing)
	return true, nil
}

// MarkTranscribed persists the pipeline result in a single write,
// guarded on the transcribing status.
func (s *SQLStore) MarkTranscribed(ctx context.Context, id string, result TranscriptionResult) error {
	segments, err := marshalSegments(result.Segments)
	if err != nil {
		return err
	}

	return s.transition(ctx, id, domain.TaskStatusTranscribed, `
		UPDATE tasks SET status = ?, duration = ?, segments_json = ?, peaks_url = ?,
			stt_raw = ?, error_msg = '', updated_at = ?
		WHERE id = ? AND status = ?`,
		string(domain.TaskStatusTranscribed), nullFloat(result.Duration), string(segments),
		result.PeaksURL, nullString(string(result.STTRaw)), nowUTC(),
		id, string(domain.TaskStatusTranscribing),
	)
}

// MarkError records a terminal failure. Reachable from any
// non-terminal status.
func (s *SQLStore) MarkError(ctx context.Context, id, message string) error {
	return s.transition(ctx, id, domain.TaskStatusError, `
		UPDATE tasks SET status = ?, error_msg = ?, updated_at = ?
		WHERE id = ? AND status != ?`,
		string(domain.TaskStatusError), message, nowUTC(),
		id, string(domain.TaskStatusError),
	)
}

// SetReviewed replaces segments with human-corrected ones and moves
// the task to reviewed. Allowed from transcribed and, for repeated
// syncs, from reviewed.
func (s *SQLStore) SetReviewed(ctx context.Context, id string, segments []domain.Segment) error {
	encoded, err := marshalSegments(segments)
	if err != nil {
		return err
	}

	now := nowUTC()
	return s.transition(ctx, id, domain.TaskStatusReviewed, `
		UPDATE tasks SET status = ?, segments_json = ?, reviewed_at = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		string(domain.TaskStatusReviewed), string(encoded), now, now,
		id, string(domain.TaskStatusTranscribed), string(domain.TaskStatusReviewed),
	)
}

// SetMirror records the annotation platform task identity.
func (s *SQLStore) SetMirror(ctx context.Context, id string, mirrorID int64, mirrorURL string) error {
	return s.update(ctx, id, `
		UPDATE tasks SET ls_task_id = ?, ls_task_url = ?, updated_at = ?
		WHERE id = ?`,
		mirrorID, mirrorURL, nowUTC(), id,
	)
}

// ClearMirror removes the annotation platform identity so no dangling
// reference survives a deletion.
func (s *SQLStore) ClearMirror(ctx context.Context, id string) error {
	return s.update(ctx, id, `
		UPDATE tasks SET ls_task_id = 0, ls_task_url = '', updated_at = ?
		WHERE id = ?`,
		nowUTC(), id,
	)
}

// Delete removes the task record. Deleting an absent task succeeds.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorage, err, "delete task %s", id)
	}
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		s.publish(events.TypeTaskDeleted, id, "")
	}
	return nil
}

// transition validates the status edge against the current row before
// applying a guarded UPDATE, then publishes the change.
func (s *SQLStore) transition(ctx context.Context, id string, to domain.TaskStatus, query string, args ...any) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !domain.CanTransition(current.Status, to) {
		return apperr.New(apperr.CodeValidation, "invalid transition %s -> %s for task %s", current.Status, to, id)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorage, err, "update task %s", id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.CodeStorage, err, "update task %s", id)
	}
	if affected == 0 {
		// Lost a race: the row moved out of the guarded source status
		// between the read and the write.
		return apperr.New(apperr.CodeValidation, "task %s no longer in a state allowing %s", id, to)
	}

	s.publish(events.TypeTaskUpdated, id, to)
	return nil
}

// update applies a non-status UPDATE that must match exactly one row.
func (s *SQLStore) update(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorage, err, "update task %s", id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.CodeStorage, err, "update task %s", id)
	}
	if affected == 0 {
		return apperr.New(apperr.CodeNotFound, "task %s not found", id)
	}

	s.publish(events.TypeTaskUpdated, id, "")
	return nil
}

const selectColumns = `
	SELECT id, filename, status, audio_url, storage_path, duration, segments_json,
		peaks_url, ls_task_id, ls_task_url, error_msg, stt_raw, metadata_json,
		created_at, updated_at, reviewed_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask decodes one task row.
func scanTask(row rowScanner) (domain.Task, error) {
	var (
		task         domain.Task
		status       string
		duration     sql.NullFloat64
		segmentsJSON string
		sttRaw       sql.NullString
		metadataJSON string
		reviewedAt   sql.NullTime
	)
	err := row.Scan(
		&task.ID, &task.Filename, &status, &task.AudioURL, &task.StoragePath,
		&duration, &segmentsJSON, &task.PeaksURL, &task.LabelStudioTaskID,
		&task.LabelStudioURL, &task.Error, &sttRaw, &metadataJSON,
		&task.CreatedAt, &task.UpdatedAt, &reviewedAt,
	)
	if err != nil {
		return domain.Task{}, err
	}

	task.Status = domain.TaskStatus(status)
	if duration.Valid {
		d := duration.Float64
		task.Duration = &d
	}
	if err := json.Unmarshal([]byte(segmentsJSON), &task.Segments); err != nil {
		return domain.Task{}, fmt.Errorf("decode segments: %w", err)
	}
	if sttRaw.Valid && sttRaw.String != "" {
		task.STTRaw = json.RawMessage(sttRaw.String)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &task.Metadata); err != nil {
		return domain.Task{}, fmt.Errorf("decode metadata: %w", err)
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		task.ReviewedAt = &t
	}
	return task, nil
}

// marshalSegments encodes segments preserving array order.
func marshalSegments(segments []domain.Segment) ([]byte, error) {
	if segments == nil {
		segments = []domain.Segment{}
	}
	data, err := json.Marshal(segments)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, err, "encode segments")
	}
	return data, nil
}

// nullFloat converts an optional float for sql parameters.
func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// nullString converts an empty string to NULL.
func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

var _ Store = (*SQLStore)(nil)
