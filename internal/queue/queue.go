// Package queue moves transcription work off the HTTP request path.
// Uploads enqueue one job per task; worker processes pick jobs up and
// drive the pipeline. Retries are disabled because the claim mechanism
// already makes duplicate deliveries harmless but a retried hard
// failure would just fail again against an error-status task.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TypeTranscribe is the task type routed to the transcription handler.
const TypeTranscribe = "task:transcribe"

// transcribeTimeout bounds one pipeline run, sized above the
// speech-to-text client's own 8-minute timeout.
const transcribeTimeout = 9 * time.Minute

// TranscribePayload is the job body: just the task identity, the rest
// is loaded fresh from the store at processing time.
type TranscribePayload struct {
	TaskID string `json:"taskId"`
}

// Enqueuer submits transcription jobs.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer connects a job submitter to the broker.
func NewEnqueuer(redisAddr string) *Enqueuer {
	return &Enqueuer{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
	}
}

// EnqueueTranscription schedules one pipeline run for the task.
func (e *Enqueuer) EnqueueTranscription(ctx context.Context, taskID string) error {
	payload, err := json.Marshal(TranscribePayload{TaskID: taskID})
	if err != nil {
		return fmt.Errorf("encode transcription payload: %w", err)
	}

	task := asynq.NewTask(TypeTranscribe, payload)
	_, err = e.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(0),
		asynq.Timeout(transcribeTimeout),
	)
	if err != nil {
		return fmt.Errorf("enqueue transcription for %s: %w", taskID, err)
	}
	return nil
}

// Close releases the broker connection.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// Runner is the pipeline entry point the processor drives.
type Runner interface {
	Run(ctx context.Context, taskID string) error
}

// Processor consumes transcription jobs and feeds them to the runner.
type Processor struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewProcessor builds a worker-pool processor with the given
// concurrency.
func NewProcessor(redisAddr string, concurrency int, runner Runner) *Processor {
	if concurrency <= 0 {
		concurrency = 1
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{Concurrency: concurrency},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeTranscribe, func(ctx context.Context, task *asynq.Task) error {
		var payload TranscribePayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("decode transcription payload: %w", err)
		}
		return runner.Run(ctx, payload.TaskID)
	})

	return &Processor{server: server, mux: mux}
}

// Start launches the worker pool in the background.
func (p *Processor) Start() error {
	return p.server.Start(p.mux)
}

// Shutdown drains in-flight jobs and stops the pool.
func (p *Processor) Shutdown() {
	p.server.Shutdown()
}
