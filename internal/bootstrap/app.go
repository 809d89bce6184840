// Package bootstrap wires the service: settings, storage, broker,
// pipeline, annotation-platform client, and HTTP surface.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"transcript-hub/internal/blob"
	"transcript-hub/internal/config"
	"transcript-hub/internal/diagnostics"
	"transcript-hub/internal/domain"
	"transcript-hub/internal/events"
	"transcript-hub/internal/labelstudio"
	"transcript-hub/internal/media"
	"transcript-hub/internal/queue"
	"transcript-hub/internal/server"
	"transcript-hub/internal/store"
	"transcript-hub/internal/stt"
	"transcript-hub/internal/syncer"
	"transcript-hub/internal/transcribe"
	"transcript-hub/internal/waveform"
)

// App holds the wired service ready to run.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Diagnostics domain.DiagnosticReport

	tasks     *store.SQLStore
	server    *server.Server
	processor *queue.Processor
	enqueuer  *queue.Enqueuer
}

// New builds the application from persisted settings plus environment
// overrides, and runs startup diagnostics.
func New() (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	cfgStore := config.NewJSONStore(filepath.Join(homeDir, ".transcript-hub", "settings.json"))
	settings, err := cfgStore.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	checker := diagnostics.NewChecker()
	report := checker.Run(settings)
	for _, item := range report.Items {
		if item.Status == domain.DiagnosticStatusFail {
			log.Printf("bootstrap: diagnostic %s failed: %s", item.ID, item.Message)
		}
	}

	bus := events.NewBus(1000)

	if err := os.MkdirAll(settings.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	tasks, err := store.Open(fmt.Sprintf("file:%s", filepath.Join(settings.DataDir, "tasks.db")), bus)
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}

	blobs, err := blob.NewLocalStore(filepath.Join(settings.DataDir, "objects"), settings.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	transcriber := stt.NewClient(settings.SpeechToText.URL, settings.SpeechToText.APIKey, settings.SpeechToText.Model)
	peaks := waveform.NewGenerator(settings.PeakSamples)
	prober := media.NewProber()
	pipeline := transcribe.NewPipeline(tasks, blobs, transcriber, peaks, prober, "")

	platform := labelstudio.NewClient(labelstudio.Config{
		BaseURL:      settings.LabelStudio.URL,
		RefreshToken: settings.LabelStudio.RefreshToken,
		ProjectID:    settings.LabelStudio.ProjectID,
		PageSize:     settings.LabelStudio.PageSize,
	})
	coord := syncer.NewCoordinator(tasks, platform, blobs)

	enqueuer := queue.NewEnqueuer(settings.RedisAddr)
	processor := queue.NewProcessor(settings.RedisAddr, settings.WorkerConcurrency, pipeline)

	srv := server.New(tasks, blobs, blobs.Root(), coord, enqueuer, bus, checker, settings)

	return &App{
		Settings:    settings,
		Store:       cfgStore,
		Diagnostics: report,
		tasks:       tasks,
		server:      srv,
		processor:   processor,
		enqueuer:    enqueuer,
	}, nil
}

// Run starts the worker pool and serves HTTP until interrupted.
func (a *App) Run() error {
	if err := a.processor.Start(); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		log.Print("bootstrap: shutting down")
		a.Shutdown()
	}()

	log.Printf("bootstrap: serving on %s", a.Settings.HTTPAddr)
	err := a.server.Start(a.Settings.HTTPAddr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains the worker pool and closes connections. The HTTP
// shutdown unblocks Run.
func (a *App) Shutdown() {
	a.processor.Shutdown()
	if err := a.enqueuer.Close(); err != nil {
		log.Printf("bootstrap: close enqueuer: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		log.Printf("bootstrap: shutdown http server: %v", err)
	}

	if err := a.tasks.Close(); err != nil {
		log.Printf("bootstrap: close task store: %v", err)
	}
}
