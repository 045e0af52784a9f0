package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tylerursuy/ARMR/internal/config"
	"github.com/tylerursuy/ARMR/internal/core/ports"
	"github.com/tylerursuy/ARMR/internal/core/usecase"
	"github.com/tylerursuy/ARMR/internal/infrastructure/artifactstore/httpstore"
	"github.com/tylerursuy/ARMR/internal/infrastructure/modelstore"
	"github.com/tylerursuy/ARMR/internal/infrastructure/queue/nats"
	"github.com/tylerursuy/ARMR/internal/infrastructure/recognizer/nerserve"
	"github.com/tylerursuy/ARMR/internal/infrastructure/repository/postgres"
	"github.com/tylerursuy/ARMR/internal/infrastructure/resilience"
	"github.com/tylerursuy/ARMR/internal/infrastructure/storage/localfs"
	"github.com/tylerursuy/ARMR/internal/infrastructure/transcriber/googlespeech"
	"github.com/tylerursuy/ARMR/internal/observability/logging"
	"github.com/tylerursuy/ARMR/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue      ports.QueueRepository
	Signal     *nats.Signal
	Recognizer *nerserve.Client

	UploadUC  *usecase.UploadTranscriptUseCase
	ReviewUC  *usecase.ReconciliationEngine
	QueryUC   *usecase.TranscriptQueryService
	Worker    *usecase.IngestQueueWorker
	Retrainer *usecase.RetrainingOrchestrator

	HTTPMetrics    *metrics.HTTPServerMetrics
	WorkerMetrics  *metrics.TranscriptMetrics
	RetrainMetrics *metrics.RetrainMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queueRepo := postgres.NewQueueRepository(db)
	annotationRepo := postgres.NewAnnotationRepository(db)
	historyRepo := postgres.NewHistoryRepository(db)
	versionRepo := postgres.NewVersionRepository(db)

	audio, err := localfs.New(cfg.AudioStoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init audio storage: %w", err)
	}
	models, err := modelstore.New(cfg.ModelRoot)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init model store: %w", err)
	}

	resilienceCfg := resilience.DefaultConfig()
	resilienceCfg.Logger = logger
	executor := resilience.NewExecutor(resilienceCfg)

	signal, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSReloadSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init reload signal: %w", err)
	}

	transcriber := googlespeech.New(cfg.TranscriberURL, executor)
	recognizer := nerserve.New(cfg.RecognizerURL, executor)
	segmenter := usecase.NewSectionSegmenter(nil)
	extractor := usecase.NewEntityExtractor(recognizer)

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	workerMetrics := metrics.NewTranscriptMetrics(service)
	retrainMetrics := metrics.NewRetrainMetrics(service)

	uploadUC := usecase.NewUploadTranscriptUseCase(queueRepo, audio)
	reviewUC := usecase.NewReconciliationEngine(queueRepo, annotationRepo)
	queryUC := usecase.NewTranscriptQueryService(queueRepo, historyRepo)
	worker := usecase.NewIngestQueueWorker(
		queueRepo, audio, transcriber, segmenter, extractor,
		cfg.WorkerItemTimeout, workerMetrics, logger,
	)

	builder := usecase.NewTrainingSetBuilder(annotationRepo, time.Duration(cfg.RetrainWindowDays)*24*time.Hour)
	remote := httpstore.New(cfg.ArtifactStoreURL, executor)
	versions := usecase.NewModelVersionManager(versionRepo, models, remote, signal, logger)
	retrainer := usecase.NewRetrainingOrchestrator(
		builder, recognizer, versionRepo, versions,
		usecase.TrainingConfig{Epochs: cfg.RetrainEpochs, Dropout: cfg.RetrainDropout},
		0, logger,
	)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:      queueRepo,
		Signal:     signal,
		Recognizer: recognizer,

		UploadUC:  uploadUC,
		ReviewUC:  reviewUC,
		QueryUC:   queryUC,
		Worker:    worker,
		Retrainer: retrainer,

		HTTPMetrics:    httpMetrics,
		WorkerMetrics:  workerMetrics,
		RetrainMetrics: retrainMetrics,

		closeFn: func() {
			signal.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
