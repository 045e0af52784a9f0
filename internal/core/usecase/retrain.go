package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/tylerursuy/ARMR/internal/core/domain"
	"github.com/tylerursuy/ARMR/internal/core/ports"
)

// TrainingConfig controls the retraining loop. The batch schedule compounds
// from BatchFloor toward BatchCeil by BatchGrowth per batch.
type TrainingConfig struct {
	Epochs      int
	Dropout     float64
	BatchFloor  float64
	BatchCeil   float64
	BatchGrowth float64
}

func (c TrainingConfig) normalize() TrainingConfig {
	out := c
	if out.Epochs <= 0 {
		out.Epochs = 100
	}
	if out.Dropout <= 0 || out.Dropout >= 1 {
		out.Dropout = 0.2
	}
	if out.BatchFloor <= 0 {
		out.BatchFloor = 4
	}
	if out.BatchCeil < out.BatchFloor {
		out.BatchCeil = 32
	}
	if out.BatchGrowth <= 1 {
		out.BatchGrowth = 1.001
	}
	return out
}

// RetrainingOrchestrator runs the closed loop: build examples from the
// annotation window, drive the training epochs and hand the trained weights
// to the version manager. The whole run is serialized behind the registry's
// retrain lock so two runs never race on the same version number.
type RetrainingOrchestrator struct {
	builder  *TrainingSetBuilder
	trainer  ports.ModelTrainer
	registry ports.VersionRegistry
	versions *ModelVersionManager
	cfg      TrainingConfig
	rng      *rand.Rand
	logger   *slog.Logger
}

func NewRetrainingOrchestrator(
	builder *TrainingSetBuilder,
	trainer ports.ModelTrainer,
	registry ports.VersionRegistry,
	versions *ModelVersionManager,
	cfg TrainingConfig,
	seed int64,
	logger *slog.Logger,
) *RetrainingOrchestrator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrainingOrchestrator{
		builder:  builder,
		trainer:  trainer,
		registry: registry,
		versions: versions,
		cfg:      cfg.normalize(),
		rng:      rand.New(rand.NewSource(seed)),
		logger:   logger,
	}
}

// Run executes one retraining cycle. Any failure aborts the run without
// touching the active artifact.
func (o *RetrainingOrchestrator) Run(ctx context.Context) (*domain.TrainingReport, error) {
	release, err := o.registry.AcquireRetrainLock(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrVersionManager, "acquire retrain lock", err)
	}
	defer release()

	examples, err := o.builder.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build training set: %w", err)
	}

	report := &domain.TrainingReport{
		Examples: len(examples),
		Epochs:   o.cfg.Epochs,
	}
	for epoch := 0; epoch < o.cfg.Epochs; epoch++ {
		loss, err := o.runEpoch(ctx, examples)
		if err != nil {
			return nil, fmt.Errorf("epoch %d: %w", epoch+1, err)
		}
		report.EpochLosses = append(report.EpochLosses, loss)
		o.logger.Info("epoch_complete", "epoch", epoch+1, "epochs", o.cfg.Epochs, "loss", loss, "examples", len(examples))
	}

	weights, err := o.trainer.Export(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrVersionManager, "export weights", err)
	}
	defer weights.Close()

	version, err := o.versions.PublishNewVersion(ctx, weights)
	if err != nil {
		return nil, err
	}
	report.Version = version.Version
	return report, nil
}

// runEpoch reshuffles the examples and feeds them through the compounding
// batch schedule. Zero examples is a no-op epoch, not an error.
func (o *RetrainingOrchestrator) runEpoch(ctx context.Context, examples []domain.TrainingExample) (float64, error) {
	o.rng.Shuffle(len(examples), func(i, j int) {
		examples[i], examples[j] = examples[j], examples[i]
	})

	var epochLoss float64
	size := o.cfg.BatchFloor
	for offset := 0; offset < len(examples); {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n := int(size)
		if offset+n > len(examples) {
			n = len(examples) - offset
		}
		batch := examples[offset : offset+n]
		offset += n

		loss, err := o.trainer.Update(ctx, batch, o.cfg.Dropout)
		if err != nil {
			return 0, fmt.Errorf("train batch: %w", err)
		}
		epochLoss += loss

		size *= o.cfg.BatchGrowth
		if size > o.cfg.BatchCeil {
			size = o.cfg.BatchCeil
		}
	}
	return epochLoss, nil
}

// ModelVersionManager performs versioned artifact replacement: write the new
// version directory, flip the registry pointer, then and only then remove the
// previous directory, package and push the artifact, and signal running
// services to reload. There is never a moment with zero valid artifact
// directories on disk.
type ModelVersionManager struct {
	registry  ports.VersionRegistry
	artifacts ports.ModelArtifactWriter
	remote    ports.ArtifactStore
	signal    ports.ReloadSignaler
	logger    *slog.Logger
	now       func() time.Time
}

func NewModelVersionManager(
	registry ports.VersionRegistry,
	artifacts ports.ModelArtifactWriter,
	remote ports.ArtifactStore,
	signal ports.ReloadSignaler,
	logger *slog.Logger,
) *ModelVersionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelVersionManager{
		registry:  registry,
		artifacts: artifacts,
		remote:    remote,
		signal:    signal,
		logger:    logger,
		now:       time.Now,
	}
}

func (m *ModelVersionManager) PublishNewVersion(ctx context.Context, weights io.Reader) (*domain.ModelVersion, error) {
	current, err := m.registry.Active(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrVersionManager, "read active version", err)
	}
	base := domain.InitialModelVersion
	if current != nil {
		base = current.Version
	}
	next, err := domain.BumpPatch(base)
	if err != nil {
		return nil, domain.WrapError(domain.ErrVersionManager, "bump version", err)
	}

	path, err := m.artifacts.WriteVersion(ctx, next, weights)
	if err != nil {
		return nil, domain.WrapError(domain.ErrVersionManager, "write artifact", err)
	}

	version := domain.ModelVersion{
		Version:   next,
		Path:      path,
		Active:    true,
		CreatedAt: m.now().UTC(),
	}
	if err := m.registry.Activate(ctx, version); err != nil {
		// Roll the fresh directory back; the previous version is intact.
		if rmErr := m.artifacts.RemoveVersion(ctx, next); rmErr != nil {
			m.logger.Error("orphan_artifact", "version", next, "error", rmErr)
		}
		return nil, domain.WrapError(domain.ErrVersionManager, "activate version", err)
	}

	if current != nil {
		if err := m.artifacts.RemoveVersion(ctx, current.Version); err != nil {
			m.logger.Warn("stale_artifact_removal_failed", "version", current.Version, "error", err)
		}
	}

	archive, err := m.artifacts.Package(ctx, next)
	if err != nil {
		return nil, domain.WrapError(domain.ErrVersionManager, "package artifact", err)
	}
	ref, err := m.remote.Push(ctx, archive)
	if err != nil {
		return nil, domain.WrapError(domain.ErrVersionManager, "push artifact", err)
	}
	if err := m.registry.SetRemoteRef(ctx, next, ref); err != nil {
		m.logger.Warn("remote_ref_record_failed", "version", next, "error", err)
	}
	version.RemoteRef = ref

	if err := m.signal.PublishModelReloaded(ctx, next); err != nil {
		m.logger.Warn("reload_signal_failed", "version", next, "error", err)
	}
	m.logger.Info("model_version_published", "version", next, "remote_ref", ref)
	return &version, nil
}
