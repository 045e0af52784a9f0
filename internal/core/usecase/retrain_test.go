package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/tylerursuy/ARMR/internal/core/domain"
)

type trainerFake struct {
	batches   [][]domain.TrainingExample
	dropouts  []float64
	updateErr error
	exportErr error
	loss      float64
}

func (f *trainerFake) Update(_ context.Context, batch []domain.TrainingExample, dropout float64) (float64, error) {
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	copied := make([]domain.TrainingExample, len(batch))
	copy(copied, batch)
	f.batches = append(f.batches, copied)
	f.dropouts = append(f.dropouts, dropout)
	return f.loss, nil
}

func (f *trainerFake) Export(context.Context) (io.ReadCloser, error) {
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	return io.NopCloser(strings.NewReader("weights")), nil
}

type registryFake struct {
	active     *domain.ModelVersion
	activated  []domain.ModelVersion
	remoteRefs map[string]string
	lockCount  int
	unlocks    int
	lockErr    error
	activeErr  error
	actErr     error
}

func newRegistryFake() *registryFake {
	return &registryFake{remoteRefs: make(map[string]string)}
}

func (f *registryFake) AcquireRetrainLock(context.Context) (func(), error) {
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	f.lockCount++
	return func() { f.unlocks++ }, nil
}

func (f *registryFake) Active(context.Context) (*domain.ModelVersion, error) {
	if f.activeErr != nil {
		return nil, f.activeErr
	}
	if f.active == nil {
		return nil, nil
	}
	copied := *f.active
	return &copied, nil
}

func (f *registryFake) Activate(_ context.Context, version domain.ModelVersion) error {
	if f.actErr != nil {
		return f.actErr
	}
	f.activated = append(f.activated, version)
	f.active = &version
	return nil
}

func (f *registryFake) SetRemoteRef(_ context.Context, version, ref string) error {
	f.remoteRefs[version] = ref
	return nil
}

type artifactWriterFake struct {
	written  []string
	removed  []string
	packaged []string
	writeErr error
	pkgErr   error
}

func (f *artifactWriterFake) WriteVersion(_ context.Context, version string, weights io.Reader) (string, error) {
	if f.writeErr != nil {
		return "", f.writeErr
	}
	_, _ = io.ReadAll(weights)
	f.written = append(f.written, version)
	return "/models/" + version, nil
}

func (f *artifactWriterFake) RemoveVersion(_ context.Context, version string) error {
	f.removed = append(f.removed, version)
	return nil
}

func (f *artifactWriterFake) Package(_ context.Context, version string) (string, error) {
	if f.pkgErr != nil {
		return "", f.pkgErr
	}
	f.packaged = append(f.packaged, version)
	return "/models/" + version + ".tar.gz", nil
}

type artifactStoreFake struct {
	pushed  []string
	pushErr error
}

func (f *artifactStoreFake) Push(_ context.Context, localPath string) (string, error) {
	if f.pushErr != nil {
		return "", f.pushErr
	}
	f.pushed = append(f.pushed, localPath)
	return "s3://models/" + localPath, nil
}

type signalerFake struct {
	published []string
}

func (f *signalerFake) PublishModelReloaded(_ context.Context, version string) error {
	f.published = append(f.published, version)
	return nil
}

func (f *signalerFake) SubscribeModelReloaded(context.Context, func(context.Context, string) error) error {
	return nil
}

func newOrchestratorForTest(
	repo *annotationRepoFake,
	trainer *trainerFake,
	registry *registryFake,
	artifacts *artifactWriterFake,
	remote *artifactStoreFake,
	signal *signalerFake,
	cfg TrainingConfig,
) *RetrainingOrchestrator {
	builder := NewTrainingSetBuilder(repo, 7*24*time.Hour)
	manager := NewModelVersionManager(registry, artifacts, remote, signal, nil)
	return NewRetrainingOrchestrator(builder, trainer, registry, manager, cfg, 42, nil)
}

func TestRunTrainsEveryEpochAndPublishes(t *testing.T) {
	now := time.Now().UTC()
	repo := &annotationRepoFake{rows: []domain.AnnotationRow{
		annotation("patient has diabetes", 12, 20, "disease", now.Add(-time.Hour)),
		annotation("takes metformin", 6, 15, "medication", now.Add(-time.Hour)),
	}}
	trainer := &trainerFake{loss: 1.5}
	registry := newRegistryFake()
	artifacts := &artifactWriterFake{}
	remote := &artifactStoreFake{}
	signal := &signalerFake{}
	orch := newOrchestratorForTest(repo, trainer, registry, artifacts, remote, signal, TrainingConfig{Epochs: 3, Dropout: 0.2})

	report, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Examples != 2 || report.Epochs != 3 || len(report.EpochLosses) != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	// Two examples fit in one floor-sized batch, one batch per epoch.
	if len(trainer.batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(trainer.batches))
	}
	for _, d := range trainer.dropouts {
		if d != 0.2 {
			t.Fatalf("dropout = %v", d)
		}
	}
	if report.Version != "0.1.1" {
		t.Fatalf("version = %q", report.Version)
	}
	if registry.lockCount != 1 || registry.unlocks != 1 {
		t.Fatalf("retrain lock acquire/release = %d/%d", registry.lockCount, registry.unlocks)
	}
	if len(signal.published) != 1 || signal.published[0] != "0.1.1" {
		t.Fatalf("reload signal = %v", signal.published)
	}
}

func TestRunZeroExamplesIsNoOpEpochsButStillPublishes(t *testing.T) {
	trainer := &trainerFake{}
	registry := newRegistryFake()
	orch := newOrchestratorForTest(&annotationRepoFake{}, trainer, registry, &artifactWriterFake{}, &artifactStoreFake{}, &signalerFake{}, TrainingConfig{Epochs: 5})

	report, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(trainer.batches) != 0 {
		t.Fatalf("no batches expected for empty training set")
	}
	if len(report.EpochLosses) != 5 {
		t.Fatalf("empty epochs still counted: %+v", report.EpochLosses)
	}
}

func TestRunSequentialRunsBumpPatchMonotonically(t *testing.T) {
	registry := newRegistryFake()
	artifacts := &artifactWriterFake{}
	run := func() string {
		orch := newOrchestratorForTest(&annotationRepoFake{}, &trainerFake{}, registry, artifacts, &artifactStoreFake{}, &signalerFake{}, TrainingConfig{Epochs: 1})
		report, err := orch.Run(context.Background())
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return report.Version
	}

	first, second := run(), run()
	if first != "0.1.1" || second != "0.1.2" {
		t.Fatalf("versions = %q, %q", first, second)
	}
	if registry.active == nil || registry.active.Version != "0.1.2" {
		t.Fatalf("active version = %+v", registry.active)
	}
	// The previous directory is only removed after the new one is live.
	if len(artifacts.removed) != 1 || artifacts.removed[0] != "0.1.1" {
		t.Fatalf("removed = %v", artifacts.removed)
	}
}

func TestRunAbortsWithoutTouchingActiveOnWriteFailure(t *testing.T) {
	registry := newRegistryFake()
	registry.active = &domain.ModelVersion{Version: "0.1.3", Path: "/models/0.1.3", Active: true}
	artifacts := &artifactWriterFake{writeErr: errors.New("disk full")}
	orch := newOrchestratorForTest(&annotationRepoFake{}, &trainerFake{}, registry, artifacts, &artifactStoreFake{}, &signalerFake{}, TrainingConfig{Epochs: 1})

	_, err := orch.Run(context.Background())
	if !domain.IsKind(err, domain.ErrVersionManager) {
		t.Fatalf("expected version manager failure, got %v", err)
	}
	if registry.active.Version != "0.1.3" {
		t.Fatalf("active version must be untouched, got %+v", registry.active)
	}
	if len(artifacts.removed) != 0 {
		t.Fatalf("no directory may be removed on a failed run")
	}
}

func TestRunRemovesFreshDirectoryWhenActivationFails(t *testing.T) {
	registry := newRegistryFake()
	registry.actErr = errors.New("registry down")
	artifacts := &artifactWriterFake{}
	orch := newOrchestratorForTest(&annotationRepoFake{}, &trainerFake{}, registry, artifacts, &artifactStoreFake{}, &signalerFake{}, TrainingConfig{Epochs: 1})

	_, err := orch.Run(context.Background())
	if !domain.IsKind(err, domain.ErrVersionManager) {
		t.Fatalf("expected version manager failure, got %v", err)
	}
	if len(artifacts.removed) != 1 || artifacts.removed[0] != "0.1.1" {
		t.Fatalf("fresh directory should be rolled back, got %v", artifacts.removed)
	}
}

func TestCompoundingBatchScheduleWidensTowardCeil(t *testing.T) {
	now := time.Now().UTC()
	rows := make([]domain.AnnotationRow, 0, 40)
	for i := 0; i < 40; i++ {
		text := strings.Repeat("x", i+1)
		rows = append(rows, annotation(text, 0, 1, "disease", now.Add(-time.Hour)))
	}
	repo := &annotationRepoFake{rows: rows}
	trainer := &trainerFake{}
	orch := newOrchestratorForTest(repo, trainer, newRegistryFake(), &artifactWriterFake{}, &artifactStoreFake{}, &signalerFake{},
		TrainingConfig{Epochs: 1, BatchFloor: 4, BatchCeil: 8, BatchGrowth: 2})

	if _, err := orch.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	sizes := make([]int, 0, len(trainer.batches))
	for _, b := range trainer.batches {
		sizes = append(sizes, len(b))
	}
	// 40 examples: 4, then 8 (capped) until exhausted: 4+8+8+8+8+4.
	want := []int{4, 8, 8, 8, 8, 4}
	if len(sizes) != len(want) {
		t.Fatalf("batch sizes = %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Fatalf("batch sizes = %v, want %v", sizes, want)
		}
	}
}

func TestBumpPatch(t *testing.T) {
	next, err := domain.BumpPatch("0.3.9")
	if err != nil || next != "0.3.10" {
		t.Fatalf("BumpPatch = %q, %v", next, err)
	}
	if _, err := domain.BumpPatch("0.3"); err == nil {
		t.Fatalf("malformed version must error")
	}
}
