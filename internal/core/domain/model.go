package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ModelVersion is one registry entry for a trained recognition-model
// artifact. Exactly one version is active at a time.
type ModelVersion struct {
	Version   string    `json:"version"`
	Path      string    `json:"path"`
	RemoteRef string    `json:"remote_ref,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// InitialModelVersion seeds the registry when no artifact has been published
// yet.
const InitialModelVersion = "0.1.0"

// BumpPatch increments the patch component of a major.minor.patch version
// string.
func BumpPatch(version string) (string, error) {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed version %q", version)
	}
	patch, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", fmt.Errorf("malformed patch component in %q: %w", version, err)
	}
	return fmt.Sprintf("%s.%s.%d", parts[0], parts[1], patch+1), nil
}

// TrainingTriple is one (start, end, label) entity annotation inside a
// training example.
type TrainingTriple struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
}

// TrainingExample pairs a source text with its de-duplicated entity triples.
type TrainingExample struct {
	Text     string           `json:"text"`
	Entities []TrainingTriple `json:"entities"`
}

// TrainingReport summarizes one retraining run.
type TrainingReport struct {
	Examples    int       `json:"examples"`
	Epochs      int       `json:"epochs"`
	EpochLosses []float64 `json:"epoch_losses"`
	Version     string    `json:"version,omitempty"`
}
