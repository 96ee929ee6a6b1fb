// Package model loads versioned risk model artifacts and runs ensemble
// inference over feature vectors.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/mchmarny/georisk/pkg/net"
)

const (
	artifactNameFormat = "risk_model_%s.json"

	schemaURL = "https://github.com/mchmarny/georisk/risk-model.schema.json"
)

// ErrVersionMismatch means the artifact's embedded version does not
// match the version asked for. Scoring must not proceed on it.
var ErrVersionMismatch = errors.New("model version mismatch")

// Model is a loaded, validated artifact. Immutable after Load.
type Model struct {
	artifact *Artifact
}

func (m *Model) Version() string {
	return m.artifact.Version
}

func (m *Model) TrainedAt() string {
	return m.artifact.TrainedAt
}

// ArtifactPath returns the expected file location for a model version.
func ArtifactPath(dir, version string) string {
	return filepath.Join(dir, fmt.Sprintf(artifactNameFormat, version))
}

// Load reads and validates the artifact for the requested version from
// the model directory.
func Load(dir, version string) (*Model, error) {
	if version == "" {
		return nil, errors.New("model version required")
	}

	path := ArtifactPath(dir, version)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading model artifact %s: %w", path, err)
	}

	if err := validateArtifact(b); err != nil {
		return nil, fmt.Errorf("invalid model artifact %s: %w", path, err)
	}

	a := &Artifact{}
	if err := json.Unmarshal(b, a); err != nil {
		return nil, fmt.Errorf("error parsing model artifact %s: %w", path, err)
	}

	if a.Version != version {
		return nil, fmt.Errorf("artifact %s declares version %q, wanted %q: %w",
			path, a.Version, version, ErrVersionMismatch)
	}

	slog.Debug("model loaded",
		"version", a.Version,
		"trained_at", a.TrainedAt,
		"components", len(a.Components),
	)

	return &Model{artifact: a}, nil
}

// Fetch downloads an artifact file into the model directory and
// returns its path. The artifact still has to pass Load before use.
func Fetch(url, dir string) (string, error) {
	if url == "" {
		return "", errors.New("artifact url required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("error creating model dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, filepath.Base(url))
	if err := net.Download(url, path); err != nil {
		return "", fmt.Errorf("error downloading model artifact from %s: %w", url, err)
	}

	slog.Debug("model artifact downloaded", "url", url, "path", path)

	return path, nil
}

func validateArtifact(b []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("error decoding artifact json: %w", err)
	}
	return artifactSchema().Validate(doc)
}
