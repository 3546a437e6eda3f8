// Package artifact persists trained models together with their label
// mapping and tokenizer.
//
// An artifact is a directory:
//
//	config.json            format version, model type, label maps, dimensions, checksum, metrics
//	model.cbor             model weights
//	vocab.txt              tokenizer vocabulary
//	tokenizer_config.json  tokenizer settings
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/raphaelgruber/scrumbot/internal/model"
	"github.com/raphaelgruber/scrumbot/internal/tokenizer"
)

// FormatVersion is bumped on incompatible layout changes.
const FormatVersion = 1

const (
	ConfigFile  = "config.json"
	WeightsFile = "model.cbor"
)

var (
	ErrVersionMismatch  = errors.New("artifact format version mismatch")
	ErrChecksumMismatch = errors.New("weights checksum mismatch")
	ErrInconsistent     = errors.New("artifact files are inconsistent")
)

// LoadError reports an artifact that cannot be used.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load artifact %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Config is the content of config.json.
type Config struct {
	FormatVersion int                `json:"format_version"`
	ModelType     string             `json:"model_type"`
	RunID         string             `json:"run_id"`
	CreatedAt     time.Time          `json:"created_at"`
	ID2Label      map[string]string  `json:"id2label"`
	Label2ID      map[string]int     `json:"label2id"`
	VocabSize     int                `json:"vocab_size"`
	NumLabels     int                `json:"num_labels"`
	MaxLength     int                `json:"max_length"`
	Context       int                `json:"context,omitempty"`
	Decay         float64            `json:"decay,omitempty"`
	WeightsSHA256 string             `json:"weights_sha256"`
	Metrics       map[string]float64 `json:"metrics,omitempty"`
}

// Artifact is a loaded or to-be-saved model bundle.
type Artifact struct {
	// Labels are the label names in id order.
	Labels    []string
	Tokenizer *tokenizer.Tokenizer
	Model     model.State
	MaxLength int
	RunID     string
	Metrics   map[string]float64
	CreatedAt time.Time
}

// Save writes a to dir, creating it if needed. Existing files are
// overwritten.
func Save(dir string, a Artifact) error {
	if a.Tokenizer == nil {
		return errors.New("save artifact: tokenizer is required")
	}
	if len(a.Labels) != a.Model.NumLabels {
		return fmt.Errorf("save artifact: %d labels for a model with %d outputs", len(a.Labels), a.Model.NumLabels)
	}
	if a.Tokenizer.VocabSize() != a.Model.VocabSize {
		return fmt.Errorf("save artifact: tokenizer has %d entries, model expects %d", a.Tokenizer.VocabSize(), a.Model.VocabSize)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	weights, err := cbor.Marshal(a.Model)
	if err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, WeightsFile), weights, 0o644); err != nil {
		return fmt.Errorf("write weights: %w", err)
	}
	if err := a.Tokenizer.Save(dir, a.MaxLength); err != nil {
		return err
	}

	cfg := Config{
		FormatVersion: FormatVersion,
		ModelType:     a.Model.Type,
		RunID:         a.RunID,
		CreatedAt:     a.CreatedAt,
		ID2Label:      make(map[string]string, len(a.Labels)),
		Label2ID:      make(map[string]int, len(a.Labels)),
		VocabSize:     a.Model.VocabSize,
		NumLabels:     a.Model.NumLabels,
		MaxLength:     a.MaxLength,
		Context:       a.Model.Context,
		Decay:         a.Model.Decay,
		WeightsSHA256: checksum(weights),
		Metrics:       a.Metrics,
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now().UTC()
	}
	for id, l := range a.Labels {
		cfg.ID2Label[strconv.Itoa(id)] = l
		cfg.Label2ID[l] = id
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), data, 0o644); err != nil {
		return fmt.Errorf("write artifact config: %w", err)
	}
	return nil
}

// ReadConfig reads only config.json.
func ReadConfig(dir string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		return cfg, &LoadError{Path: dir, Err: err}
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, &LoadError{Path: dir, Err: fmt.Errorf("parse %s: %w", ConfigFile, err)}
	}
	if cfg.FormatVersion != FormatVersion {
		return cfg, &LoadError{Path: dir, Err: fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, cfg.FormatVersion, FormatVersion)}
	}
	return cfg, nil
}

// Load reads and verifies the artifact in dir. Every failure is a *LoadError.
func Load(dir string) (*Artifact, Config, error) {
	cfg, err := ReadConfig(dir)
	if err != nil {
		return nil, cfg, err
	}
	fail := func(err error) (*Artifact, Config, error) {
		return nil, cfg, &LoadError{Path: dir, Err: err}
	}

	labels, err := labelsFromConfig(cfg)
	if err != nil {
		return fail(err)
	}

	weights, err := os.ReadFile(filepath.Join(dir, WeightsFile))
	if err != nil {
		return fail(err)
	}
	if sum := checksum(weights); sum != cfg.WeightsSHA256 {
		return fail(fmt.Errorf("%w: %s has %s, config records %s", ErrChecksumMismatch, WeightsFile, sum, cfg.WeightsSHA256))
	}
	var state model.State
	if err := cbor.Unmarshal(weights, &state); err != nil {
		return fail(fmt.Errorf("decode weights: %w", err))
	}
	if state.Type != cfg.ModelType || state.NumLabels != cfg.NumLabels || state.VocabSize != cfg.VocabSize {
		return fail(fmt.Errorf("%w: weights are %s %dx%d, config says %s %dx%d", ErrInconsistent,
			state.Type, state.VocabSize, state.NumLabels, cfg.ModelType, cfg.VocabSize, cfg.NumLabels))
	}

	tok, _, err := tokenizer.Load(dir)
	if err != nil {
		return fail(err)
	}
	if tok.VocabSize() != cfg.VocabSize {
		return fail(fmt.Errorf("%w: vocabulary has %d entries, config says %d", ErrInconsistent, tok.VocabSize(), cfg.VocabSize))
	}

	return &Artifact{
		Labels:    labels,
		Tokenizer: tok,
		Model:     state,
		MaxLength: cfg.MaxLength,
		RunID:     cfg.RunID,
		Metrics:   cfg.Metrics,
		CreatedAt: cfg.CreatedAt,
	}, cfg, nil
}

func labelsFromConfig(cfg Config) ([]string, error) {
	if len(cfg.ID2Label) != cfg.NumLabels {
		return nil, fmt.Errorf("%w: id2label has %d entries, config says %d labels", ErrInconsistent, len(cfg.ID2Label), cfg.NumLabels)
	}
	out := make([]string, cfg.NumLabels)
	for key, l := range cfg.ID2Label {
		id, err := strconv.Atoi(key)
		if err != nil || id < 0 || id >= cfg.NumLabels {
			return nil, fmt.Errorf("%w: bad label id %q", ErrInconsistent, key)
		}
		out[id] = l
	}
	for id, l := range out {
		if back, ok := cfg.Label2ID[l]; !ok || back != id {
			return nil, fmt.Errorf("%w: label2id disagrees with id2label for %q", ErrInconsistent, l)
		}
	}
	if len(cfg.Label2ID) != len(out) {
		return nil, fmt.Errorf("%w: label2id has %d entries, want %d", ErrInconsistent, len(cfg.Label2ID), len(out))
	}
	return out, nil
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
