package artifact

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/scrumbot/internal/labels"
	"github.com/raphaelgruber/scrumbot/internal/model"
	"github.com/raphaelgruber/scrumbot/internal/tokenizer"
)

func testArtifact(t *testing.T) Artifact {
	t.Helper()
	tok, err := tokenizer.New([]string{
		tokenizer.PadToken, tokenizer.UnkToken, tokenizer.ClsToken, tokenizer.SepToken,
		"yesterday", "i", "fix", "##ed", "bug",
	})
	require.NoError(t, err)

	scheme := labels.Default()
	m, err := model.NewWindowTagger(tok.VocabSize(), scheme.Len(), model.WithRandomInit(11, 0.3))
	require.NoError(t, err)

	names := make([]string, scheme.Len())
	for id, tag := range scheme.Tags() {
		names[id] = tag.String()
	}
	return Artifact{
		Labels:    names,
		Tokenizer: tok,
		Model:     m.State(),
		MaxLength: 32,
		Metrics:   map[string]float64{"f1": 0.5},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	a := testArtifact(t)
	dir := t.TempDir()
	require.NoError(t, Save(dir, a))

	for _, f := range []string{ConfigFile, WeightsFile, tokenizer.VocabFile, tokenizer.ConfigFile} {
		_, err := os.Stat(filepath.Join(dir, f))
		require.NoError(t, err, f)
	}

	loaded, cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, cfg.FormatVersion)
	assert.Equal(t, model.TypeWindowTagger, cfg.ModelType)
	assert.NotEmpty(t, cfg.RunID)
	assert.Equal(t, "O", cfg.ID2Label["0"])
	assert.Equal(t, 9, cfg.Label2ID["B-DATE"])
	assert.Equal(t, a.Labels, loaded.Labels)
	assert.Equal(t, 32, loaded.MaxLength)
	assert.Equal(t, 0.5, loaded.Metrics["f1"])
	assert.Equal(t, a.Tokenizer.Vocab(), loaded.Tokenizer.Vocab())

	before, err := model.NewWindowTaggerFromState(a.Model)
	require.NoError(t, err)
	after, err := model.NewWindowTaggerFromState(loaded.Model)
	require.NoError(t, err)

	ids := []int{tokenizer.ClsID, 4, 5, 6, 7, 8, tokenizer.SepID}
	mask := []int{1, 1, 1, 1, 1, 1, 1}
	assert.Equal(t, before.Forward(ids, mask), after.Forward(ids, mask))
}

func TestLoadMissing(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Contains(t, le.Error(), "nope")
}

func rewriteConfig(t *testing.T, dir string, edit func(map[string]any)) {
	t.Helper()
	path := filepath.Join(dir, ConfigFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	edit(raw)
	data, err = json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestLoadVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, testArtifact(t)))
	rewriteConfig(t, dir, func(m map[string]any) { m["format_version"] = 99 })

	_, _, err := Load(dir)
	var le *LoadError
	assert.True(t, errors.As(err, &le))
	assert.True(t, errors.Is(err, ErrVersionMismatch))
}

func TestLoadChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, testArtifact(t)))

	path := filepath.Join(dir, WeightsFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, _, err = Load(dir)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
}

func TestLoadInconsistentLabels(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, testArtifact(t)))
	rewriteConfig(t, dir, func(m map[string]any) {
		l2i := m["label2id"].(map[string]any)
		l2i["O"] = 3
	})

	_, _, err := Load(dir)
	assert.True(t, errors.Is(err, ErrInconsistent))
}

func TestLoadInconsistentVocab(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, testArtifact(t)))

	f, err := os.OpenFile(filepath.Join(dir, tokenizer.VocabFile), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("extra\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, _, err = Load(dir)
	assert.True(t, errors.Is(err, ErrInconsistent))
}

func TestSaveValidates(t *testing.T) {
	a := testArtifact(t)
	a.Labels = a.Labels[:3]
	assert.Error(t, Save(t.TempDir(), a))

	a = testArtifact(t)
	a.Tokenizer = nil
	assert.Error(t, Save(t.TempDir(), a))
}
