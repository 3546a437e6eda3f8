package tokenizer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// VocabFile holds one vocabulary entry per line, in id order.
	VocabFile = "vocab.txt"
	// ConfigFile holds the tokenizer settings.
	ConfigFile = "tokenizer_config.json"
)

// Config is persisted next to the vocabulary.
type Config struct {
	Type                 string `json:"tokenizer_class"`
	DoLowerCase          bool   `json:"do_lower_case"`
	StripAccents         bool   `json:"strip_accents"`
	MaxInputCharsPerWord int    `json:"max_input_chars_per_word"`
	PadToken             string `json:"pad_token"`
	UnkToken             string `json:"unk_token"`
	ClsToken             string `json:"cls_token"`
	SepToken             string `json:"sep_token"`
	ModelMaxLength       int    `json:"model_max_length"`
}

// VocabOptions controls BuildVocab.
type VocabOptions struct {
	// MaxSize caps the vocabulary, specials and characters included.
	// Zero means no cap.
	MaxSize int
	// MinFrequency drops words seen fewer times. Values below 1 mean 1.
	MinFrequency int
}

// BuildVocab derives a vocabulary from a word corpus. It contains the
// special tokens, every seen character both as a word start and as a
// continuation, then whole words by descending frequency.
func BuildVocab(corpus [][]string, opts VocabOptions) []string {
	minFreq := opts.MinFrequency
	if minFreq < 1 {
		minFreq = 1
	}

	counts := map[string]int{}
	chars := map[string]bool{}
	for _, words := range corpus {
		for _, w := range words {
			for _, span := range splitWords(w) {
				n := Normalize(w[span.Start:span.End])
				if n == "" {
					continue
				}
				counts[n]++
				for _, r := range n {
					chars[string(r)] = true
				}
			}
		}
	}

	vocab := []string{PadToken, UnkToken, ClsToken, SepToken}
	seen := map[string]bool{}
	for _, v := range vocab {
		seen[v] = true
	}
	add := func(tok string) bool {
		if opts.MaxSize > 0 && len(vocab) >= opts.MaxSize {
			return false
		}
		if !seen[tok] {
			seen[tok] = true
			vocab = append(vocab, tok)
		}
		return true
	}

	charList := make([]string, 0, len(chars))
	for c := range chars {
		charList = append(charList, c)
	}
	sort.Strings(charList)
	for _, c := range charList {
		add(c)
		add(ContinuationPrefix + c)
	}

	type wc struct {
		word  string
		count int
	}
	words := make([]wc, 0, len(counts))
	for w, c := range counts {
		if c >= minFreq {
			words = append(words, wc{w, c})
		}
	}
	sort.Slice(words, func(i, j int) bool {
		if words[i].count != words[j].count {
			return words[i].count > words[j].count
		}
		return words[i].word < words[j].word
	})
	for _, w := range words {
		if !add(w.word) {
			break
		}
	}
	return vocab
}

// Save writes vocab.txt and tokenizer_config.json to dir.
func (t *Tokenizer) Save(dir string, maxLength int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create tokenizer dir: %w", err)
	}

	var b strings.Builder
	for _, tok := range t.tokens {
		b.WriteString(tok)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(filepath.Join(dir, VocabFile), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write vocab: %w", err)
	}

	cfg := Config{
		Type:                 "WordPiece",
		DoLowerCase:          true,
		StripAccents:         true,
		MaxInputCharsPerWord: t.maxCharsPerWord,
		PadToken:             PadToken,
		UnkToken:             UnkToken,
		ClsToken:             ClsToken,
		SepToken:             SepToken,
		ModelMaxLength:       maxLength,
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tokenizer config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), data, 0o644); err != nil {
		return fmt.Errorf("write tokenizer config: %w", err)
	}
	return nil
}

// Load reads a tokenizer saved by Save.
func Load(dir string) (*Tokenizer, Config, error) {
	var cfg Config
	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		return nil, cfg, fmt.Errorf("read tokenizer config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, cfg, fmt.Errorf("parse tokenizer config: %w", err)
	}
	if cfg.UnkToken != "" && cfg.UnkToken != UnkToken {
		return nil, cfg, fmt.Errorf("unsupported unk token %q", cfg.UnkToken)
	}

	f, err := os.Open(filepath.Join(dir, VocabFile))
	if err != nil {
		return nil, cfg, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	var vocab []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		vocab = append(vocab, line)
	}
	if err := sc.Err(); err != nil {
		return nil, cfg, fmt.Errorf("read vocab: %w", err)
	}

	t, err := New(vocab)
	if err != nil {
		return nil, cfg, err
	}
	if cfg.MaxInputCharsPerWord > 0 {
		t.maxCharsPerWord = cfg.MaxInputCharsPerWord
	}
	return t, cfg, nil
}
