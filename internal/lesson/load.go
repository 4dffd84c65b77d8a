package lesson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Decode reads one lesson from JSON and normalizes its triggers.
func Decode(r io.Reader) (*Config, error) {
	var cfg Config
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode lesson: %w", err)
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DecodeBytes is Decode over a byte slice.
func DecodeBytes(b []byte) (*Config, error) {
	return Decode(bytes.NewReader(b))
}

// LoadFile decodes and validates the lesson at path.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lesson: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Encode writes cfg as indented JSON.
func Encode(w io.Writer, cfg *Config) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

// Clone deep-copies cfg through its JSON form.
func Clone(cfg *Config) *Config {
	b, err := json.Marshal(cfg)
	if err != nil {
		panic(fmt.Sprintf("lesson: clone: %v", err))
	}
	var out Config
	if err := json.Unmarshal(b, &out); err != nil {
		panic(fmt.Sprintf("lesson: clone: %v", err))
	}
	return &out
}

// Normalize resolves condition strings and operator aliases into the
// canonical field/op form. It is idempotent.
func (c *Config) Normalize() error {
	for i := range c.Reflection.Triggers {
		t := &c.Reflection.Triggers[i]
		if t.Condition != "" {
			cond, err := ParseCondition(t.Condition)
			if err != nil {
				return Wrap(c.InteractionType, fmt.Sprintf("reflectionSpec.triggers[%d].condition", i), err)
			}
			t.Field, t.Op, t.Value, t.Upper = cond.Field, cond.Op, cond.Value, cond.Upper
			t.Condition = ""
		}
		if t.Op != "" {
			op, ok := NormalizeOp(t.Op)
			if !ok {
				return Errorf(c.InteractionType, fmt.Sprintf("reflectionSpec.triggers[%d].op", i), ErrBadCondition, "%q", t.Op)
			}
			t.Op = op
		}
		if t.Type == "" && t.Op != "" {
			t.Type = TriggerThreshold
		}
	}
	return nil
}
