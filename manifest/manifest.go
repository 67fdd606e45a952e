// Package manifest handles serialize.toml configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/EmileSonneveld/serialize-to-js/serialize"
)

// FileName is the name of the configuration file.
const FileName = "serialize.toml"

var log = commonlog.GetLogger("serialize-to-js.manifest")

// Manifest represents a serialize.toml configuration.
type Manifest struct {
	Output Output `toml:"output"`
	Log    Log    `toml:"log"`

	// Dir is the directory containing the serialize.toml file (set at load time).
	Dir string `toml:"-"`

	meta toml.MetaData
}

// Output configures rendering.
type Output struct {
	MaxDepth              int    `toml:"max-depth"`
	Space                 Space  `toml:"space"`
	Unsafe                bool   `toml:"unsafe"`
	AlwaysQuote           bool   `toml:"always-quote"`
	FullPaths             bool   `toml:"full-paths"`
	IgnoreFunction        bool   `toml:"ignore-function"`
	EvaluateSimpleGetters bool   `toml:"evaluate-simple-getters"`
	Needle                string `toml:"needle"`
}

// Log configures diagnostics.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Space is an indentation unit given either as a string or as a count of
// spaces.
type Space string

// UnmarshalTOML implements toml.Unmarshaler.
func (s *Space) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case string:
		*s = Space(x)
	case int64:
		if x < 0 {
			return fmt.Errorf("space: negative width %d", x)
		}
		*s = Space(serialize.IndentUnit(int(x)))
	default:
		return fmt.Errorf("space: expected a string or an integer, got %T", v)
	}
	return nil
}

// Load parses a serialize.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes manifest text. Unknown keys are logged and otherwise ignored.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	meta, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, err
	}
	m.meta = meta
	for _, key := range meta.Undecoded() {
		log.Warningf("unknown key %s", key)
	}
	if m.Output.MaxDepth < 0 {
		return nil, errors.New("output.max-depth must not be negative")
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a serialize.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Options returns serializer options. Keys missing from the file keep the
// values of serialize.DefaultOptions.
func (m *Manifest) Options() *serialize.Options {
	opts := serialize.DefaultOptions()
	if m == nil {
		return opts
	}
	defined := func(key string) bool {
		return m.meta.IsDefined("output", key)
	}

	opts.MaxDepth = m.Output.MaxDepth
	opts.Unsafe = m.Output.Unsafe
	opts.AlwaysQuote = m.Output.AlwaysQuote
	opts.FullPaths = m.Output.FullPaths
	opts.IgnoreFunction = m.Output.IgnoreFunction
	opts.Needle = m.Output.Needle
	if defined("space") {
		opts.Space = string(m.Output.Space)
	}
	if defined("evaluate-simple-getters") {
		opts.EvaluateSimpleGetters = m.Output.EvaluateSimpleGetters
	}
	return opts
}

// ConfigureLogging applies the [log] section to the commonlog backend.
func (m *Manifest) ConfigureLogging() {
	if m == nil {
		return
	}
	var path *string
	if m.Log.File != "" {
		file := m.Log.File
		if !filepath.IsAbs(file) && m.Dir != "" {
			file = filepath.Join(m.Dir, file)
		}
		path = &file
	}
	commonlog.Configure(m.Log.Verbosity, path)
}
