// Where: internal/config/settings.go
// What: Optional settings file for the tool.
// Why: Let operators move the config store or tune backups without flags.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/privatebox/create-apikey/internal/meta"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
	sigsyaml "sigs.k8s.io/yaml"
)

//go:embed schema/settings.schema.json
var settingsSchema []byte

const settingsSchemaURL = "mem://create-apikey/settings.schema.json"

var (
	schemaOnce     sync.Once
	schemaErr      error
	compiledSchema *jsonschema.Schema
)

// Settings holds tool configuration. Pointer fields distinguish "unset" from
// an explicit zero. An empty BackupDir means "backup" next to the config file.
type Settings struct {
	ConfigPath  string `yaml:"config_path,omitempty"`
	BackupDir   string `yaml:"backup_dir,omitempty"`
	BackupCount *int   `yaml:"backup_count,omitempty"`
	LogFile     string `yaml:"log_file,omitempty"`
	LogLevel    string `yaml:"log_level,omitempty"`
}

// Defaults returns the appliance defaults.
func Defaults() Settings {
	count := meta.DefaultBackupCount
	return Settings{
		ConfigPath:  meta.ConfigPath,
		BackupCount: &count,
		LogLevel:    "info",
	}
}

// Load reads the settings file at path. A missing file is not an error when
// optional is true; defaults are returned instead.
func Load(path string, optional bool) (Settings, error) {
	defaults := Defaults()
	payload, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return defaults, nil
		}
		return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}

	loaded, err := Parse(payload)
	if err != nil {
		return Settings{}, fmt.Errorf("settings %s: %w", path, err)
	}
	resolveRelative(&loaded, filepath.Dir(path))
	return defaults.Merge(loaded), nil
}

// Parse validates payload against the settings schema and decodes it.
func Parse(payload []byte) (Settings, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return Settings{}, nil
	}
	if err := validate(payload); err != nil {
		return Settings{}, err
	}
	var s Settings
	if err := yaml.Unmarshal(payload, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// Merge returns s overlaid with the set fields of override.
func (s Settings) Merge(override Settings) Settings {
	out := s
	if override.ConfigPath != "" {
		out.ConfigPath = override.ConfigPath
	}
	if override.BackupDir != "" {
		out.BackupDir = override.BackupDir
	}
	if override.BackupCount != nil {
		count := *override.BackupCount
		out.BackupCount = &count
	}
	if override.LogFile != "" {
		out.LogFile = override.LogFile
	}
	if override.LogLevel != "" {
		out.LogLevel = override.LogLevel
	}
	return out
}

// Backups returns the retention count, falling back to the default.
func (s Settings) Backups() int {
	if s.BackupCount == nil {
		return meta.DefaultBackupCount
	}
	return *s.BackupCount
}

func resolveRelative(s *Settings, base string) {
	for _, p := range []*string{&s.ConfigPath, &s.BackupDir, &s.LogFile} {
		if v := strings.TrimSpace(*p); v != "" && !filepath.IsAbs(v) {
			*p = filepath.Join(base, v)
		}
	}
}

func validate(payload []byte) error {
	sch, err := loadSchema()
	if err != nil {
		return err
	}

	jsonData, err := sigsyaml.YAMLToJSON(payload)
	if err != nil {
		return fmt.Errorf("convert yaml to json: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(jsonData))
	dec.UseNumber()
	var document any
	if err := dec.Decode(&document); err != nil {
		return fmt.Errorf("unmarshal json: %w", err)
	}
	if document == nil {
		return nil
	}
	return sch.Validate(document)
}

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(settingsSchemaURL, bytes.NewReader(settingsSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(settingsSchemaURL)
	})
	return compiledSchema, schemaErr
}
