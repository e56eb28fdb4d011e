package sources

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"
)

// sourceFile is the on-disk layout: one or more [[sources]] entries per file
type sourceFile struct {
	Sources []*models.Source `toml:"sources" yaml:"sources"`
}

// Registry holds the compiled sources known to this process
type Registry struct {
	sources map[string]*models.Source
	enabled []string
	logger  arbor.ILogger
}

// Load builds the registry from the built-in ACT sources plus any *.toml,
// *.yaml or *.yml files in config.Dir. A file source with the same name replaces
// the built-in one. Invalid entries are logged and skipped.
func Load(config *common.SourcesConfig, logger arbor.ILogger) (*Registry, error) {
	r := &Registry{
		sources: make(map[string]*models.Source),
		logger:  logger,
	}

	for _, source := range models.DefaultSources() {
		if err := source.Compile(); err != nil {
			return nil, err
		}
		r.sources[source.Name] = source
	}

	if config.Dir != "" {
		r.loadDir(config.Dir)
	}

	names := config.Enabled
	if len(names) == 0 {
		for name, source := range r.sources {
			if source.Enabled {
				names = append(names, name)
			}
		}
		sort.Strings(names)
	}
	for _, name := range names {
		if _, ok := r.sources[name]; !ok {
			return nil, fmt.Errorf("enabled source %q is not defined", name)
		}
	}
	r.enabled = names

	logger.Debug().
		Int("defined", len(r.sources)).
		Strs("enabled", r.enabled).
		Msg("Sources loaded")

	return r, nil
}

func (r *Registry) loadDir(dirPath string) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.Debug().Str("dir", dirPath).Msg("Sources directory does not exist, skipping")
			return
		}
		r.logger.Warn().Err(err).Str("dir", dirPath).Msg("Failed to read sources directory")
		return
	}

	validate := validator.New()
	loaded := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		filePath := filepath.Join(dirPath, entry.Name())
		parsed, err := parseFile(filePath)
		if err != nil {
			r.logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to parse sources file")
			continue
		}

		for _, source := range parsed {
			if err := validate.Struct(source); err != nil {
				r.logger.Warn().
					Err(err).
					Str("file", entry.Name()).
					Str("source", source.Name).
					Msg("Skipping invalid source")
				continue
			}
			if err := source.Compile(); err != nil {
				r.logger.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping source")
				continue
			}
			if _, exists := r.sources[source.Name]; exists {
				r.logger.Info().Str("source", source.Name).Msg("Source overridden from file")
			}
			r.sources[source.Name] = source
			loaded++
		}
	}

	r.logger.Debug().Str("dir", dirPath).Int("loaded", loaded).Msg("Loaded sources from files")
}

// parseFile returns nil sources for files that are not TOML or YAML
func parseFile(filePath string) ([]*models.Source, error) {
	var decode func([]byte, any) error
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".toml":
		decode = toml.Unmarshal
	case ".yaml", ".yml":
		decode = yaml.Unmarshal
	default:
		return nil, nil
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var file sourceFile
	if err := decode(content, &file); err != nil {
		return nil, err
	}
	return file.Sources, nil
}

// Get returns a source by name
func (r *Registry) Get(name string) (*models.Source, error) {
	source, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("unknown source: %s", name)
	}
	return source, nil
}

// Enabled returns the names of the sources the scheduler runs
func (r *Registry) Enabled() []string {
	return append([]string(nil), r.enabled...)
}

// Names returns every defined source name, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
