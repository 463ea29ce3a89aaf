// Package config holds the settings of every stage, loaded from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/koch/pkg/koch/bayes"
	"github.com/cognicore/koch/pkg/koch/fetch"
	"github.com/cognicore/koch/pkg/koch/internalerr"
	"github.com/cognicore/koch/pkg/koch/store"
	"github.com/cognicore/koch/pkg/koch/store/backends"
	"github.com/cognicore/koch/pkg/koch/textrank"
)

// Config is the configuration of a koch run
type Config struct {
	Store    Store           `yaml:"store"`
	Paths    Paths           `yaml:"paths"`
	Stoplist string          `yaml:"stoplist"`
	Fetch    fetch.Config    `yaml:"fetch"`
	Sample   Sample          `yaml:"sample"`
	TextRank textrank.Config `yaml:"textrank"`
	Bayes    bayes.Config    `yaml:"bayes"`
	Eval     Eval            `yaml:"eval"`
}

// Store selects the storage engine shared by all stages
type Store struct {
	Backend   string `yaml:"backend"`
	BatchSize int    `yaml:"batch_size"`
}

// Paths locates the input file and the store of every stage output
type Paths struct {
	URLs       string `yaml:"urls"`
	Fetch      string `yaml:"fetch"`
	Sample     string `yaml:"sample"`
	Extract    string `yaml:"extract"`
	Parse      string `yaml:"parse"`
	TextRank   string `yaml:"textrank"`
	IDF        string `yaml:"idf"`
	TfIdf      string `yaml:"tfidf"`
	BayesPrior string `yaml:"bayes_prior"`
	Bayes      string `yaml:"bayes"`
	MIPrior    string `yaml:"mutualinfo_prior"`
	MutualInfo string `yaml:"mutualinfo"`
}

// Sample configures reservoir sampling
type Sample struct {
	Size int   `yaml:"size"`
	Seed int64 `yaml:"seed"`
}

// Eval configures the evaluation against labelled text
type Eval struct {
	Labels      string `yaml:"labels"`
	KeyColumn   string `yaml:"key_column"`
	ValueColumn string `yaml:"value_column"`
	Output      string `yaml:"output"`
}

// Default returns a configuration keeping every store under data/.
func Default() Config {
	return Config{
		Store: Store{Backend: backends.Default, BatchSize: store.DefaultBatchSize},
		Paths: Paths{
			URLs:       "urls.csv",
			Fetch:      filepath.Join("data", "fetch"),
			Sample:     filepath.Join("data", "sample"),
			Extract:    filepath.Join("data", "extract"),
			Parse:      filepath.Join("data", "parse"),
			TextRank:   filepath.Join("data", "textrank"),
			IDF:        filepath.Join("data", "idf"),
			TfIdf:      filepath.Join("data", "tfidf"),
			BayesPrior: filepath.Join("data", "bayes_prior"),
			Bayes:      filepath.Join("data", "bayes"),
			MIPrior:    filepath.Join("data", "mutualinfo_prior"),
			MutualInfo: filepath.Join("data", "mutualinfo"),
		},
		Fetch:    fetch.DefaultConfig(),
		Sample:   Sample{Size: 100},
		TextRank: textrank.DefaultConfig(),
		Eval:     Eval{KeyColumn: "url", ValueColumn: "body"},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the settings every stage depends on.
func (c Config) Validate() error {
	if c.Store.Backend != "" && !slices.Contains(backends.Names(), c.Store.Backend) {
		return fmt.Errorf("%w: unknown backend %q (have %v)", internalerr.ErrInvalidConfig, c.Store.Backend, backends.Names())
	}
	if c.Store.BatchSize < 1 {
		return fmt.Errorf("%w: batch_size %d < 1", internalerr.ErrInvalidConfig, c.Store.BatchSize)
	}
	if c.Sample.Size < 0 {
		return fmt.Errorf("%w: sample size %d < 0", internalerr.ErrInvalidConfig, c.Sample.Size)
	}
	return c.TextRank.Validate()
}

// Read returns options opening the store at path for reading.
func (c Config) Read(path string) store.Options {
	o := store.ReadOptions(c.Store.Backend, path)
	o.BatchSize = c.Store.BatchSize
	return o
}

// Write returns options creating a new store at path.
func (c Config) Write(path string) store.Options {
	o := store.WriteOptions(c.Store.Backend, path)
	o.BatchSize = c.Store.BatchSize
	return o
}

// Stoplist represents the stopword list configuration
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// LoadStoplist loads stopwords from a YAML file
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}

	return &sl, nil
}

// Stopwords loads the configured stoplist; none is an empty list.
func (c Config) Stopwords() ([]string, error) {
	if c.Stoplist == "" {
		return nil, nil
	}
	sl, err := LoadStoplist(c.Stoplist)
	if err != nil {
		return nil, fmt.Errorf("load stoplist: %w", err)
	}
	return sl.Terms, nil
}
