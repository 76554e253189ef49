// Package config assembles agentmem's configuration from, in increasing
// precedence: built-in defaults, a JSON config file, AGENTMEM_-prefixed
// environment variables, and command-line flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Options is the root, flag/env/file-bindable configuration tree shared by
// memhook and memd.
type Options struct {
	Debug   bool   `json:"debug" mapstructure:"debug"`
	LogJSON bool   `json:"log-json" mapstructure:"log-json"`
	WorkDir string `json:"work-dir" mapstructure:"work-dir"`

	Store     *StoreOptions     `json:"store" mapstructure:"store"`
	Embedding *EmbeddingOptions `json:"embedding" mapstructure:"embedding"`
	LLM       *LLMOptions       `json:"llm" mapstructure:"llm"`
	Agents    *AgentOptions     `json:"agents" mapstructure:"agents"`
}

// NewOptions returns Options populated with defaults.
func NewOptions() *Options {
	wd, _ := os.Getwd()
	return &Options{
		WorkDir:   wd,
		Store:     NewStoreOptions(),
		Embedding: NewEmbeddingOptions(),
		LLM:       NewLLMOptions(),
		Agents:    NewAgentOptions(),
	}
}

// AddFlags registers every sub-option's flags onto fs.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Debug, "debug", o.Debug, "Enable debug-level logging.")
	fs.BoolVar(&o.LogJSON, "log-json", o.LogJSON, "Emit structured JSON logs instead of text.")
	fs.StringVar(&o.WorkDir, "work-dir", o.WorkDir, "Project working directory used to derive the project identity.")
	o.Store.AddFlags(fs)
	o.Embedding.AddFlags(fs)
	o.LLM.AddFlags(fs)
	o.Agents.AddFlags(fs)
}

// Validate aggregates every sub-option's validation errors.
func (o *Options) Validate() []error {
	var errs []error
	errs = append(errs, o.Store.Validate()...)
	errs = append(errs, o.Embedding.Validate()...)
	errs = append(errs, o.LLM.Validate()...)
	errs = append(errs, o.Agents.Validate()...)
	return errs
}

func (o *Options) String() string {
	data, _ := json.MarshalIndent(o, "", "  ")
	return string(data)
}

// Complete resolves derived fields: expanding "~" in DataDir and defaulting
// WorkDir to the process cwd when unset.
func (o *Options) Complete() error {
	if o.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve work dir: %w", err)
		}
		o.WorkDir = wd
	}
	if strings.HasPrefix(o.Store.DataDir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		o.Store.DataDir = filepath.Join(home, strings.TrimPrefix(o.Store.DataDir, "~"))
	}
	return nil
}

// DBPath returns the per-project SQLite database path for the given project
// identity (see internal/identity).
func (o *Options) DBPath(projectIdentity string) string {
	return filepath.Join(o.Store.DataDir, projectIdentity, "memory.db")
}

const envPrefix = "AGENTMEM"

// Load builds an Options tree from defaults, an optional JSON config file,
// AGENTMEM_-prefixed environment variables, and already-parsed flags, in
// that increasing order of precedence.
func Load(configFile string, fs *pflag.FlagSet) (*Options, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			if _, isNotFound := err.(viper.ConfigFileNotFoundError); !isNotFound {
				return nil, fmt.Errorf("read config file %s: %w", configFile, err)
			}
		}
	}

	opts := NewOptions()
	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}
	if err := v.Unmarshal(opts); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := opts.Complete(); err != nil {
		return nil, err
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %v", errs)
	}
	return opts, nil
}
