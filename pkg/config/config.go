// Package config loads stackcc project settings.
//
// Settings come from stackcc.yaml, then STACKCC_* environment variables,
// then command-line flags, each layer overriding the one before.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/xyproto/env/v2"
	"github.com/ztrue/tracerr"
	"gopkg.in/yaml.v2"

	"stackcc/pkg/vm"
)

// FileName is the project file looked up in the working directory.
const FileName = "stackcc.yaml"

type Config struct {
	// Output is the bytecode path. Empty means the source path with a .bin
	// extension.
	Output string `yaml:"output"`

	// EmitAsm also writes the assembly next to the bytecode.
	EmitAsm bool `yaml:"emit_asm"`

	Memory   int  `yaml:"memory"`
	MaxSteps int  `yaml:"max_steps"`
	Verbose  bool `yaml:"verbose"`
}

func Default() Config {
	return Config{
		Memory:   vm.DefaultMemory,
		MaxSteps: vm.DefaultMaxSteps,
	}
}

// Load reads path over the defaults and applies the environment. A missing
// file is reported with an error matching os.ErrNotExist; the returned
// Config still carries the defaults and environment in that case.
func Load(path string) (Config, error) {
	c := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		c.applyEnv()
		return c, tracerr.Wrap(err)
	}
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return c, tracerr.Wrap(fmt.Errorf("%s: %w", path, err))
	}

	c.applyEnv()
	return c, c.Validate()
}

// LoadOptional is Load where a missing file is not an error.
func LoadOptional(path string) (Config, error) {
	c, err := Load(path)
	if err != nil && errors.Is(tracerr.Unwrap(err), os.ErrNotExist) {
		return c, c.Validate()
	}
	return c, err
}

func (c *Config) applyEnv() {
	c.Output = env.Str("STACKCC_OUTPUT", c.Output)
	if env.Str("STACKCC_EMIT_ASM") != "" {
		c.EmitAsm = env.Bool("STACKCC_EMIT_ASM")
	}
	c.Memory = env.Int("STACKCC_MEMORY", c.Memory)
	c.MaxSteps = env.Int("STACKCC_MAX_STEPS", c.MaxSteps)
	if env.Str("STACKCC_VERBOSE") != "" {
		c.Verbose = env.Bool("STACKCC_VERBOSE")
	}
}

func (c Config) Validate() error {
	if c.Memory <= 0 {
		return fmt.Errorf("memory must be positive, got %d", c.Memory)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive, got %d", c.MaxSteps)
	}
	return nil
}

// Write stores c at path. It refuses to replace an existing file.
func Write(path string, c Config) error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return tracerr.Wrap(err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return tracerr.Wrap(err)
	}
	if _, err := f.Write(out); err != nil {
		f.Close()
		return tracerr.Wrap(err)
	}
	return tracerr.Wrap(f.Close())
}
