// Package config assembles the single, read-only run configuration from
// command-line flags, DTITK_* environment variables and an optional YAML
// file.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sameehj/dtitk-condor/pkg/script"
	"github.com/sameehj/dtitk-condor/pkg/stage"
)

// EnvPrefix namespaces environment overrides, e.g. DTITK_SPECIES.
const EnvPrefix = "DTITK"

// Voxel is the configured bootstrap voxel size; zero means probe.
type Voxel struct {
	X float64 `mapstructure:"x" yaml:"x" validate:"gte=0"`
	Y float64 `mapstructure:"y" yaml:"y" validate:"gte=0"`
	Z float64 `mapstructure:"z" yaml:"z" validate:"gte=0"`
}

// check rejects a voxel size with some axes set and others left to probing.
func (v Voxel) check() error {
	set := 0
	for _, axis := range []float64{v.X, v.Y, v.Z} {
		if axis > 0 {
			set++
		}
	}
	if set > 0 && set < 3 {
		return fmt.Errorf("invalid configuration: voxel size needs x, y and z together (--xsize, --ysize, --zsize), got %g %g %g", v.X, v.Y, v.Z)
	}
	return nil
}

// Config is built once per run and shared read-only by every generator.
type Config struct {
	SubjectFile string `mapstructure:"subject_file" yaml:"subject_file" validate:"required"`
	DTITKRoot   string `mapstructure:"dtitk_root" yaml:"dtitk_root" validate:"required"`
	ScriptsDir  string `mapstructure:"scripts_dir" yaml:"scripts_dir" validate:"required"`
	NormDir     string `mapstructure:"norm_dir" yaml:"norm_dir" validate:"required"`

	RegType string `mapstructure:"reg_type" yaml:"reg_type" validate:"required"`
	Species string `mapstructure:"species" yaml:"species" validate:"required"`

	Rigid  int `mapstructure:"rigid" yaml:"rigid" validate:"gte=0"`
	Affine int `mapstructure:"affine" yaml:"affine" validate:"gte=0"`
	Diffeo int `mapstructure:"diffeo" yaml:"diffeo" validate:"gte=0"`

	Monitor       bool  `mapstructure:"monitor" yaml:"monitor"`
	RequestMemory int   `mapstructure:"request_memory" yaml:"request_memory" validate:"gt=0"`
	Voxel         Voxel `mapstructure:"voxel" yaml:"voxel"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" validate:"oneof=text json"`

	// Resolved from Species.
	SepCoarse float64 `mapstructure:"-" yaml:"sep_coarse"`
	SepFine   float64 `mapstructure:"-" yaml:"sep_fine"`

	// Warnings collects recoverable problems found while loading, for the
	// caller to log once a logger exists.
	Warnings []string `mapstructure:"-" yaml:"-"`
}

// Counts returns the per-phase iteration counts.
func (c *Config) Counts() stage.Counts {
	return stage.Counts{Rigid: c.Rigid, Affine: c.Affine, Diffeo: c.Diffeo}
}

// ScriptParams returns the values substituted into stage scripts.
func (c *Config) ScriptParams(voxel script.Voxel) script.Params {
	return script.Params{
		DTITKRoot: c.DTITKRoot,
		RegType:   c.RegType,
		SepCoarse: c.SepCoarse,
		Voxel:     voxel,
	}
}

// ConfiguredVoxel returns the voxel size from configuration.
func (c *Config) ConfiguredVoxel() script.Voxel {
	return script.Voxel{X: c.Voxel.X, Y: c.Voxel.Y, Z: c.Voxel.Z}
}

var defaults = map[string]any{
	"subject_file":   "",
	"dtitk_root":     "",
	"scripts_dir":    "",
	"norm_dir":       "",
	"reg_type":       "NMI",
	"species":        DefaultSpecies,
	"rigid":          3,
	"affine":         3,
	"diffeo":         6,
	"monitor":        false,
	"request_memory": 1024,
	"voxel.x":        0.0,
	"voxel.y":        0.0,
	"voxel.z":        0.0,
	"log_level":      "info",
	"log_format":     "text",
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"regtype":        "reg_type",
	"species":        "species",
	"rigid":          "rigid",
	"affine":         "affine",
	"diffeo":         "diffeo",
	"monitor":        "monitor",
	"request-memory": "request_memory",
	"xsize":          "voxel.x",
	"ysize":          "voxel.y",
	"zsize":          "voxel.z",
	"log-level":      "log_level",
	"log-format":     "log_format",
}

// positionalKeys are the keys filled from positional arguments, in order.
var positionalKeys = []string{"subject_file", "dtitk_root", "scripts_dir", "norm_dir"}

// RegisterFlags adds the run flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("regtype", "NMI", "Registration similarity metric")
	fs.String("species", DefaultSpecies, "Species (HUMAN, MONKEY or RAT)")
	fs.Int("rigid", 3, "Number of rigid iterations")
	fs.Int("affine", 3, "Number of affine iterations")
	fs.Int("diffeo", 6, "Number of diffeomorphic iterations")
	fs.BoolP("monitor", "m", false, "Create a progress monitoring page (not yet implemented)")
	fs.Int("request-memory", 1024, "Memory in MB requested by each condor job")
	fs.Float64("xsize", 0, "Bootstrap voxel size in X (probed with fslval when unset)")
	fs.Float64("ysize", 0, "Bootstrap voxel size in Y (probed with fslval when unset)")
	fs.Float64("zsize", 0, "Bootstrap voxel size in Z (probed with fslval when unset)")
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.String("log-format", "text", "Log format (text or json)")
}

// Load builds the run configuration. Precedence, highest first: positional
// args, changed flags, DTITK_* environment, the YAML file at path, defaults.
// fs and args may be nil.
func Load(path string, fs *pflag.FlagSet, args []string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("dtitk_root", "DTITK_ROOT", "DTITK_DTITK_ROOT"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			flag := fs.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	if len(args) > len(positionalKeys) {
		return nil, fmt.Errorf("expected at most %d arguments, got %d", len(positionalKeys), len(args))
	}
	for i, arg := range args {
		v.Set(positionalKeys[i], arg)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finalize() error {
	c.RegType = strings.ToUpper(strings.TrimSpace(c.RegType))
	c.Species = strings.ToUpper(strings.TrimSpace(c.Species))
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.LogFormat = strings.ToLower(c.LogFormat)

	if err := validate(c); err != nil {
		return err
	}
	if err := c.Voxel.check(); err != nil {
		return err
	}

	coeff, ok := LookupSpecies(c.Species)
	if !ok {
		c.Warnings = append(c.Warnings, fmt.Sprintf(
			"species %q did not match one of the existing options; defaulting to %s settings", c.Species, DefaultSpecies))
		coeff = speciesCoefficients[DefaultSpecies]
	}
	c.SepCoarse, c.SepFine = coeff.SepCoarse, coeff.SepFine

	for _, p := range []*string{&c.SubjectFile, &c.DTITKRoot, &c.ScriptsDir, &c.NormDir} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("resolve path %s: %w", *p, err)
		}
		*p = abs
	}
	if c.Monitor {
		c.Warnings = append(c.Warnings, "progress monitoring is not yet implemented; --monitor is ignored")
	}
	return nil
}

var structValidator = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}()

func validate(c *Config) error {
	err := structValidator.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s] (got: %v)", field, fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s (got: %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
