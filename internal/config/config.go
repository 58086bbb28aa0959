// Package config loads the YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"kelly-curve-lab/internal/logging"
	"kelly-curve-lab/internal/numeric"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "KELLY_CONFIG"

// ErrInvalidConfig wraps parse and validation failures.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full application configuration.
type Config struct {
	Log          logging.Config     `yaml:"log"`
	Distribution DistributionConfig `yaml:"distribution"`
	Grid         GridConfig         `yaml:"grid"`
	Convolution  ConvolutionConfig  `yaml:"convolution"`
	Transform    TransformConfig    `yaml:"transform"`
	Curve        CurveConfig        `yaml:"curve"`
	Fit          FitConfig          `yaml:"fit"`
	Bounds       BoundsConfig       `yaml:"bounds"`
	Batch        BatchConfig        `yaml:"batch"`
	Storage      StorageConfig      `yaml:"storage"`
	Publish      PublishConfig      `yaml:"publish"`
	Server       ServerConfig       `yaml:"server"`
}

// DistributionConfig selects the center distribution and tail thresholds.
type DistributionConfig struct {
	Center    string  `yaml:"center" default:"skewt" validate:"oneof=skewt studentt"`
	LeftTail  float64 `yaml:"left_tail" default:"0.1" validate:"gt=0,lt=0.5"`
	RightTail float64 `yaml:"right_tail" default:"0.1" validate:"gt=0,lt=0.5"`
}

// GridConfig is the log-return PDF grid. 0 must land on a grid point, so
// (points-1) * -lower / (upper-lower) has to be a whole number.
type GridConfig struct {
	Points int     `yaml:"points" default:"6001" validate:"min=3"`
	Lower  float64 `yaml:"lower" default:"-3" validate:"lt=0"`
	Upper  float64 `yaml:"upper" default:"3" validate:"gt=0,gtfield=Lower"`
}

// ConvolutionConfig controls forward propagation.
type ConvolutionConfig struct {
	MaxDays int    `yaml:"max_days" default:"365" validate:"min=1"`
	Method  string `yaml:"method" default:"fft" validate:"oneof=fft direct"`
}

// TransformConfig controls the log-return to price remap.
type TransformConfig struct {
	SmoothingWindow int     `yaml:"smoothing_window" default:"5" validate:"min=1"`
	Tolerance       float64 `yaml:"tolerance" default:"1e-6" validate:"gt=0"`
	MaxIterations   int     `yaml:"max_iterations" default:"500" validate:"min=1"`
}

// CurveConfig is the utilization grid and boundary search.
type CurveConfig struct {
	Utilizations   int     `yaml:"utilizations" default:"100" validate:"min=2"`
	MaxUtilization float64 `yaml:"max_utilization" default:"0.99" validate:"gt=0,lte=1"`
	Workers        int     `yaml:"workers" default:"0" validate:"min=0"` // 0 = GOMAXPROCS
	Tolerance      float64 `yaml:"tolerance" default:"1e-9" validate:"gt=0"`
	MaxEvaluations int     `yaml:"max_evaluations" default:"500" validate:"min=10"`
}

// FitConfig selects the fitted curve family.
type FitConfig struct {
	Family        string  `yaml:"family" default:"cosh" validate:"oneof=cosh exponential polynomial"`
	Negligible    float64 `yaml:"negligible" default:"1e-10" validate:"gt=0"`
	MaxIterations int     `yaml:"max_iterations" default:"5000" validate:"min=1"`
}

// BoundsConfig lists the no-arbitrage bounds applied to every request.
type BoundsConfig struct {
	Lower []string `yaml:"lower" default:"[\"zero\",\"parity\",\"monotonicity\",\"calendar\"]" validate:"dive,oneof=zero parity monotonicity calendar"`
	Upper []string `yaml:"upper" default:"[\"intrinsic_cap\",\"monotonicity\",\"convexity\",\"calendar\"]" validate:"dive,oneof=intrinsic_cap monotonicity convexity calendar"`
}

// BatchConfig controls batch runs.
type BatchConfig struct {
	Workers  int  `yaml:"workers" default:"4" validate:"min=1"`
	EmitPDFs bool `yaml:"emit_pdfs"`
}

// StorageConfig selects the stores.
type StorageConfig struct {
	Curves        string `yaml:"curves" default:"memory" validate:"oneof=memory postgres redis"`
	Prices        string `yaml:"prices" default:"memory" validate:"oneof=memory clickhouse"`
	PostgresDSN   string `yaml:"postgres_dsn" validate:"required_if=Curves postgres"`
	PostgresConns int32  `yaml:"postgres_max_conns" default:"8"`
	ClickhouseDSN string `yaml:"clickhouse_dsn" validate:"required_if=Prices clickhouse"`
	RedisAddr     string `yaml:"redis_addr" validate:"required_if=Curves redis"`
	RedisPrefix   string `yaml:"redis_prefix" default:"kelly"`
}

// PublishConfig enables Kafka publication when Brokers is non-empty.
type PublishConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic" default:"kelly-curves"`
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr" default:":8080"`
}

// Default returns the configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Load reads path, or the file named by KELLY_CONFIG when path is empty.
// With neither set the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		cfg := Default()
		return cfg, Validate(cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("%w: defaults: %v", ErrInvalidConfig, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		g := sl.Current().Interface().(GridConfig)
		if g.Points < 3 || g.Upper <= g.Lower {
			return // field tags report these
		}
		if _, ok := numeric.ZeroIndex(g.Lower, g.Upper, g.Points); !ok {
			sl.ReportError(g.Points, "Points", "points", "zero_on_grid", "")
		}
	}, GridConfig{})
	return v
}

// Validate checks struct tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", ErrInvalidConfig, e.Namespace(), e.Tag(), e.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
