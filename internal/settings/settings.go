// Package settings resolves build parameters from flags, CONSTRUCT_*
// environment variables and an optional .construct.yaml file.
package settings

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CONSTRUCT"

// FileName is the settings file looked up in the project directory.
const FileName = ".construct"

// Interactive modes.
const (
	InteractiveAuto   = "auto"
	InteractiveAlways = "always"
	InteractiveNever  = "never"
)

// Settings holds the parameters of a build invocation.
type Settings struct {
	Manifest    string   `mapstructure:"manifest" validate:"required"`
	Context     string   `mapstructure:"context"`
	Intention   string   `mapstructure:"intention" validate:"required"`
	Symbols     []string `mapstructure:"symbols"`
	Rebuild     int      `mapstructure:"rebuild" validate:"min=0,max=2"`
	Processors  int      `mapstructure:"processors" validate:"min=0"`
	Timeout     int      `mapstructure:"timeout" validate:"min=0"`
	LogLevel    string   `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Interactive string   `mapstructure:"interactive" validate:"oneof=auto always never"`
	MetricsFile string   `mapstructure:"metrics_file"`
}

// ProcessTimeout is the per-process timeout; zero disables it.
func (s Settings) ProcessTimeout() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// binding maps a settings key to its flag.
type binding struct {
	key, flag string
}

var bindings = []binding{
	{"manifest", "manifest"},
	{"context", "context"},
	{"intention", "intention"},
	{"symbols", "symbols"},
	{"rebuild", "rebuild"},
	{"processors", "processors"},
	{"timeout", "timeout"},
	{"log_level", "log-level"},
	{"interactive", "interactive"},
	{"metrics_file", "metrics-file"},
}

// RegisterFlags adds the build flags to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("manifest", "f", "project.yaml", "Project manifest")
	flags.StringP("context", "C", "", "Build context directory (defaults to the manifest's context)")
	flags.StringP("intention", "i", "debug", "Build intention selected from the context")
	flags.StringSlice("symbols", nil, "Additional symbol files")
	flags.IntP("rebuild", "r", 0, "Rebuild level: 1 rebuilds the selected factors, 2 rebuilds everything")
	flags.IntP("processors", "j", runtime.NumCPU(), "Maximum number of concurrent processes")
	flags.Int("timeout", 0, "Per-process timeout in seconds (0 disables)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("interactive", InteractiveAuto, "Progress view (auto, always, never)")
	flags.String("metrics-file", "", "Write build metrics in the Prometheus text format")
}

// New creates a viper instance reading flags, the environment and the
// settings file found in dir.
func New(flags *pflag.FlagSet, dir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, b := range bindings {
		if f := flags.Lookup(b.flag); f != nil {
			if err := v.BindPFlag(b.key, f); err != nil {
				return nil, err
			}
		}
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, constructerrors.NewParseError(v.ConfigFileUsed(), 0, err)
		}
	}
	return v, nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, constructerrors.NewValidationError("settings", err.Error(), err)
	}
	s.LogLevel = strings.ToLower(s.LogLevel)

	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("mapstructure")
	})
	if err := validate.Struct(s); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) {
			fe := ves[0]
			return Settings{}, constructerrors.NewValidationError(
				fe.Field(),
				fmt.Sprintf("invalid value %v for %s (%s)", fe.Value(), fe.Field(), fe.Tag()),
				err,
			)
		}
		return Settings{}, constructerrors.NewValidationError("settings", err.Error(), err)
	}
	return s, nil
}
