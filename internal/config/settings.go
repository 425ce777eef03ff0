package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Settings are the resolved options for running a tree.
type Settings struct {
	TickInterval  time.Duration `mapstructure:"tick-interval"`
	LeafTimeout   time.Duration `mapstructure:"leaf-timeout"`
	StepInterval  time.Duration `mapstructure:"step-interval"`
	MaxTicks      int64         `mapstructure:"max-ticks"`
	StopOnFailure bool          `mapstructure:"stop-on-failure"`
	Tree          string        `mapstructure:"tree"`
	Color         string        `mapstructure:"color"`
	MetricsAddr   string        `mapstructure:"metrics.addr"`
	LogFile       string        `mapstructure:"log.file"`
	LogLevel      string        `mapstructure:"log.level"`
	LogMaxSizeMB  int           `mapstructure:"log.max-size-mb"`
	LogMaxFiles   int           `mapstructure:"log.max-files"`
}

// Settings resolves every global option for command (see ResolveFor) and
// decodes the result. Values are validated against their declared types
// first, so an environment override is held to the same rules as the file.
func (s *ConfigSchema) Settings(c *Config, command string) (Settings, error) {
	values := make(map[string]any)
	for _, opt := range s.GlobalOptions() {
		v := s.ResolveFor(c, command, opt.Key)
		if v == "" {
			continue
		}
		if err := opt.validate(v); err != nil {
			return Settings{}, fmt.Errorf("option %q: %w", opt.Key, err)
		}
		if opt.Type == TypeBool {
			b, _ := parseBool(v)
			values[opt.Key] = b
			continue
		}
		values[opt.Key] = v
	}

	var out Settings
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return Settings{}, err
	}
	if err := dec.Decode(values); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return out, nil
}
