package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load config from file into the config struct, config must be a pointer to the config struct.
// Values already set in the struct act as defaults, environment variables override the file
// (key "a.b" is read from "A_B"). Lists set by the file or the environment replace the defaults.
func Load(file string, config any) error {
	v := viper.New()

	defaults := make(map[string]any)
	if err := mapstructure.Decode(config, &defaults); err != nil {
		return fmt.Errorf("mapstructure: %v", err)
	}

	// Every default becomes a known key, so AutomaticEnv is consulted for it even when the file
	// does not mention it.
	if err := setDefaults(v, "", defaults); err != nil {
		return err
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config from file %s: %v", file, err)
		}
	}

	if err := v.Unmarshal(config, func(dc *mapstructure.DecoderConfig) {
		dc.ZeroFields = true
	}); err != nil {
		return fmt.Errorf("unmarshal config: %v", err)
	}

	return nil
}

func setDefaults(v *viper.Viper, prefix string, m map[string]any) error {
	for k, val := range m {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}

		switch rv := reflect.ValueOf(val); {
		case rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String:
			sub := make(map[string]any, rv.Len())
			for _, mk := range rv.MapKeys() {
				sub[mk.String()] = rv.MapIndex(mk).Interface()
			}
			if err := setDefaults(v, key, sub); err != nil {
				return err
			}

		case rv.Kind() == reflect.Struct && rv.Type() != reflect.TypeOf(time.Time{}):
			sub := make(map[string]any)
			if err := mapstructure.Decode(val, &sub); err != nil {
				return fmt.Errorf("mapstructure: %s: %v", key, err)
			}
			if err := setDefaults(v, key, sub); err != nil {
				return err
			}

		default:
			v.SetDefault(key, val)
		}
	}

	return nil
}

// LoadEnvFiles loads the given dotenv files into the process environment, so credentials can be
// kept out of the config file. Missing files are skipped; variables already set are not overridden.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		err := godotenv.Load(f)
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("config: env file not found", "file", f)
			continue
		}
		if err != nil {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	return nil
}
