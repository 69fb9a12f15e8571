package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	tarchanhttp "github.com/tarchan/tarchan/http"
	"github.com/tarchan/tarchan/s3"
)

// Config is the root configuration struct for tarchan.
type Config struct {
	Server   ServerConfig           `mapstructure:"server"`
	Storage  StorageConfig          `mapstructure:"storage"`
	Registry RegistryConfig         `mapstructure:"registry"`
	Auth     AuthConfig             `mapstructure:"auth"`
	CORS     tarchanhttp.CORSConfig `mapstructure:"cors"`
	Log      LogConfig              `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Listen string `mapstructure:"listen" validate:"required"`
	// BaseURL is the externally advertised URL of this service, used to
	// build Link header targets.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

// StorageConfig holds object-store configuration.
type StorageConfig struct {
	Endpoint          string `mapstructure:"endpoint" validate:"omitempty,url"`
	Region            string `mapstructure:"region"`
	Bucket            string `mapstructure:"bucket" validate:"required"`
	AccessKeyID       string `mapstructure:"access_key_id"`
	SecretAccessKey   string `mapstructure:"secret_access_key"`
	UsePathStyle      bool   `mapstructure:"use_path_style"`
	PresignTTLSeconds int    `mapstructure:"presign_ttl" validate:"min=1,max=604800"`
}

// S3Config converts the storage section into the s3 package's config.
func (s StorageConfig) S3Config() s3.Config {
	return s3.Config{
		Endpoint:        s.Endpoint,
		Region:          s.Region,
		AccessKeyID:     s.AccessKeyID,
		SecretAccessKey: s.SecretAccessKey,
		UsePathStyle:    s.UsePathStyle,
	}
}

// RegistryConfig holds channel-registry configuration.
type RegistryConfig struct {
	// RefreshIntervalSeconds is the period of the background catalog
	// refresh.
	RefreshIntervalSeconds int `mapstructure:"refresh_interval" validate:"min=1"`
}

// AuthConfig holds authentication configuration. Authentication is
// enabled by configuring public key material; with neither field set,
// all requests are unauthenticated.
type AuthConfig struct {
	// PublicKeyFile is a path to a PEM-encoded RSA public key.
	PublicKeyFile string `mapstructure:"public_key_file"`
	// PublicKey is inline PEM material, taking precedence over
	// PublicKeyFile. Useful for injecting the key via environment.
	PublicKey string `mapstructure:"public_key"`
}

// Enabled reports whether token verification is configured.
func (a AuthConfig) Enabled() bool {
	return a.PublicKeyFile != "" || a.PublicKey != ""
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":3000")

	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.use_path_style", true)
	v.SetDefault("storage.presign_ttl", 600) // seconds

	v.SetDefault("registry.refresh_interval", 30) // seconds

	v.SetDefault("log.level", "info")
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"listen":   "server.listen",
	"base-url": "server.base_url",
	"endpoint": "storage.endpoint",
	"bucket":   "storage.bucket",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("TARCHAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
