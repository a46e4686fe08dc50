package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/pior/redis"
	"github.com/pior/redis/resp"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables: REDIS_HOST, REDIS_LOG_LEVEL...
const EnvPrefix = "REDIS"

// Config is the command-line tool configuration.
// Keys are the flag names; the environment variable of a key is EnvPrefix_KEY
// with dashes replaced by underscores.
type Config struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Encoding       string        `mapstructure:"encoding"`
	MaxSize        int32         `mapstructure:"max-size"`
	BufferSize     int           `mapstructure:"buffer-size"`
	StrictIntegers bool          `mapstructure:"strict-integers"`

	LogLevel    string `mapstructure:"log-level"`
	LogFormat   string `mapstructure:"log-format"`
	MetricsAddr string `mapstructure:"metrics-addr"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Host:       redis.DefaultHost,
		Port:       redis.DefaultPort,
		Timeout:    redis.DefaultTimeout,
		Encoding:   resp.EncodingMultiBulk.String(),
		MaxSize:    redis.DefaultMaxSize,
		BufferSize: resp.DefaultBufferSize,
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// RegisterFlags defines one flag per key on flags.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("host", d.Host, "server host")
	flags.Int("port", d.Port, "server port")
	flags.String("password", d.Password, "password sent with AUTH on connect")
	flags.Int("db", d.DB, "database selected on connect")
	flags.Duration("timeout", d.Timeout, "timeout of every send and receive (negative disables)")
	flags.String("encoding", d.Encoding, "request encoding: multibulk or inline")
	flags.Int32("max-size", d.MaxSize, "maximum number of connections")
	flags.Int("buffer-size", d.BufferSize, "receive buffer size in bytes")
	flags.Bool("strict-integers", d.StrictIntegers, "reject non-numeric integer replies")
	flags.String("log-level", d.LogLevel, "log level: debug, info, warn or error")
	flags.String("log-format", d.LogFormat, "log format: text or json")
	flags.String("metrics-addr", d.MetricsAddr, "serve Prometheus metrics on this address (disabled when empty)")
}

// Load reads the configuration, by increasing precedence, from the defaults,
// envFile (optional, may not exist), the environment and the flags set on the
// command line. flags may be nil.
func Load(flags *pflag.FlagSet, envFile string) (Config, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("password", d.Password)
	v.SetDefault("db", d.DB)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("encoding", d.Encoding)
	v.SetDefault("max-size", d.MaxSize)
	v.SetDefault("buffer-size", d.BufferSize)
	v.SetDefault("strict-integers", d.StrictIntegers)
	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
	v.SetDefault("metrics-addr", d.MetricsAddr)

	if envFile != "" {
		if err := loadEnvFile(v, envFile); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// loadEnvFile reads the EnvPrefix_ variables of a .env file as defaults.
func loadEnvFile(v *viper.Viper, path string) error {
	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("env")

	if err := file.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	prefix := strings.ToLower(EnvPrefix) + "_"
	for _, key := range file.AllKeys() {
		name, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		v.SetDefault(strings.ReplaceAll(name, "_", "-"), file.Get(key))
	}
	return nil
}

// Client returns the client configuration.
func (c Config) Client(logger *slog.Logger) (redis.Config, error) {
	enc, ok := resp.ParseEncoding(c.Encoding)
	if !ok {
		return redis.Config{}, fmt.Errorf("unknown encoding %q", c.Encoding)
	}

	return redis.Config{
		Host:           c.Host,
		Port:           c.Port,
		Password:       c.Password,
		DB:             c.DB,
		Timeout:        c.Timeout,
		MaxSize:        c.MaxSize,
		Encoding:       enc,
		BufferSize:     c.BufferSize,
		StrictIntegers: c.StrictIntegers,
		Logger:         logger,
	}, nil
}

// NewLogger builds the slog logger writing to w.
func (c Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", c.LogLevel)
	}

	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(c.LogFormat) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", c.LogFormat)
	}
}
