// Package config loads the client configuration from a YAML file,
// SMBCLIENT_* environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ineffectivecoder/gosmbclient/pkg/smb"
	"github.com/ineffectivecoder/gosmbclient/pkg/smb/types"
	"github.com/ineffectivecoder/gosmbclient/pkg/smbclient"
)

// EnvPrefix prefixes every environment override, e.g. SMBCLIENT_AUTH_USERNAME.
const EnvPrefix = "SMBCLIENT"

// Config is the client configuration.
//
// Sources, highest precedence first:
//  1. Environment variables (SMBCLIENT_*)
//  2. Configuration file
//  3. Defaults
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Protocol ProtocolConfig `mapstructure:"protocol" yaml:"protocol"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Transfer TransferConfig `mapstructure:"transfer" yaml:"transfer"`
}

// ServerConfig names the server to connect to.
type ServerConfig struct {
	Host        string        `mapstructure:"host" yaml:"host"`
	Port        int           `mapstructure:"port" validate:"min=1,max=65535" yaml:"port"`
	Share       string        `mapstructure:"share" yaml:"share,omitempty"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" validate:"gte=0" yaml:"dial_timeout"`
	// Socks5 is a socks5://[user:pass@]host:port proxy URL.
	Socks5 string `mapstructure:"socks5" validate:"omitempty,url" yaml:"socks5,omitempty"`
}

// AuthConfig holds NTLM credentials. Empty username and password log on
// anonymously.
type AuthConfig struct {
	Username    string `mapstructure:"username" yaml:"username,omitempty"`
	Password    string `mapstructure:"password" yaml:"password,omitempty"`
	Domain      string `mapstructure:"domain" yaml:"domain,omitempty"`
	Workstation string `mapstructure:"workstation" yaml:"workstation,omitempty"`
}

// ProtocolConfig tunes SMB2 negotiation and transfers.
type ProtocolConfig struct {
	// Dialects offered, as "2.0.2", "2.1", "3.0" or "3.0.2".
	Dialects       []string `mapstructure:"dialects" validate:"dive,oneof=2.0.2 2.1 3.0 3.0.2" yaml:"dialects"`
	RequireSigning bool     `mapstructure:"require_signing" yaml:"require_signing"`
	CreditRequest  uint16   `mapstructure:"credit_request" validate:"min=1" yaml:"credit_request"`
	// ChunkSize caps READ and WRITE sizes, "0" uses the negotiated maximum.
	ChunkSize ByteSize `mapstructure:"chunk_size" validate:"lte=8388608" yaml:"chunk_size"`
}

// LoggingConfig sets the log level for every package logger.
type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"oneof=none error notice info debug" yaml:"level"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" validate:"omitempty,hostname_port" yaml:"listen"`
}

// TransferConfig sizes the transfer queue.
type TransferConfig struct {
	QueueDepth int `mapstructure:"queue_depth" validate:"min=1" yaml:"queue_depth"`
}

// ByteSize is a size that decodes from "1MiB", "64k" or a plain number.
type ByteSize uint64

// String formats the size with IEC units.
func (b ByteSize) String() string { return humanize.IBytes(uint64(b)) }

// MarshalYAML writes the human-readable form.
func (b ByteSize) MarshalYAML() (interface{}, error) {
	return b.String(), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        smb.DefaultPort,
			DialTimeout: 30 * time.Second,
		},
		Protocol: ProtocolConfig{
			Dialects:      []string{"2.0.2", "2.1"},
			CreditRequest: 64,
		},
		Logging:  LoggingConfig{Level: "notice"},
		Metrics:  MetricsConfig{Listen: "127.0.0.1:9100"},
		Transfer: TransferConfig{QueueDepth: smbclient.DefaultQueueDepth},
	}
}

// Load reads configPath (optional, "" for the default location) and the
// environment on top of the defaults, then validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)
	setDefaults(v, Default())

	if err := readConfigFile(v, configPath != ""); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Save writes cfg as YAML with owner-only permissions, since it may hold
// a password.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags and cross-field rules.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	if cfg.Auth.Password != "" && cfg.Auth.Username == "" {
		return errors.New("auth.password is set without auth.username")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return errors.New("metrics.listen is required when metrics are enabled")
	}
	return nil
}

// Address returns host:port for the server section.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// ClientOptions maps the configuration onto smbclient.Options.
func (c *Config) ClientOptions() (smbclient.Options, error) {
	dialects, err := ParseDialects(c.Protocol.Dialects)
	if err != nil {
		return smbclient.Options{}, err
	}
	return smbclient.Options{
		Connection: smb.ConnectionOptions{
			DialTimeout: c.Server.DialTimeout,
			Socks5URL:   c.Server.Socks5,
		},
		Session: smb.SessionOptions{
			Dialects:       dialects,
			RequireSigning: c.Protocol.RequireSigning,
			CreditRequest:  c.Protocol.CreditRequest,
			Workstation:    c.Auth.Workstation,
		},
		ChunkSize: uint32(c.Protocol.ChunkSize),
	}, nil
}

// ParseDialects converts dialect names to their wire values.
func ParseDialects(names []string) ([]types.Dialect, error) {
	var out []types.Dialect
	for _, n := range names {
		switch strings.TrimSpace(n) {
		case "2.0.2":
			out = append(out, types.DialectSMB2_0_2)
		case "2.1":
			out = append(out, types.DialectSMB2_1)
		case "3.0":
			out = append(out, types.DialectSMB3_0)
		case "3.0.2":
			out = append(out, types.DialectSMB3_0_2)
		default:
			return nil, fmt.Errorf("unknown dialect %q", n)
		}
	}
	return out, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(ConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// setDefaults registers every key so environment variables can override
// keys absent from the file.
func setDefaults(v *viper.Viper, cfg *Config) {
	var m map[string]interface{}
	if err := mapstructure.Decode(cfg, &m); err != nil {
		return
	}
	var walk func(prefix string, m map[string]interface{})
	walk = func(prefix string, m map[string]interface{}) {
		for k, val := range m {
			if sub, ok := val.(map[string]interface{}); ok {
				walk(prefix+k+".", sub)
				continue
			}
			v.SetDefault(prefix+k, val)
		}
	}
	walk("", m)
}

// readConfigFile reads the file. A missing file is only an error when it
// was named explicitly.
func readConfigFile(v *viper.Viper, explicit bool) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) || (!explicit && os.IsNotExist(err)) {
		return nil
	}
	return fmt.Errorf("failed to read config file: %w", err)
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook accepts human-readable sizes such as "1MiB" or "64k".
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			n, err := humanize.ParseBytes(v)
			if err != nil {
				return nil, err
			}
			return ByteSize(n), nil
		case int:
			return ByteSize(v), nil
		case uint64:
			return ByteSize(v), nil
		case float64:
			return ByteSize(v), nil
		}
		return data, nil
	}
}

// ConfigDir is $XDG_CONFIG_HOME/smbclient, falling back to ~/.config.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "smbclient")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "smbclient")
}

// DefaultPath is the config file Load reads when none is named.
func DefaultPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
