// Package config resolves runtime settings from defaults, an env file, the
// process environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/joshsymonds/vacationd/internal/label"
	"github.com/joshsymonds/vacationd/internal/reply"
	"github.com/joshsymonds/vacationd/internal/responder"
)

// Token store kinds.
const (
	StoreFile    = "file"
	StoreKeyring = "keyring"
)

const defaultEnvFile = "config.env"

type Config struct {
	Port             int           `mapstructure:"port"`
	CredentialsFile  string        `mapstructure:"credentials_file"`
	TokenStore       string        `mapstructure:"token_store"`
	TokenFile        string        `mapstructure:"token_file"`
	AuthCallbackAddr string        `mapstructure:"auth_callback_addr"`
	LabelName        string        `mapstructure:"label_name"`
	ReplyBody        string        `mapstructure:"reply_body"`
	PollMin          time.Duration `mapstructure:"poll_min_interval"`
	PollMax          time.Duration `mapstructure:"poll_max_interval"`
	PollOnStart      bool          `mapstructure:"poll_on_start"`
	SkipAutomated    bool          `mapstructure:"skip_automated"`
	RPS              int           `mapstructure:"rps"`
	Autostart        bool          `mapstructure:"autostart"`
	CORSOrigins      []string      `mapstructure:"cors_origins"`
	LogLevel         string        `mapstructure:"log_level"`
}

// binding ties a viper key (the upper-cased env name) to its flag.
type binding struct {
	key   string
	flag  string
	value any
	usage string
}

var bindings = []binding{
	{"port", "port", 8080, "HTTP listen port"},
	{"credentials_file", "credentials-file", "credentials.json", "OAuth client credentials JSON"},
	{"token_store", "token-store", StoreFile, "where to keep the OAuth token (file or keyring)"},
	{"token_file", "token-file", "token.json", "token path for the file store"},
	{"auth_callback_addr", "auth-callback-addr", "127.0.0.1:0", "listen address for the consent redirect"},
	{"label_name", "label", label.DefaultName, "label applied to answered messages"},
	{"reply_body", "reply-body", reply.DefaultBody, "auto-reply text"},
	{"poll_min_interval", "poll-min", responder.DefaultInterval.Min, "shortest pause between polls"},
	{"poll_max_interval", "poll-max", responder.DefaultInterval.Max, "longest pause between polls"},
	{"poll_on_start", "poll-on-start", false, "poll once immediately when started"},
	{"skip_automated", "skip-automated", false, "do not answer bulk or automated mail"},
	{"rps", "rps", 4, "Gmail API requests per second"},
	{"autostart", "autostart", false, "start the loop at boot"},
	{"cors_origins", "cors-origins", []string(nil), "allowed CORS origins"},
	{"log_level", "log-level", "info", "debug, info, warn or error"},
}

// Flags registers every setting on fs.
func Flags(fs *pflag.FlagSet) {
	fs.String("env-file", defaultEnvFile, "dotenv file to load before reading the environment")
	for _, b := range bindings {
		switch d := b.value.(type) {
		case int:
			fs.Int(b.flag, d, b.usage)
		case bool:
			fs.Bool(b.flag, d, b.usage)
		case time.Duration:
			fs.Duration(b.flag, d, b.usage)
		case []string:
			fs.StringSlice(b.flag, d, b.usage)
		case string:
			fs.String(b.flag, d, b.usage)
		}
	}
}

// Load parses args and resolves the configuration. Flags beat the process
// environment, which beats the env file, which beats defaults.
func Load(args []string) (Config, error) {
	flags := pflag.NewFlagSet("vacationd", pflag.ContinueOnError)
	Flags(flags)
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}
	return FromFlags(flags)
}

// FromFlags resolves the configuration from an already parsed flag set.
func FromFlags(flags *pflag.FlagSet) (Config, error) {
	envFile, err := flags.GetString("env-file")
	if err != nil {
		return Config{}, err
	}
	if err := godotenv.Load(envFile); err != nil {
		// The default file is optional, an explicit one is not.
		if !errors.Is(err, fs.ErrNotExist) || flags.Changed("env-file") {
			return Config{}, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	for _, b := range bindings {
		v.SetDefault(b.key, b.value)
		if err := v.BindPFlag(b.key, flags.Lookup(b.flag)); err != nil {
			return Config{}, fmt.Errorf("binding flag %s: %w", b.flag, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	cfg.CORSOrigins = splitOrigins(cfg.CORSOrigins)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := c.Interval().Validate(); err != nil {
		return err
	}
	switch c.TokenStore {
	case StoreFile, StoreKeyring:
	default:
		return fmt.Errorf("unknown token store %q", c.TokenStore)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.RPS < 0 {
		return fmt.Errorf("rps must not be negative, got %d", c.RPS)
	}
	if strings.TrimSpace(c.LabelName) == "" {
		return errors.New("label name is empty")
	}
	return nil
}

func (c Config) Interval() responder.Interval {
	return responder.Interval{Min: c.PollMin, Max: c.PollMax}
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// splitOrigins accepts both repeated values and comma-separated lists.
func splitOrigins(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
