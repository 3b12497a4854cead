package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eliseohh/strelkabot/internal/strelka"
)

var ErrMissingToken = errors.New("TELEGRAM_BOT_TOKEN is not set")

type Config struct {
	Token       string        `mapstructure:"telegram_bot_token"`
	WebHost     string        `mapstructure:"web_host"`
	WebPort     int           `mapstructure:"web_port"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	StatusURL   string        `mapstructure:"strelka_status_url"`
	CardTypeID  string        `mapstructure:"strelka_card_type_id"`
	Timeout     time.Duration `mapstructure:"strelka_timeout"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	LogLevel    string        `mapstructure:"log_level"`
}

var defaults = map[string]any{
	"telegram_bot_token":   "",
	"web_host":             "0.0.0.0",
	"web_port":             8080,
	"sqlite_path":          "data/bot.db",
	"strelka_status_url":   strelka.DefaultStatusURL,
	"strelka_card_type_id": strelka.DefaultCardTypeID,
	"strelka_timeout":      strelka.DefaultTimeout,
	"poll_timeout":         10 * time.Second,
	"log_level":            "info",
}

// Flags registers the command line overrides understood by Load.
func Flags(fs *pflag.FlagSet) {
	fs.String("env-file", ".env", "dotenv file to load before reading the environment")
	fs.String("web-host", "", "health server host (WEB_HOST)")
	fs.Int("web-port", 0, "health server port (WEB_PORT)")
	fs.String("sqlite-path", "", "card database file (SQLITE_PATH)")
	fs.String("log-level", "", "debug, info, warn or error (LOG_LEVEL)")
}

// Load reads the dotenv file, then the environment, then flags that were set
// explicitly. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	envFile := ".env"
	if fs != nil {
		if f := fs.Lookup("env-file"); f != nil {
			envFile = f.Value.String()
		}
	}
	if envFile != "" {
		// godotenv never overrides a set variable, so exported-but-empty
		// keys would hide the file's values
		for k := range defaults {
			if val, ok := os.LookupEnv(strings.ToUpper(k)); ok && val == "" {
				os.Unsetenv(strings.ToUpper(k))
			}
		}
		// a missing file is fine, the environment may carry everything
		_ = godotenv.Load(envFile)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if fs != nil {
		for _, name := range []string{"web-host", "web-port", "sqlite-path", "log-level"} {
			f := fs.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(strings.ReplaceAll(name, "-", "_"), f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return ErrMissingToken
	}
	if c.WebPort < 0 || c.WebPort > 65535 {
		return fmt.Errorf("invalid WEB_PORT %d", c.WebPort)
	}
	if c.SQLitePath == "" {
		return errors.New("SQLITE_PATH is empty")
	}
	return nil
}

func (c *Config) WebAddr() string {
	return net.JoinHostPort(c.WebHost, strconv.Itoa(c.WebPort))
}
