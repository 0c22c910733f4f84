// This file is derived from cmd/ranger/config.go's tomlSettings/loadConfig
// pattern (2018/06/04). Modified and improved for the refill automation
// service: the node/P2P config surface is replaced with §6.4's option table.
package config

import (
	"bufio"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/naoina/toml"
)

// Config is the public, non-secret configuration surface of §6.4. It is
// loaded from a TOML file and is read-only after boot (§5: "Configuration is
// read-only after boot").
type Config struct {
	ServerPort int `toml:"server_port"`

	AuthEnabled             bool   `toml:"auth_enabled"`
	AuthPublicKey           string `toml:"auth_public_key"`
	CallbackPrivateKey      string `toml:"callback_private_key"`
	JWTMaxLifetimeInSeconds int    `toml:"jwt_max_lifetime_in_seconds"`

	CronEnabled                    bool `toml:"cron_enabled"`
	CronIntervalInMS               int  `toml:"cron_interval_in_ms"`
	PendingAlertThresholdInSeconds int  `toml:"pending_alert_threshold_in_seconds"`

	SlackWebhookURL string `toml:"slack_webhook_url"`

	// Providers carries per-provider public settings, e.g.
	// providers.fireblocks.api_base_url. Credentials never live here.
	Providers map[string]map[string]string `toml:"providers"`
}

// Defaults mirror §6.4's named defaults.
const (
	DefaultJWTMaxLifetimeInSeconds        = 300
	DefaultCronIntervalInMS               = 30000
	DefaultPendingAlertThresholdInSeconds = 1800
)

// Default returns a Config with every §6.4 default applied; callers overlay
// a loaded TOML file on top of this, the way defaultRangerConfig() composed
// with the file-loaded config in the teacher's boot sequence.
func Default() Config {
	return Config{
		ServerPort:                     8080,
		AuthEnabled:                    true,
		JWTMaxLifetimeInSeconds:        DefaultJWTMaxLifetimeInSeconds,
		CronEnabled:                    true,
		CronIntervalInMS:               DefaultCronIntervalInMS,
		PendingAlertThresholdInSeconds: DefaultPendingAlertThresholdInSeconds,
	}
}

// CronInterval and AlertThreshold convert the millisecond/second config
// fields into time.Duration for use by the monitor.
func (c Config) CronInterval() time.Duration {
	return time.Duration(c.CronIntervalInMS) * time.Millisecond
}

func (c Config) AlertThreshold() time.Duration {
	return time.Duration(c.PendingAlertThresholdInSeconds) * time.Second
}

func (c Config) JWTMaxLifetime() time.Duration {
	return time.Duration(c.JWTMaxLifetimeInSeconds) * time.Second
}

// tomlSettings ensures TOML keys map to struct fields by their `toml` tag
// exactly, the way the teacher's config loader enforced strict field names.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// Load reads a TOML file into a Config seeded with Default() values.
func Load(file string) (Config, error) {
	cfg := Default()
	f, err := os.Open(file)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil {
		if _, ok := err.(*toml.LineError); ok {
			return cfg, fmt.Errorf("%s, %s", file, err)
		}
		return cfg, err
	}
	return cfg, nil
}

// Secrets is the separate bag named in §6.4: database credentials and
// per-provider credentials. It is loaded from its own file so it can be
// mounted/rotated independently of the public Config and kept out of
// version control.
type Secrets struct {
	ChainDB ChainDBSecrets `toml:"chain_db"`

	// ProviderCredentials is keyed by canonical provider name, e.g.
	// "liminal" -> {"api_key": "...", "api_secret": "..."}.
	ProviderCredentials map[string]map[string]string `toml:"provider_credentials"`
}

type ChainDBSecrets struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
}

// DSN builds the go-sql-driver/mysql data source name for the configured
// database, matching the driver's own documented DSN shape.
func (s ChainDBSecrets) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
		s.User, s.Password, s.Host, s.Port, s.Name)
}

// LoadSecrets reads the secrets bag from its own TOML file.
func LoadSecrets(file string) (Secrets, error) {
	var s Secrets
	f, err := os.Open(file)
	if err != nil {
		return s, err
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&s); err != nil {
		if _, ok := err.(*toml.LineError); ok {
			return s, fmt.Errorf("%s, %s", file, err)
		}
		return s, err
	}
	return s, nil
}
