package server

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr string        `mapstructure:"listen_addr"`
	Storage    string        `mapstructure:"storage"` // "memory" or "mongo"
	MongoURI   string        `mapstructure:"mongo_uri"`
	MongoDB    string        `mapstructure:"mongo_db"`
	Collection string        `mapstructure:"collection"`
	JWTIssuer  string        `mapstructure:"jwt_issuer"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	LogLevel   string        `mapstructure:"log_level"`
	LogFormat  string        `mapstructure:"log_format"`

	// DevOwner, when set with memory storage, makes vaultd print a ready
	// bearer token for that owner at startup.
	DevOwner  string `mapstructure:"dev_owner"`
	DevDevice string `mapstructure:"dev_device"`
}

// LoadConfig reads the vaultd config file (if any) plus VAULTD_* env
// overrides.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("vaultd")
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8484"
	}
	if c.Storage == "" {
		c.Storage = "memory"
	}
	if c.MongoDB == "" {
		c.MongoDB = "vaultsync"
	}
	if c.Collection == "" {
		c.Collection = "vaults"
	}
	if c.JWTIssuer == "" {
		c.JWTIssuer = "vaultd"
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 24 * time.Hour
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
}
