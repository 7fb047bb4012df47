package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Games    GamesConfig    `mapstructure:"games"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address" validate:"required"`
	RPCAddress     string `mapstructure:"rpc_address" validate:"required"`
	MonitorAddress string `mapstructure:"monitor_address"`
	PublicBaseURL  string `mapstructure:"public_base_url" validate:"omitempty,url"`
}

type DatabaseConfig struct {
	// Driver selects the ledger access layer: "gorm" (default) or "sql"
	// for the raw database/sql implementation.
	Driver   string         `mapstructure:"driver" validate:"omitempty,oneof=gorm sql"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname" validate:"required"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	// AdminSecret verifies admin console tokens. Token issuance lives in
	// the main product backend; this server only validates.
	AdminSecret string `mapstructure:"admin_secret" validate:"required"`
}

type GamesConfig struct {
	RaffleCountdownSeconds int `mapstructure:"raffle_countdown_seconds" validate:"min=1"`
	KeepAliveSeconds       int `mapstructure:"keepalive_seconds" validate:"min=1"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("database.driver", "gorm")
	viper.SetDefault("server.monitor_address", ":9100")
	viper.SetDefault("games.raffle_countdown_seconds", 5)
	viper.SetDefault("games.keepalive_seconds", 25)

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	err = validator.New().Struct(config)
	return
}
