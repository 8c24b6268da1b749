package config

import "github.com/spf13/viper"

// Config holds the application configuration.
type Config struct {
	ServerAddress  string `mapstructure:"SERVER_ADDRESS"`
	PostgresConn   string `mapstructure:"POSTGRES_CONN"`
	MigrationURL   string `mapstructure:"MIGRATION_URL"`
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	SMTPAddr       string `mapstructure:"SMTP_ADDR"`
	SMTPFrom       string `mapstructure:"SMTP_FROM"`
	RequestTimeout int    `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
}

// LoadConfig loads the configuration from an env file.
func LoadConfig(path string) (cfg Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}
	err = viper.Unmarshal(&cfg)
	return
}
