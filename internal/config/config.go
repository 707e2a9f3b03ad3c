package config

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port                  string
	BindHost              string
	AllowedOrigin         string
	DatabaseURL           string
	DBMigrate             bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	CacheTTLSeconds       int
	AuthSecret            string
	AccessTokenTTLMinutes int
	AppName               string
	BusinessAddress       string
	BusinessPhone         string
	ReceiptDir            string
	Timezone              string
	AgendaCron            string
	DraftTTLMinutes       int
}

// Load reads an optional .env file, an optional yaml file named by CONFIG_FILE
// and the process environment, in increasing order of precedence.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(envOr("CONFIG_FILE", "config.yaml"))
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv can resolve it.
	v.SetDefault("port", "8080")
	v.SetDefault("bind_host", "127.0.0.1")
	v.SetDefault("allowed_origin", "http://127.0.0.1:3000")
	v.SetDefault("database_url", "")
	v.SetDefault("db_host", "")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_name", "riasin")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("db_migrate", true)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("cache_ttl_seconds", 60)
	v.SetDefault("auth_secret", "")
	v.SetDefault("access_token_ttl_minutes", 480)
	v.SetDefault("app_name", "Aplikasi Jasa Makeup")
	v.SetDefault("business_address", "")
	v.SetDefault("business_phone", "")
	v.SetDefault("receipt_dir", "reports/pdf")
	v.SetDefault("timezone", "Asia/Jakarta")
	v.SetDefault("agenda_cron", "0 7 * * *")
	v.SetDefault("draft_ttl_minutes", 120)

	if err := v.ReadInConfig(); err != nil {
		log.Printf("[config] no config file loaded, using env and defaults")
	}

	cfg := Config{
		Port:                  v.GetString("port"),
		BindHost:              strings.TrimSpace(v.GetString("bind_host")),
		AllowedOrigin:         v.GetString("allowed_origin"),
		DatabaseURL:           strings.TrimSpace(v.GetString("database_url")),
		DBMigrate:             v.GetBool("db_migrate"),
		RedisAddr:             v.GetString("redis_addr"),
		RedisPassword:         v.GetString("redis_password"),
		RedisDB:               v.GetInt("redis_db"),
		CacheTTLSeconds:       positiveOr(v.GetInt("cache_ttl_seconds"), 60),
		AuthSecret:            strings.TrimSpace(v.GetString("auth_secret")),
		AccessTokenTTLMinutes: positiveOr(v.GetInt("access_token_ttl_minutes"), 480),
		AppName:               v.GetString("app_name"),
		BusinessAddress:       v.GetString("business_address"),
		BusinessPhone:         v.GetString("business_phone"),
		ReceiptDir:            v.GetString("receipt_dir"),
		Timezone:              v.GetString("timezone"),
		AgendaCron:            strings.TrimSpace(v.GetString("agenda_cron")),
		DraftTTLMinutes:       positiveOr(v.GetInt("draft_ttl_minutes"), 120),
	}

	if cfg.DatabaseURL == "" {
		if host := strings.TrimSpace(v.GetString("db_host")); host != "" {
			cfg.DatabaseURL = buildDatabaseURL(
				host,
				v.GetInt("db_port"),
				v.GetString("db_user"),
				v.GetString("db_password"),
				v.GetString("db_name"),
				v.GetString("db_sslmode"),
			)
		}
	}

	return cfg
}

func (c Config) Address() string {
	return net.JoinHostPort(c.BindHost, c.Port)
}

func buildDatabaseURL(host string, port int, user string, password string, name string, sslmode string) string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, fmt.Sprint(port)),
		Path:     "/" + name,
		RawQuery: url.Values{"sslmode": []string{sslmode}}.Encode(),
	}
	if password != "" {
		u.User = url.UserPassword(user, password)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}

func positiveOr(val int, fallback int) int {
	if val < 1 {
		return fallback
	}
	return val
}

func envOr(key string, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}
