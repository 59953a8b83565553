package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		// Addr del server de ops (healthz/readyz/metrics).
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			DB       int    `yaml:"db"`
			Password string `yaml:"password"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`

		// Límites y tiempos del token cache.
		RecordLimit int    `yaml:"record_limit"` // tope de access tokens por usuario
		MaxTTL      string `yaml:"max_ttl"`      // TTL máximo de una entrada
		MinTTL      string `yaml:"min_ttl"`      // debajo de esto no se guarda (near-expired)
		Timeout     string `yaml:"timeout"`      // timeout por operación
		MaxPending  int    `yaml:"max_pending"`  // tope de requests en vuelo

		// Reintentos de conexión al arranque/reconexión.
		MaxConnectRetries int    `yaml:"max_connect_retries"`
		InitialBackoff    string `yaml:"initial_backoff"`
	} `yaml:"cache"`

	Clients struct {
		// Idiomas para formatear timestamps/ubicación.
		SupportedLanguages []string `yaml:"supported_languages"`
		DefaultLanguage    string   `yaml:"default_language"`

		// Piso para last_access_time: valores anteriores se consideran
		// poco confiables y se reportan como aproximados.
		EarliestSaneAccessTime int64 `yaml:"earliest_sane_access_time"` // epoch ms
	} `yaml:"clients"`
}

func Load(path string) (*Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		// sin archivo: defaults + env
	default:
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.RecordLimit == 0 {
		c.Cache.RecordLimit = 100
	}
	if c.Cache.MaxTTL == "" {
		c.Cache.MaxTTL = "24h"
	}
	if c.Cache.MinTTL == "" {
		c.Cache.MinTTL = "1s"
	}
	if c.Cache.Timeout == "" {
		c.Cache.Timeout = "1s"
	}
	if c.Cache.MaxPending == 0 {
		c.Cache.MaxPending = 1000
	}
	if c.Cache.MaxConnectRetries == 0 {
		c.Cache.MaxConnectRetries = 5
	}
	if c.Cache.InitialBackoff == "" {
		c.Cache.InitialBackoff = "100ms"
	}
	if len(c.Clients.SupportedLanguages) == 0 {
		c.Clients.SupportedLanguages = []string{"en"}
	}
	if c.Clients.DefaultLanguage == "" {
		c.Clients.DefaultLanguage = "en"
	}
	if c.Clients.EarliestSaneAccessTime == 0 {
		// 2008-01-01T00:00:00Z: nada de esto existía antes.
		c.Clients.EarliestSaneAccessTime = 1199145600000
	}

	// validate string durations
	for _, d := range []string{
		c.Storage.Postgres.ConnMaxLifetime,
		c.Cache.MaxTTL,
		c.Cache.MinTTL,
		c.Cache.Timeout,
		c.Cache.InitialBackoff,
	} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return nil, err
		}
	}

	// Overrides por env
	c.applyEnvOverrides()

	return &c, nil
}

// Dur parsea una duración ya validada en Load. Para strings vacíos retorna 0.
func Dur(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, _ := time.ParseDuration(s)
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_IDLE_CONNS"); ok {
		c.Storage.Postgres.MaxIdleConns = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvInt("CACHE_RECORD_LIMIT"); ok {
		c.Cache.RecordLimit = v
	}
	if v, ok := getEnvInt("CACHE_MAX_PENDING"); ok {
		c.Cache.MaxPending = v
	}
	if v, ok := getEnvInt("CACHE_MAX_CONNECT_RETRIES"); ok {
		c.Cache.MaxConnectRetries = v
	}
}
