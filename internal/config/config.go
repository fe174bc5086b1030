package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		BaseURL            string   `yaml:"base_url"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		// memory | postgres
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Session struct {
		CookieName string `yaml:"cookie_name"`
		Domain     string `yaml:"domain"`
		SameSite   string `yaml:"samesite"`
		Secure     bool   `yaml:"secure"`
		TTL        string `yaml:"ttl"`
		Issuer     string `yaml:"issuer"`
		// SigningKey es la seed ed25519 en base64 (32 bytes).
		// Si está vacía se genera una efímera (solo dev).
		SigningKey string `yaml:"signing_key"`
	} `yaml:"session"`

	Auth struct {
		// StateTTL acota la ventana entre start y callback.
		StateTTL string `yaml:"state_ttl"`
		// LoginRateMax/LoginRateWindow limitan intentos de login por IP.
		// Max en 0 deshabilita el límite.
		LoginRateMax    int    `yaml:"login_rate_max"`
		LoginRateWindow string `yaml:"login_rate_window"`
	} `yaml:"auth"`

	ATProto struct {
		// ServiceURL es la base del servicio ATProto (PDS/entryway).
		ServiceURL  string `yaml:"service_url"`
		ClientID    string `yaml:"client_id"`
		RedirectURL string `yaml:"redirect_url"` // si vacío => <base_url>/auth/callback
	} `yaml:"atproto"`

	GitHub struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		RedirectURL  string `yaml:"redirect_url"`
	} `yaml:"github"`

	Admin struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"admin"`

	Security struct {
		// SecretBoxMasterKey cifra los tokens de GitHub en reposo.
		// base64(32 bytes) => AES-256-GCM.
		SecretBoxMasterKey string `yaml:"secretbox_master_key"`
	} `yaml:"security"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "atdock_session"
	}
	if c.Session.SameSite == "" {
		c.Session.SameSite = "Lax"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "12h"
	}
	if c.Session.Issuer == "" {
		c.Session.Issuer = c.Server.BaseURL
	}
	if c.Auth.StateTTL == "" {
		c.Auth.StateTTL = "10m"
	}
	if c.Auth.LoginRateWindow == "" {
		c.Auth.LoginRateWindow = "1m"
	}
	if c.ATProto.ServiceURL == "" {
		c.ATProto.ServiceURL = "https://bsky.social"
	}

	// validate string durations
	for _, d := range []string{c.Session.TTL, c.Auth.StateTTL, c.Auth.LoginRateWindow, c.Storage.Postgres.ConnMaxLifetime} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return nil, fmt.Errorf("config: invalid duration %q: %w", d, err)
		}
	}

	c.applyEnvOverrides()

	// Redirect URLs autogeneradas desde base_url si faltan
	if c.ATProto.RedirectURL == "" && c.Server.BaseURL != "" {
		c.ATProto.RedirectURL = strings.TrimRight(c.Server.BaseURL, "/") + "/auth/callback"
	}
	if c.GitHub.RedirectURL == "" && c.Server.BaseURL != "" {
		c.GitHub.RedirectURL = strings.TrimRight(c.Server.BaseURL, "/") + "/github/callback"
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// applyEnvOverrides permite pisar valores sensibles por variables de entorno,
// para no tener secretos en el YAML.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("ATDOCK_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("ATDOCK_BASE_URL"); ok {
		c.Server.BaseURL = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("SESSION_SIGNING_KEY"); ok {
		c.Session.SigningKey = v
	}
	if v, ok := getEnvStr("GITHUB_CLIENT_ID"); ok {
		c.GitHub.ClientID = v
	}
	if v, ok := getEnvStr("GITHUB_CLIENT_SECRET"); ok {
		c.GitHub.ClientSecret = v
	}
	if v, ok := getEnvStr("ATPROTO_SERVICE_URL"); ok {
		c.ATProto.ServiceURL = v
	}
	if v, ok := getEnvStr("ATPROTO_CLIENT_ID"); ok {
		c.ATProto.ClientID = v
	}
	if v, ok := getEnvStr("ADMIN_API_KEY"); ok {
		c.Admin.APIKey = v
	}
	if v, ok := getEnvStr("SECRETBOX_MASTER_KEY"); ok {
		c.Security.SecretBoxMasterKey = v
	}
}

func (c *Config) validate() error {
	if strings.EqualFold(c.App.Env, "prod") {
		if c.Session.SigningKey == "" {
			return fmt.Errorf("config: session.signing_key is required in prod")
		}
		if c.Storage.Driver == "memory" {
			return fmt.Errorf("config: storage.driver memory is not allowed in prod")
		}
		if !c.Session.Secure {
			return fmt.Errorf("config: session.secure must be true in prod")
		}
	}
	if c.Storage.Driver == "postgres" {
		if c.Storage.DSN == "" {
			return fmt.Errorf("config: storage.dsn is required for postgres")
		}
		if c.Security.SecretBoxMasterKey == "" {
			return fmt.Errorf("config: security.secretbox_master_key is required for postgres")
		}
	}
	if c.Cache.Kind == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("config: cache.redis.addr is required for redis")
	}
	return nil
}

// SessionTTL retorna el TTL de sesión ya parseado.
func (c *Config) SessionTTL() time.Duration {
	d, _ := time.ParseDuration(c.Session.TTL)
	return d
}

// StateTTL retorna el TTL del authorization state ya parseado.
func (c *Config) StateTTL() time.Duration {
	d, _ := time.ParseDuration(c.Auth.StateTTL)
	return d
}

// LoginRateWindow retorna la ventana de rate limit de login ya parseada.
func (c *Config) LoginRateWindow() time.Duration {
	d, _ := time.ParseDuration(c.Auth.LoginRateWindow)
	return d
}

// PostgresConnMaxLifetime retorna la vida máxima de conexión ya parseada.
// Cero significa usar el default del pool.
func (c *Config) PostgresConnMaxLifetime() time.Duration {
	d, _ := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime)
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
