package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AnTengye/contractdesk/model"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "CONTRACTDESK_"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Minio     MinioConfig     `yaml:"minio"`
	AI        AIConfig        `yaml:"ai"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Users     []User          `yaml:"users"`
}

type ServerConfig struct {
	Port                   int      `yaml:"port"`
	CORSAllowedOrigins     []string `yaml:"cors_allowed_origins"`
	ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
	SecureCookies          bool     `yaml:"secure_cookies"` // set behind TLS
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

// TokenTTL is how long issued tokens stay valid
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenExpireHours) * time.Hour
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StoreConfig tunes the in-memory store
type StoreConfig struct {
	LatencyMs  int    `yaml:"latency_ms"`
	JitterMs   int    `yaml:"jitter_ms"`
	MaxRecords int    `yaml:"max_records"`
	SeedFile   string `yaml:"seed_file"` // empty uses the embedded demo data
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

// Enabled reports whether file storage is configured
func (m MinioConfig) Enabled() bool {
	return m.Endpoint != ""
}

// AIConfig points at the hosted generative model used for summaries
type AIConfig struct {
	APIURL         string `yaml:"api_url"`
	APIToken       string `yaml:"api_token"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Enabled reports whether summaries can be generated
func (a AIConfig) Enabled() bool {
	return a.APIURL != ""
}

// RedisConfig is optional. Without an address token revocations stay in memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// User is a login known to the service. Either Password or PasswordHash
// (bcrypt) must be set.
type User struct {
	Email        string `yaml:"email"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
	DisplayName  string `yaml:"display_name"`
	Role         string `yaml:"role"`
	Organization string `yaml:"organization"`
	OrgRole      string `yaml:"org_role"`
}

// Identity converts u into the identity carried by its sessions
func (u *User) Identity() *model.Identity {
	role, _ := model.ParseRole(u.Role)
	orgRole, _ := model.ParseOrgRole(u.OrgRole)
	return &model.Identity{
		ID:           u.Email,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		Role:         role,
		Organization: u.Organization,
		OrgRole:      orgRole,
	}
}

// Load reads the YAML file at path, then applies .env and environment overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// .env is optional
	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.AI.APIURL, "AI_API_URL")
	setString(&c.AI.APIToken, "AI_API_TOKEN")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Log.Level, "LOG_LEVEL")
	if v := os.Getenv(EnvPrefix + "PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = 10
	}
	if len(c.Server.CORSAllowedOrigins) == 0 {
		c.Server.CORSAllowedOrigins = []string{"*"}
	}
	if c.Minio.Region == "" {
		c.Minio.Region = "us-east-1"
	}
	if c.Minio.ExpireDays == 0 {
		c.Minio.ExpireDays = 7
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.AI.TimeoutSeconds == 0 {
		c.AI.TimeoutSeconds = 60
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 10
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 20
	}
	for i := range c.Users {
		if c.Users[i].Role == "" {
			c.Users[i].Role = string(model.RoleUser)
		}
	}
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (or set %sJWT_SECRET)", EnvPrefix)
	}
	seen := make(map[string]bool, len(c.Users))
	for i, u := range c.Users {
		if u.Email == "" {
			return fmt.Errorf("users[%d]: email is required", i)
		}
		key := strings.ToLower(u.Email)
		if seen[key] {
			return fmt.Errorf("users[%d]: duplicate email %s", i, u.Email)
		}
		seen[key] = true
		if u.Password == "" && u.PasswordHash == "" {
			return fmt.Errorf("users[%d]: password or password_hash is required", i)
		}
		if _, err := model.ParseRole(u.Role); err != nil {
			return fmt.Errorf("users[%d]: %w", i, err)
		}
		if _, err := model.ParseOrgRole(u.OrgRole); err != nil {
			return fmt.Errorf("users[%d]: %w", i, err)
		}
	}
	return nil
}

// FindUser finds a user by email, ignoring case
func (c *Config) FindUser(email string) *User {
	for i := range c.Users {
		if strings.EqualFold(c.Users[i].Email, email) {
			return &c.Users[i]
		}
	}
	return nil
}
