package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Insecure default secrets that must never reach a release deployment.
var insecureDefaults = map[string]bool{
	"your-secret-key-change-in-production": true,
	"default-dev-secret":                   true,
	"admin-key":                            true,
	"":                                     true,
}

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Orchestrator OrchestratorConfig
	DNS          DNSConfig
	Platform     PlatformConfig
	Redis        RedisConfig
	Log          LogConfig
	AdminAPIKey  string
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MigrationsDir string
}

type JWTConfig struct {
	SecretKey string
}

// OrchestratorConfig points at the Portainer-compatible container
// orchestration API used to run customer stacks.
type OrchestratorConfig struct {
	URL          string
	Username     string
	Password     string
	EndpointName string
}

// DNSConfig points at the Cloudflare-compatible DNS provider. When Enabled
// is false the lifecycle manager skips all DNS calls.
type DNSConfig struct {
	Enabled  bool
	BaseURL  string
	APIToken string
	ZoneID   string
}

// PlatformConfig holds the network identity space handed out to bookings.
type PlatformConfig struct {
	BaseDomain     string
	ServerIP       string
	PortMin        int
	PortMax        int
	BookingTTLDays int
	ArtifactsDir   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() *Config {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8020"),
			Mode: getEnv("GIN_MODE", "release"),
		},
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "5432"),
			User:          getEnv("DB_USER", "booking_user"),
			Password:      getEnv("DB_PASSWORD", "booking_pass"),
			DBName:        getEnv("DB_NAME", "beyondfire_cloud"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "migrations"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", ""),
		},
		Orchestrator: OrchestratorConfig{
			URL:          getEnv("ORCHESTRATOR_URL", "http://localhost:9000"),
			Username:     getEnv("ORCHESTRATOR_USERNAME", ""),
			Password:     getEnv("ORCHESTRATOR_PASSWORD", ""),
			EndpointName: getEnv("ORCHESTRATOR_ENDPOINT", "local"),
		},
		DNS: DNSConfig{
			Enabled:  getEnvBool("DNS_ENABLED", false),
			BaseURL:  getEnv("DNS_API_URL", "https://api.cloudflare.com/client/v4"),
			APIToken: getEnv("DNS_API_TOKEN", ""),
			ZoneID:   getEnv("DNS_ZONE_ID", ""),
		},
		Platform: PlatformConfig{
			BaseDomain:     getEnv("PLATFORM_BASE_DOMAIN", "beyondfire.cloud"),
			ServerIP:       getEnv("PLATFORM_SERVER_IP", ""),
			PortMin:        getEnvInt("PLATFORM_PORT_MIN", 10000),
			PortMax:        getEnvInt("PLATFORM_PORT_MAX", 19999),
			BookingTTLDays: getEnvInt("PLATFORM_BOOKING_TTL_DAYS", 30),
			ArtifactsDir:   getEnv("PLATFORM_ARTIFACTS_DIR", "data/artifacts"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
	}

	return cfg
}

// Validate rejects configurations that would be unsafe or unusable in a
// release deployment.
func (c *Config) Validate() error {
	if c.Server.Mode == "release" {
		if insecureDefaults[c.JWT.SecretKey] {
			return fmt.Errorf("JWT_SECRET_KEY must be set to a secure value (current value is insecure or empty)")
		}
		if len(c.JWT.SecretKey) < 32 {
			return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long")
		}
		if insecureDefaults[c.AdminAPIKey] {
			return fmt.Errorf("ADMIN_API_KEY must be set to a secure value (current value is insecure or empty)")
		}
	}

	if c.Platform.PortMin < 1024 || c.Platform.PortMax > 65535 || c.Platform.PortMin >= c.Platform.PortMax {
		return fmt.Errorf("invalid booking port range %d-%d", c.Platform.PortMin, c.Platform.PortMax)
	}

	if c.DNS.Enabled {
		if c.DNS.APIToken == "" || c.DNS.ZoneID == "" {
			return fmt.Errorf("DNS_API_TOKEN and DNS_ZONE_ID are required when DNS_ENABLED=true")
		}
		if c.Platform.ServerIP == "" {
			return fmt.Errorf("PLATFORM_SERVER_IP is required when DNS_ENABLED=true")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
