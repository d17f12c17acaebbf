package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

var allEnvVars = []string{
	"CONFIG_FILE",
	"HOST", "PORT", "READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT", "SHUTDOWN_TIMEOUT", "ENVIRONMENT",
	"DB_DRIVER", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSL_MODE", "SQLITE_PATH",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_CONN_MAX_IDLE_TIME",
	"MONGO_URI", "MONGO_DATABASE", "MONGO_TRANSACTIONS", "MONGO_CONNECT_TIMEOUT",
	"REDIS_ENABLED", "REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB", "REDIS_POOL_SIZE",
	"REDIS_MIN_IDLE_CONNS", "REDIS_MAX_RETRIES", "REDIS_DIAL_TIMEOUT", "REDIS_READ_TIMEOUT", "REDIS_WRITE_TIMEOUT",
	"WORKER_CONCURRENCY", "WORKER_POLL_INTERVAL", "WORKER_RETRY_BASE", "WORKER_JOB_TIMEOUT", "TOKEN_CLEANUP_INTERVAL",
	"JWT_SECRET", "ACCESS_TOKEN_TTL", "BCRYPT_COST",
	"RATE_LIMIT_ENABLED", "RATE_LIMIT_RPM", "RATE_LIMIT_BURST", "RATE_LIMIT_CLEANUP",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "SMTP_FROM", "FRONTEND_URL", "APP_NAME",
	"N8N_WEBHOOK_URL", "PLANNER_TIMEOUT", "PLANNER_BREAKER_MAX_FAILURES", "PLANNER_BREAKER_TIMEOUT",
	"REPORTS_TIMEZONE", "CORS_ORIGINS", "CORS_ALLOW_NO_ORIGIN", "LOG_LEVEL", "LOG_FORMAT",
}

func setEnvVars(vars map[string]string) {
	for k, v := range vars {
		os.Setenv(k, v)
	}
}

func clearEnvVars(vars []string) {
	for _, k := range vars {
		os.Unsetenv(k)
	}
}

func withEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	clearEnvVars(allEnvVars)
	setEnvVars(vars)
	t.Cleanup(func() { clearEnvVars(allEnvVars) })
}

func TestLoadConfig_Defaults(t *testing.T) {
	withEnv(t, nil)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error with default config, got: %v", err)
	}

	if config.Server.Port != "8080" {
		t.Errorf("Expected default port '8080', got %s", config.Server.Port)
	}

	if config.Server.Environment != "development" {
		t.Errorf("Expected default environment 'development', got %s", config.Server.Environment)
	}

	if config.Database.Driver != "postgres" {
		t.Errorf("Expected default driver 'postgres', got %s", config.Database.Driver)
	}

	if config.Database.Name != "scrumboard" {
		t.Errorf("Expected default DB name 'scrumboard', got %s", config.Database.Name)
	}

	if config.Database.MaxOpenConns != 25 {
		t.Errorf("Expected default max open conns 25, got %d", config.Database.MaxOpenConns)
	}

	if !config.Redis.Enabled {
		t.Error("Expected Redis to be enabled by default")
	}

	if config.Auth.AccessTokenTTL != 24*time.Hour {
		t.Errorf("Expected default access token TTL 24h, got %v", config.Auth.AccessTokenTTL)
	}

	if config.Planner.Timeout != 220*time.Second {
		t.Errorf("Expected planner timeout 220s, got %v", config.Planner.Timeout)
	}

	if config.Worker.TokenCleanupInterval != 5*time.Minute {
		t.Errorf("Expected token cleanup interval 5m, got %v", config.Worker.TokenCleanupInterval)
	}

	if !reflect.DeepEqual(config.CORS.AllowedOrigins, []string{"http://localhost:5173"}) {
		t.Errorf("Expected CORS origins to default to the frontend URL, got %v", config.CORS.AllowedOrigins)
	}

	if config.Log.Level != "info" {
		t.Errorf("Expected default log level 'info', got %s", config.Log.Level)
	}
}

func TestLoadConfig_CustomEnvironment(t *testing.T) {
	withEnv(t, map[string]string{
		"PORT":                   "9090",
		"DB_DRIVER":              "SQLite",
		"SQLITE_PATH":            "/tmp/board.db",
		"REDIS_ENABLED":          "false",
		"ACCESS_TOKEN_TTL":       "30m",
		"BCRYPT_COST":            "12",
		"FRONTEND_URL":           "https://board.example.com",
		"CORS_ORIGINS":           "https://a.example.com, https://b.example.com",
		"CORS_ALLOW_NO_ORIGIN":   "true",
		"N8N_WEBHOOK_URL":        "https://n8n.example.com/hook",
		"PLANNER_TIMEOUT":        "10s",
		"REPORTS_TIMEZONE":       "America/Bogota",
		"TOKEN_CLEANUP_INTERVAL": "1m",
		"SMTP_PORT":              "2525",
	})

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error with custom config, got: %v", err)
	}

	if config.Server.Port != "9090" {
		t.Errorf("Expected port '9090', got %s", config.Server.Port)
	}

	if config.Database.Driver != "sqlite" {
		t.Errorf("Expected driver 'sqlite', got %s", config.Database.Driver)
	}

	if config.GetDatabaseDSN() != "/tmp/board.db" {
		t.Errorf("Expected sqlite DSN to be the file path, got %s", config.GetDatabaseDSN())
	}

	if config.Redis.Enabled {
		t.Error("Expected Redis to be disabled")
	}

	if config.Auth.AccessTokenTTL != 30*time.Minute {
		t.Errorf("Expected access token TTL 30m, got %v", config.Auth.AccessTokenTTL)
	}

	if config.Auth.BCryptCost != 12 {
		t.Errorf("Expected bcrypt cost 12, got %d", config.Auth.BCryptCost)
	}

	expectedOrigins := []string{"https://a.example.com", "https://b.example.com"}
	if !reflect.DeepEqual(config.CORS.AllowedOrigins, expectedOrigins) {
		t.Errorf("Expected origins %v, got %v", expectedOrigins, config.CORS.AllowedOrigins)
	}

	if !config.CORS.AllowNoOrigin {
		t.Error("Expected requests without origin to be allowed")
	}

	if config.Planner.WebhookURL != "https://n8n.example.com/hook" || config.Planner.Timeout != 10*time.Second {
		t.Errorf("Unexpected planner config: %+v", config.Planner)
	}

	if config.Mail.Port != 2525 {
		t.Errorf("Expected SMTP port 2525, got %d", config.Mail.Port)
	}

	loc, err := config.Location()
	if err != nil || loc.String() != "America/Bogota" {
		t.Errorf("Expected America/Bogota location, got %v (%v)", loc, err)
	}
}

func TestLoadConfig_YAMLFileIsOverriddenByEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "7070"
  environment: staging
database:
  driver: mongo
mongo:
  uri: mongodb://db:27017
  transactions: true
planner:
  timeout: 45s
cors:
  allowed_origins:
    - https://yaml.example.com
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	withEnv(t, map[string]string{
		"CONFIG_FILE": path,
		"PORT":        "6060",
	})

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if config.Server.Port != "6060" {
		t.Errorf("Expected env port to win, got %s", config.Server.Port)
	}

	if config.Server.Environment != "staging" {
		t.Errorf("Expected environment from file, got %s", config.Server.Environment)
	}

	if config.Database.Driver != "mongo" || config.Mongo.URI != "mongodb://db:27017" || !config.Mongo.Transactions {
		t.Errorf("Unexpected store config: %+v %+v", config.Database, config.Mongo)
	}

	if config.Planner.Timeout != 45*time.Second {
		t.Errorf("Expected planner timeout 45s from file, got %v", config.Planner.Timeout)
	}

	if config.Redis.Port != "6379" {
		t.Errorf("Expected untouched defaults to survive, got Redis port %s", config.Redis.Port)
	}

	if !reflect.DeepEqual(config.CORS.AllowedOrigins, []string{"https://yaml.example.com"}) {
		t.Errorf("Unexpected origins %v", config.CORS.AllowedOrigins)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	withEnv(t, map[string]string{"CONFIG_FILE": filepath.Join(t.TempDir(), "missing.yaml")})

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadConfig_ProductionValidation(t *testing.T) {
	withEnv(t, map[string]string{
		"ENVIRONMENT": "production",
		"JWT_SECRET":  "secure-jwt-secret",
	})

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("Expected error for missing database password in production")
	}

	if err.Error() != "database password is required in production" {
		t.Errorf("Expected specific error message, got: %v", err)
	}
}

func TestLoadConfig_ProductionJWTValidation(t *testing.T) {
	withEnv(t, map[string]string{
		"ENVIRONMENT": "production",
		"DB_PASSWORD": "secure-db-password",
	})

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("Expected error for default JWT secret in production")
	}

	if err.Error() != "JWT secret must be set in production" {
		t.Errorf("Expected specific error message, got: %v", err)
	}
}

func TestConfigValidation_EdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		hasError bool
	}{
		{
			name: "Production with all required fields",
			envVars: map[string]string{
				"ENVIRONMENT": "production",
				"DB_PASSWORD": "secure-password",
				"JWT_SECRET":  "secure-jwt-secret",
			},
		},
		{
			name: "Production on sqlite needs no DB password",
			envVars: map[string]string{
				"ENVIRONMENT": "production",
				"DB_DRIVER":   "sqlite",
				"JWT_SECRET":  "secure-jwt-secret",
			},
		},
		{
			name:     "Unknown driver",
			envVars:  map[string]string{"DB_DRIVER": "oracle"},
			hasError: true,
		},
		{
			name:     "Unknown timezone",
			envVars:  map[string]string{"REPORTS_TIMEZONE": "Mars/Olympus"},
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, tt.envVars)

			config, err := LoadConfig()
			if tt.hasError {
				if err == nil {
					t.Error("Expected error, but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
			if config == nil {
				t.Error("Expected config to be loaded")
			}
		})
	}
}

func TestConfig_GetDatabaseDSN(t *testing.T) {
	config := &Config{
		Database: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     "5432",
			User:     "testuser",
			Password: "testpass",
			Name:     "testdb",
			SSLMode:  "require",
		},
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=require"
	actual := config.GetDatabaseDSN()

	if actual != expected {
		t.Errorf("Expected DSN '%s', got '%s'", expected, actual)
	}
}

func TestConfig_GetRedisAddr(t *testing.T) {
	config := &Config{Redis: RedisConfig{Host: "redis.example.com", Port: "6380"}}

	if actual := config.GetRedisAddr(); actual != "redis.example.com:6380" {
		t.Errorf("Expected Redis addr 'redis.example.com:6380', got '%s'", actual)
	}
}

func TestConfig_GetServerAddr(t *testing.T) {
	config := &Config{Server: ServerConfig{Host: "0.0.0.0", Port: "9000"}}

	if actual := config.GetServerAddr(); actual != "0.0.0.0:9000" {
		t.Errorf("Expected server addr '0.0.0.0:9000', got '%s'", actual)
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		environment string
		expected    bool
	}{
		{"production", true},
		{"development", false},
		{"staging", false},
		{"", false},
	}

	for _, test := range tests {
		config := &Config{Server: ServerConfig{Environment: test.environment}}

		if actual := config.IsProduction(); actual != test.expected {
			t.Errorf("For environment '%s', expected IsProduction() = %v, got %v",
				test.environment, test.expected, actual)
		}
	}
}

func TestGetEnvHelpers(t *testing.T) {
	clearEnvVars([]string{"TEST_INT", "TEST_BOOL", "TEST_DURATION", "TEST_LIST"})
	defer clearEnvVars([]string{"TEST_INT", "TEST_BOOL", "TEST_DURATION", "TEST_LIST"})

	if getEnvAsInt("TEST_INT", 7) != 7 {
		t.Error("Expected default int when unset")
	}
	os.Setenv("TEST_INT", "not-a-number")
	if getEnvAsInt("TEST_INT", 7) != 7 {
		t.Error("Expected default int for invalid value")
	}
	os.Setenv("TEST_INT", "42")
	if getEnvAsInt("TEST_INT", 7) != 42 {
		t.Error("Expected parsed int")
	}

	os.Setenv("TEST_BOOL", "yes")
	if getEnvAsBool("TEST_BOOL", true) != true {
		t.Error("Expected default bool for invalid value")
	}
	os.Setenv("TEST_BOOL", "false")
	if getEnvAsBool("TEST_BOOL", true) != false {
		t.Error("Expected parsed bool")
	}

	os.Setenv("TEST_DURATION", "90s")
	if getEnvAsDuration("TEST_DURATION", time.Second) != 90*time.Second {
		t.Error("Expected parsed duration")
	}

	os.Setenv("TEST_LIST", " a, ,b ")
	if got := getEnvAsList("TEST_LIST", nil); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Expected [a b], got %v", got)
	}
}

func BenchmarkLoadConfig(b *testing.B) {
	envVars := map[string]string{
		"ENVIRONMENT": "production",
		"DB_PASSWORD": "password",
		"JWT_SECRET":  "secret",
	}
	setEnvVars(envVars)
	defer clearEnvVars([]string{"ENVIRONMENT", "DB_PASSWORD", "JWT_SECRET"})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := LoadConfig(); err != nil {
			b.Fatalf("Failed to load config: %v", err)
		}
	}
}
