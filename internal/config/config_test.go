package config

import (
	"strings"
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("ADMIN_TOKEN", "admin-token-0123456789")
}

func TestFromEnvDefaults(t *testing.T) {
	setBaseEnv(t)
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.DBDriver != "postgres" {
		t.Errorf("DBDriver = %q, want %q", cfg.DBDriver, "postgres")
	}
	if cfg.EstimationMaxIterations != 150 {
		t.Errorf("EstimationMaxIterations = %d, want 150", cfg.EstimationMaxIterations)
	}
	if cfg.EstimationInterval != 0 {
		t.Errorf("EstimationInterval = %v, want 0", cfg.EstimationInterval)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:mmogame.db")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("ESTIMATION_INTERVAL", "15m")
	t.Setenv("ESTIMATION_MAX_ITERATIONS", "300")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v, want 2 trimmed origins", cfg.AllowedOrigins)
	}
	if cfg.EstimationInterval != 15*time.Minute {
		t.Errorf("EstimationInterval = %v, want 15m", cfg.EstimationInterval)
	}
	if cfg.EstimationMaxIterations != 300 {
		t.Errorf("EstimationMaxIterations = %d, want 300", cfg.EstimationMaxIterations)
	}
}

func TestFromEnvInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"bad driver", "DB_DRIVER", "mysql", "DBDriver"},
		{"short secret", "JWT_SECRET", "short", "JWTSecret"},
		{"bad interval", "ESTIMATION_INTERVAL", "often", "ESTIMATION_INTERVAL"},
		{"bad iterations", "ESTIMATION_MAX_ITERATIONS", "many", "ESTIMATION_MAX_ITERATIONS"},
		{"zero iterations", "ESTIMATION_MAX_ITERATIONS", "0", "EstimationMaxIterations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := FromEnv()
			if err == nil {
				t.Fatalf("FromEnv() with %s=%q succeeded, want error", tt.key, tt.val)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("FromEnv() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}
