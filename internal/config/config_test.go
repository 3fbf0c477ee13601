package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/care")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ID_ENCRYPT_KEY", "0123456789abcdef")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_EXPIRES_MIN", "")

	cfg := Load()
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, 10080, cfg.JWTExpiresMin)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "./uploads", cfg.UploadDir)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "Production")
	t.Setenv("JWT_EXPIRES_MIN", "60")
	t.Setenv("UPLOAD_DIR", "/srv/uploads")

	cfg := Load()
	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, 60, cfg.JWTExpiresMin)
	assert.Equal(t, "/srv/uploads", cfg.UploadDir)
}

func TestLoad_MissingRequiredPanics(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "")

	assert.PanicsWithValue(t, "missing env: JWT_SECRET", func() { Load() })
}
