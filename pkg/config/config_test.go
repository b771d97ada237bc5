package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.Equal(t, EnvDevelopment, cfg.Env)
	require.Equal(t, "/api/v1", cfg.APIPrefix)
	require.Equal(t, int64(5*1024*1024), cfg.Uploads.MaxFileSizeBytes)
	require.Len(t, cfg.Uploads.AllowedMIMEs, 5)
	require.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	require.Equal(t, 587, cfg.SMTP.Port)
	require.False(t, cfg.Cache.Enabled)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("CACHE_TTL", "90s")
	v.Set("UPLOADS_MAX_FILE_SIZE", 0)
	v.Set("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	v.Set("JWT_EXPIRATION", "not-a-duration")

	cfg := fromViper(v)
	require.Equal(t, 90*time.Second, cfg.Cache.TTL)
	require.Equal(t, int64(5*1024*1024), cfg.Uploads.MaxFileSizeBytes)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	require.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
}
