package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_MODE", "insecure")
	t.Setenv("TRAVELTIES_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.True(t, cfg.Database.UseMemoryStore())
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, "@every 1m", cfg.Jobs.ClosePolls)
	assert.Equal(t, 24*time.Hour, cfg.Jobs.PendingUploadTTL)
	assert.False(t, cfg.S3.GalleryEnabled())
	assert.False(t, cfg.Stripe.PaymentsEnabled())
}

func TestLoadRequiresProjectIDForFirebase(t *testing.T) {
	t.Setenv("AUTH_MODE", "firebase")
	t.Setenv("FIREBASE_PROJECT_ID", "")
	t.Setenv("TRAVELTIES_CONFIG", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestApplyFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "travelties.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
s3:
  bucket: trip-photos
cors:
  allowed_origins: "https://app.travelties.io, https://travelties.io"
`), 0o600))

	t.Setenv("AUTH_MODE", "insecure")
	t.Setenv("TRAVELTIES_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.True(t, cfg.S3.GalleryEnabled())
	assert.Equal(t, []string{"https://app.travelties.io", "https://travelties.io"}, cfg.CORS.Origins())
	// untouched keys keep environment defaults
	assert.Equal(t, "us-east-1", cfg.S3.Region)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Server:   ServerConfig{Port: 0},
		Firebase: FirebaseConfig{AuthMode: "insecure"},
	}
	assert.Error(t, cfg.Validate())

	cfg.Server.Port = 8080
	assert.NoError(t, cfg.Validate())

	cfg.Firebase.AuthMode = "magic"
	assert.Error(t, cfg.Validate())

	cfg.Firebase.AuthMode = "insecure"
	cfg.RateLimit.Burst = -1
	assert.Error(t, cfg.Validate())
}
