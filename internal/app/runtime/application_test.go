package runtime

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelties/service_layer/internal/auth"
	"github.com/travelties/service_layer/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: 2 * time.Second,
		},
		Database:  config.DatabaseConfig{Driver: "postgres"},
		Logging:   config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"},
		Firebase:  config.FirebaseConfig{AuthMode: "insecure", AppDeepLink: "travelties://"},
		CORS:      config.CORSConfig{AllowedOrigins: "*"},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
	}
}

func TestNewApplicationFromConfigUsesMemoryStore(t *testing.T) {
	a, err := NewApplicationFromConfig(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Nil(t, a.db)
	assert.Nil(t, a.redis)
	assert.Equal(t, "127.0.0.1:8080", a.httpServer.Addr)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer dev:alice")
	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewApplicationFromConfigFailsOnBadDatabase(t *testing.T) {
	cfg := testConfig()
	cfg.Database.DSN = "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1"
	_, err := NewApplicationFromConfig(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open database")
}

func TestBuildVerifier(t *testing.T) {
	log := NewLogger(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"})

	_, insecure := buildVerifier(config.FirebaseConfig{AuthMode: "insecure"}, log).(auth.InsecureVerifier)
	assert.True(t, insecure)

	_, firebase := buildVerifier(config.FirebaseConfig{AuthMode: "firebase", ProjectID: "travelties"}, log).(*auth.FirebaseVerifier)
	assert.True(t, firebase)
}

func TestOpenDatabaseRequiresDSN(t *testing.T) {
	_, err := OpenDatabase(context.Background(), config.DatabaseConfig{Driver: "postgres"})
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	cfg := testConfig()
	cfg.Server.Port = port
	a, err := NewApplicationFromConfig(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.Server.Addr() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
