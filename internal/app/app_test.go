package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"exercisetracker/internal/config"
	"exercisetracker/internal/models"
	"exercisetracker/internal/services"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func sqliteConfig(t *testing.T) config.Config {
	t.Helper()
	views := t.TempDir()
	public := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(views, "index.html"), []byte("<h1>Exercise tracker</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(public, "style.css"), []byte("body{}"), 0o644))

	return config.Config{
		Port:           "3000",
		DatabaseDriver: config.DriverSQLite,
		DatabaseURL:    ":memory:",
		LogLevel:       "info",
		LogFormat:      "text",
		ViewsDir:       views,
		PublicDir:      public,
	}
}

func TestOpenRepository_SQLite(t *testing.T) {
	repo, closeFn, err := OpenRepository(context.Background(), sqliteConfig(t), quietLogger())
	require.NoError(t, err)
	defer closeFn()

	ctx := context.Background()
	user := &models.User{Username: "alice"}
	require.NoError(t, repo.Create(ctx, user))

	found, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
}

func TestOpenRepository_UnsupportedDriver(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.DatabaseDriver = "mysql"

	_, _, err := OpenRepository(context.Background(), cfg, quietLogger())
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestNew_ServesAPIAndFrontEnd(t *testing.T) {
	a, err := New(context.Background(), sqliteConfig(t), quietLogger())
	require.NoError(t, err)
	defer a.Close()

	resp, err := a.Server.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "healthy", health["status"])

	resp, err = a.Server.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Exercise tracker")

	resp, err = a.Server.Test(httptest.NewRequest(http.MethodGet, "/style.css", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = a.Server.Test(httptest.NewRequest(http.MethodGet, "/api/users", nil), -1)
	require.NoError(t, err)
	var users []models.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&users))
	resp.Body.Close()
	assert.Empty(t, users)

	assert.NoError(t, a.Close())
}

func TestNewServer_CORS(t *testing.T) {
	repo, closeFn, err := OpenRepository(context.Background(), sqliteConfig(t), quietLogger())
	require.NoError(t, err)
	defer closeFn()

	log := quietLogger()
	server := NewServer(sqliteConfig(t), log, io.Discard, services.NewUserService(repo, nil, log))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Origin", "https://example.org")
	resp, err := server.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
