package app_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/msomdec/persist/internal/app"
	"github.com/msomdec/persist/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(map[string]string{
		"PORT":                  "0",
		"DATABASE_PATH":         filepath.Join(t.TempDir(), "persist.db"),
		"DATABASE_DRIVER":       driver,
		"JWT_SECRET":            "server-test-secret-0123456789abcdef",
		"PERSIST_REAP_INTERVAL": "50ms",
	})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate(true))
	return cfg
}

func TestServer_EndToEnd(t *testing.T) {
	for _, driver := range []string{config.DriverSQL, config.DriverGorm} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			srv, err := app.NewServer(ctx, testConfig(t, driver), nil)
			require.NoError(t, err)
			require.NoError(t, srv.Start(ctx))
			t.Cleanup(func() {
				shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				assert.NoError(t, srv.Shutdown(shutdownCtx))
			})

			base := "http://" + srv.Addr().String()
			token, err := srv.Tokens.Issue("e2e")
			require.NoError(t, err)

			call := func(method, path, body string) (int, string) {
				var reader io.Reader
				if body != "" {
					reader = strings.NewReader(body)
				}
				req, err := http.NewRequest(method, base+path, reader)
				require.NoError(t, err)
				req.Header.Set("Authorization", "Bearer "+token)
				resp, err := http.DefaultClient.Do(req)
				require.NoError(t, err)
				defer resp.Body.Close()
				data, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				return resp.StatusCode, string(data)
			}

			status, _ := call(http.MethodGet, "/healthz", "")
			assert.Equal(t, http.StatusOK, status)

			status, _ = call(http.MethodPut, "/api/cache/session", `{"value":{"user":7},"expiresIn":"500ms"}`)
			require.Equal(t, http.StatusOK, status)

			status, body := call(http.MethodGet, "/api/cache/session", "")
			require.Equal(t, http.StatusOK, status)
			assert.Contains(t, body, `"user":7`)

			// Only the reaper tidies here, so the removal counter proves it ran.
			require.Eventually(t, func() bool {
				status, body := call(http.MethodGet, "/metrics", "")
				return status == http.StatusOK && strings.Contains(body, "persist_reaper_removed_records_total 1")
			}, 3*time.Second, 25*time.Millisecond)

			status, _ = call(http.MethodGet, "/api/cache/session", "")
			assert.Equal(t, http.StatusNotFound, status)

			status, body = call(http.MethodGet, "/metrics", "")
			require.Equal(t, http.StatusOK, status)
			assert.Contains(t, body, `go_sql_open_connections{db_name="persist"}`)
		})
	}
}

func TestServer_AuthRequiredWithoutSecret(t *testing.T) {
	cfg := testConfig(t, config.DriverSQL)
	cfg.Auth.JWTSecret = ""

	_, err := app.NewServer(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestServer_StartFailsOnBusyPort(t *testing.T) {
	ctx := context.Background()
	first, err := app.NewServer(ctx, testConfig(t, config.DriverSQL), nil)
	require.NoError(t, err)
	require.NoError(t, first.Start(ctx))
	defer first.Shutdown(ctx)

	cfg := testConfig(t, config.DriverSQL)
	cfg.Server.Port = strconv.Itoa(first.Addr().(*net.TCPAddr).Port)

	second, err := app.NewServer(ctx, cfg, nil)
	require.NoError(t, err)
	err = second.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start http")
}

func TestNewRecordStore_UnknownDriver(t *testing.T) {
	db, err := app.OpenAndMigrate(context.Background(), config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "persist.db"),
	})
	require.NoError(t, err)
	defer db.Close()

	_, err = app.NewRecordStore(db, "bolt", nil)
	require.Error(t, err)
}
