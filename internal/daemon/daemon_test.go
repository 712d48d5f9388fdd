package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stridefit/stride/internal/infra/cache"
	"github.com/stridefit/stride/internal/infra/memstore"
	"github.com/stridefit/stride/internal/infra/sqlite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(t *testing.T, driver string) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Storage.Driver = driver
	cfg.Storage.Dir = t.TempDir()
	cfg.API.RateLimit = 0
	// Without a TTL the expirable LRU starts no janitor goroutine.
	cfg.Storage.CacheTTL = Duration{}
	return cfg
}

func TestNewWithConfig_Drivers(t *testing.T) {
	ctx := context.Background()

	d, err := NewWithConfig(ctx, testConfig(t, DriverSQLite), nil)
	require.NoError(t, err)
	_, cached := d.Store.(*cache.Store)
	assert.True(t, cached, "sqlite store should sit behind the cache")
	require.NoError(t, d.Close())

	cfg := testConfig(t, DriverSQLite)
	cfg.Storage.CacheSize = 0
	d, err = NewWithConfig(ctx, cfg, nil)
	require.NoError(t, err)
	_, plain := d.Store.(*sqlite.DB)
	assert.True(t, plain)
	require.NoError(t, d.Close())

	d, err = NewWithConfig(ctx, testConfig(t, DriverMemory), nil)
	require.NoError(t, err)
	_, mem := d.Store.(*memstore.Store)
	assert.True(t, mem)
	require.NoError(t, d.Close())

	_, err = NewWithConfig(ctx, testConfig(t, "mongo"), nil)
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestServe_EndToEndAndShutdown(t *testing.T) {
	d, err := NewWithConfig(context.Background(), testConfig(t, DriverMemory), nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := fmt.Sprintf("http://%s", ln.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.serveListener(ctx, ln) }()

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Post(base+"/api/streak/u1/activity", "application/json", nil)
	require.NoError(t, err)
	var body struct {
		State struct {
			CurrentStreak int `json:"current_streak"`
		} `json:"state"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, body.State.CurrentStreak)

	resp, err = client.Get(base + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	client.CloseIdleConnections()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
	assert.Nil(t, d.Store)
}

func TestAddr(t *testing.T) {
	d := &Daemon{Config: DefaultConfig()}
	assert.Equal(t, "127.0.0.1:8420", d.Addr())
}
