package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BearBump/zapshift/config"
	"github.com/BearBump/zapshift/internal/integrations/payments/fake"
	"github.com/BearBump/zapshift/internal/services/reconciler"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWorkerRouter_OpsEndpoints(t *testing.T) {
	rc := reconciler.New(&fakeRepo{}, fake.New(), noopProducer{}, nil, "t")
	cfg := &config.Config{
		Worker:   config.WorkerConfig{BatchSize: 5},
		Payments: config.PaymentsConfig{Provider: "fake", StripeSecretKey: "sk_secret"},
	}
	h := workerRouter(workerHTTPOpts{reconciler: rc, cfg: cfg})

	get := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec
	}

	rec := get(http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = get(http.MethodPost, "/trigger")
	require.JSONEq(t, `{"triggered":true}`, rec.Body.String())

	rec = get(http.MethodGet, "/stats")
	var st reconciler.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.NotNil(t, st.LastTriggerAt)

	rec = get(http.MethodGet, "/config")
	require.Contains(t, rec.Body.String(), `"batchSize":5`)
	require.NotContains(t, rec.Body.String(), "sk_secret")

	rec = get(http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "reconciler_claimed_total 0")

	rec = get(http.MethodGet, "/swagger.json")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWorkerRouter_NotWired(t *testing.T) {
	h := workerRouter(workerHTTPOpts{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.JSONEq(t, `{"error":"reconciler not wired"}`, rec.Body.String())
}

func TestRunWorkerHTTPServer_SwaggerServed(t *testing.T) {
	dir := t.TempDir()
	sw := filepath.Join(dir, "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    "127.0.0.1:0",
			swaggerPath: sw,
			onListen:    func(addr string) { addrCh <- addr },
		}, zerolog.Nop())
	}()

	addr := <-addrCh
	var resp *http.Response
	var err error
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + addr + "/swagger.json")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), `"swagger"`)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting worker http server to stop")
	}
}
