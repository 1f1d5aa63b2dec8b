package api

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/clusterscaler/internal/resources"
)

func TestClient(t *testing.T) {
	t.Parallel()
	r := newBackend(t)
	ts := httptest.NewServer(NewServer(context.Background(), r, Options{}).Handler())
	t.Cleanup(ts.Close)

	ctx := context.Background()
	c := NewClient(ts.URL)

	d, err := c.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Launches()["head"])
	r.Wait()

	floor, err := c.Scale(ctx, "cpu", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, floor)

	_, err = c.Scale(ctx, "gpu", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "node type not found")

	require.NoError(t, c.Report(ctx, ReportRequest{NodeID: "n1", Usage: resources.Vector{"CPU": 2}}))
	assert.Contains(t, r.Collector().Snapshot().Nodes, "n1")

	sum, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "api-test", sum.Cluster)
}

func TestNewClient_AddsScheme(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "http://localhost:8080", NewClient("localhost:8080").http.HostURL)
	assert.Equal(t, "https://scaler:443", NewClient("https://scaler:443").http.HostURL)
}
