package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/clusterscaler/internal/autoscaler"
	"github.com/imamik/clusterscaler/internal/resources"
	"github.com/imamik/clusterscaler/internal/state"
)

type daemonMock struct {
	summary  autoscaler.Summary
	floor    int
	err      error
	addr     string
	nodeType string
	delta    int
}

func (m *daemonMock) Status(context.Context) (autoscaler.Summary, error) {
	return m.summary, m.err
}

func (m *daemonMock) Scale(_ context.Context, nodeType string, delta int) (int, error) {
	m.nodeType, m.delta = nodeType, delta
	return m.floor, m.err
}

func useDaemon(t *testing.T, m *daemonMock) {
	t.Helper()
	orig := newDaemonClient
	t.Cleanup(func() { newDaemonClient = orig })
	newDaemonClient = func(addr string) daemonClient {
		m.addr = addr
		return m
	}
}

func testSummary() autoscaler.Summary {
	return autoscaler.Summary{
		Cluster:  "cli-test",
		Provider: "fake",
		LastTick: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Types: []autoscaler.TypeSummary{
			{Name: "head", Head: true, Min: 1, Max: 1, Floor: 1, Target: 1, Counts: map[state.Status]int{state.StatusUp: 1}},
			{Name: "cpu", Min: 0, Max: 3, Floor: 2, Target: 3, Pending: 1, Counts: map[state.Status]int{state.StatusUp: 2}},
		},
		LastDecision: autoscaler.Decision{
			Infeasible: []resources.Demand{{Resources: resources.Vector{"TPU": 1}, Count: 2}},
		},
		Failures: []autoscaler.Failure{
			{NodeID: "fake-7", NodeType: "cpu", Step: "setup", Error: "exit status 1", At: time.Date(2024, 1, 1, 11, 59, 0, 0, time.UTC)},
		},
	}
}

func TestStatus(t *testing.T) {
	m := &daemonMock{summary: testSummary()}
	useDaemon(t, m)

	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, Status(context.Background(), "scaler:8080", false, &out))
		assert.Equal(t, "scaler:8080", m.addr)
		assert.Contains(t, out.String(), "clusterscaler: cli-test (fake)")
		assert.Contains(t, out.String(), "head (head)")
		assert.Contains(t, out.String(), "infeasible  2x")
		assert.Contains(t, out.String(), "fake-7")
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, Status(context.Background(), "scaler:8080", true, &out))
		var got autoscaler.Summary
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		assert.Equal(t, "cli-test", got.Cluster)
		assert.Len(t, got.Types, 2)
	})

	t.Run("daemon unreachable", func(t *testing.T) {
		m.err = errors.New("connection refused")
		defer func() { m.err = nil }()
		err := Status(context.Background(), "scaler:8080", false, &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get status")
	})
}

func TestScale(t *testing.T) {
	m := &daemonMock{floor: 3}
	useDaemon(t, m)

	var out bytes.Buffer
	require.NoError(t, Scale(context.Background(), ":8080", "cpu", 2, &out))
	assert.Equal(t, "cpu", m.nodeType)
	assert.Equal(t, 2, m.delta)
	assert.Equal(t, "Node type cpu now keeps at least 3 node(s)\n", out.String())

	m.err = errors.New("invalid scale request")
	err := Scale(context.Background(), ":8080", "head", 1, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to scale head")
}
