package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/imamik/clusterscaler/internal/autoscaler"
	"github.com/imamik/clusterscaler/internal/state"
)

func TestRenderSummary_Plain(t *testing.T) {
	t.Parallel()
	out := renderSummary(testSummary(), false)

	assert.Contains(t, out, "Last tick:  2024-01-01T12:00:00Z")
	assert.Contains(t, out, "Node Types")
	assert.Contains(t, out, "Recent Failures")
	assert.NotContains(t, out, "\x1b[", "plain output has no escape codes")
}

func TestRenderSummary_NeverTicked(t *testing.T) {
	t.Parallel()
	out := renderSummary(autoscaler.Summary{Cluster: "c", Provider: "fake", ConsecutiveFailures: 2}, false)
	assert.Contains(t, out, "Last tick:  never")
	assert.Contains(t, out, "Failed ticks in a row: 2")
	assert.NotContains(t, out, "Recent Failures")
}

func TestTypeStyle(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		ts   autoscaler.TypeSummary
		want string
	}{
		{name: "below floor", ts: autoscaler.TypeSummary{Floor: 2, Target: 2, Counts: map[state.Status]int{state.StatusUp: 1}}, want: "red"},
		{name: "scaling", ts: autoscaler.TypeSummary{Floor: 1, Target: 3, Counts: map[state.Status]int{state.StatusUp: 2}}, want: "yellow"},
		{name: "pending launch", ts: autoscaler.TypeSummary{Floor: 1, Target: 1, Pending: 1, Counts: map[state.Status]int{state.StatusIdle: 1}}, want: "yellow"},
		{name: "at target", ts: autoscaler.TypeSummary{Floor: 1, Target: 2, Counts: map[state.Status]int{state.StatusUp: 1, state.StatusIdle: 1}}, want: "green"},
	}
	styles := map[string]any{"red": redStyle, "yellow": yellowStyle, "green": greenStyle}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, styles[tt.want], typeStyle(tt.ts))
		})
	}
}

func TestRenderDecision(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		out := renderDecision("demo", autoscaler.Decision{}, false)
		assert.Contains(t, out, "nothing to do")
	})

	t.Run("actions", func(t *testing.T) {
		t.Parallel()
		out := renderDecision("demo", autoscaler.Decision{
			Actions: []autoscaler.Action{
				{Kind: autoscaler.ActionLaunch, NodeType: "cpu", Count: 2},
				{Kind: autoscaler.ActionTerminate, NodeType: "cpu", NodeID: "fake-3", Reason: autoscaler.ReasonIdle},
			},
			Throttled: true,
		}, false)
		assert.Contains(t, out, "+ launch    cpu")
		assert.Contains(t, out, "x2")
		assert.Contains(t, out, "- terminate cpu")
		assert.Contains(t, out, "fake-3 (idle)")
		assert.Contains(t, out, "throttled")
		assert.NotContains(t, out, "nothing to do")
	})
}
