package resources

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector_Fits(t *testing.T) {
	t.Parallel()
	node := Vector{"CPU": 4, "memory": 16}

	tests := []struct {
		name    string
		request Vector
		want    bool
	}{
		{"exact", Vector{"CPU": 4, "memory": 16}, true},
		{"smaller", Vector{"CPU": 1}, true},
		{"too much cpu", Vector{"CPU": 5}, false},
		{"unknown resource", Vector{"GPU": 1}, false},
		{"zero unknown resource", Vector{"GPU": 0}, true},
		{"empty", Vector{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, node.Fits(tt.request))
		})
	}
}

func TestVector_SubAdd(t *testing.T) {
	t.Parallel()
	v := Vector{"CPU": 4}
	v.Sub(Vector{"CPU": 1, "GPU": 1})
	assert.Equal(t, Vector{"CPU": 3, "GPU": -1}, v)

	v.Add(Vector{"GPU": 1})
	assert.Equal(t, Vector{"CPU": 3, "GPU": 0}, v)
	assert.False(t, v.IsZero())
	assert.True(t, Vector{"CPU": 0}.IsZero())
}

func TestVector_Clone(t *testing.T) {
	t.Parallel()
	orig := Vector{"CPU": 1}
	c := orig.Clone()
	c["CPU"] = 2
	assert.Equal(t, 1.0, orig["CPU"])
	assert.NotNil(t, Vector(nil).Clone())
}

func TestVector_Validate(t *testing.T) {
	t.Parallel()
	require.NoError(t, Vector{"CPU": 1, "memory": 0}.Validate())
	assert.Error(t, Vector{"CPU": -1}.Validate())
	assert.Error(t, Vector{"CPU": math.NaN()}.Validate())
	assert.Error(t, Vector{"CPU": math.Inf(1)}.Validate())
}

func TestVector_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "{CPU: 2, GPU: 0.5}", Vector{"GPU": 0.5, "CPU": 2}.String())
}

func TestNodesNeeded(t *testing.T) {
	t.Parallel()
	capacity := Vector{"CPU": 4, "memory": 8}

	tests := []struct {
		name    string
		request Vector
		count   int
		want    int
	}{
		{"zero count", Vector{"CPU": 1}, 0, 0},
		{"one fits", Vector{"CPU": 1}, 1, 1},
		{"four per node", Vector{"CPU": 1}, 4, 1},
		{"ceil", Vector{"CPU": 1}, 5, 2},
		{"memory bound", Vector{"CPU": 1, "memory": 4}, 5, 3},
		{"does not fit", Vector{"CPU": 8}, 1, -1},
		{"fractional", Vector{"CPU": 0.5}, 9, 2},
		{"empty request", Vector{}, 10, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NodesNeeded(capacity, tt.request, tt.count))
		})
	}
}

func TestCompact(t *testing.T) {
	t.Parallel()
	flat := []Vector{{"CPU": 1}, {"GPU": 1}, {"CPU": 1}}

	assert.Equal(t, []Demand{
		{Resources: Vector{"CPU": 1}, Count: 2},
		{Resources: Vector{"GPU": 1}, Count: 1},
	}, Compact(flat))
}
