package naming

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamingFunctions(t *testing.T) {
	t.Parallel()
	cluster := "test-cluster"

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Head", Head(cluster), "test-cluster-head"},
		{"StateObject", StateObject(cluster), "test-cluster/state.yaml"},
		{"StatePrefix", StatePrefix(cluster), "/clusterscaler/test-cluster/nodes/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

func TestNode(t *testing.T) {
	t.Parallel()
	pattern := regexp.MustCompile(`^demo-worker-small-[a-z0-9]{5}$`)

	name := Node("demo", "Worker.Small")
	assert.Regexp(t, pattern, name)
	assert.NotEqual(t, name, Node("demo", "Worker.Small"))
}

func TestSuffix(t *testing.T) {
	t.Parallel()
	assert.Len(t, Suffix(8), 8)
	assert.Regexp(t, `^[a-z0-9]*$`, Suffix(32))
}
