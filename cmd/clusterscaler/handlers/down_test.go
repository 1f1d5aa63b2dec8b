package handlers

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/clusterscaler/internal/provider/fake"
	"github.com/imamik/clusterscaler/internal/util/labels"
)

func TestDown(t *testing.T) {
	tests := []struct {
		name        string
		includeHead bool
		wantLeft    int
		wantOutput  string
	}{
		{name: "workers only", includeHead: false, wantLeft: 1, wantOutput: "Terminated 2 node(s) of cluster cli-test"},
		{name: "all nodes", includeHead: true, wantLeft: 0, wantOutput: "Terminated 3 node(s) of cluster cli-test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := fake.New(fake.Options{})
			p.AddNode(nodeTags(labels.RoleHead, "head"))
			p.AddNode(nodeTags(labels.RoleWorker, "cpu"))
			p.AddNode(nodeTags(labels.RoleWorker, "cpu"))
			other := p.AddNode(labels.NewLabelBuilder("other").WithRole(labels.RoleWorker).Build())
			useProvider(t, p)

			var out bytes.Buffer
			require.NoError(t, Down(context.Background(), Options{ConfigPath: writeConfig(t, testDoc)}, tt.includeHead, &out))

			assert.Contains(t, out.String(), tt.wantOutput)
			assert.Equal(t, tt.wantLeft, p.Count(labels.ClusterFilter("cli-test")))
			_, ok := p.Node(other)
			assert.True(t, ok, "nodes of other clusters are kept")
		})
	}
}
