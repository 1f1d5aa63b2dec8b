package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDelta(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    int
		wantErr string
	}{
		{in: "3", want: 3},
		{in: "+2", want: 2},
		{in: "-4", want: -4},
		{in: "0", wantErr: "must not be zero"},
		{in: "two", wantErr: "must be a signed integer"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := parseDelta(tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScale_Args(t *testing.T) {
	t.Parallel()
	cmd := Scale()
	assert.Error(t, cmd.Args(cmd, []string{"cpu"}))
	assert.NoError(t, cmd.Args(cmd, []string{"cpu", "2"}))
}
