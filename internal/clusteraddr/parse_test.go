package clusteraddr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{
			name: "single address",
			raw:  "127.0.0.1:9848",
			want: []string{"127.0.0.1:9848"},
		},
		{
			name: "multiple addresses with spaces",
			raw:  "10.0.0.1:9848, 10.0.0.2:9848 ,10.0.0.3:9848",
			want: []string{"10.0.0.1:9848", "10.0.0.2:9848", "10.0.0.3:9848"},
		},
		{
			name:    "empty string",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "missing port",
			raw:     "127.0.0.1",
			wantErr: true,
		},
		{
			name:    "port out of range",
			raw:     "127.0.0.1:70000",
			wantErr: true,
		},
		{
			name:    "non-numeric port",
			raw:     "127.0.0.1:abc",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
