package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFlags(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		wantFlags   map[string]bool
		wantIgnored []string
	}{
		{name: "empty column", data: ""},
		{name: "json null", data: "null"},
		{name: "empty object", data: "{}", wantFlags: map[string]bool{}},
		{
			name:      "booleans",
			data:      `{"spam_detection": true, "export": false}`,
			wantFlags: map[string]bool{"spam_detection": true, "export": false},
		},
		{
			name:        "non-boolean values are ignored",
			data:        `{"spam_detection": "yes", "export": 1, "beta": null, "reports": true}`,
			wantFlags:   map[string]bool{"reports": true},
			wantIgnored: []string{"beta", "export", "spam_detection"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var data []byte
			if tt.data != "" {
				data = []byte(tt.data)
			}
			flags, ignored, err := decodeFlags(data)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFlags, flags)
			assert.Equal(t, tt.wantIgnored, ignored)
		})
	}
}

func TestDecodeFlags_NotAnObject(t *testing.T) {
	_, _, err := decodeFlags([]byte(`["spam_detection"]`))
	assert.Error(t, err)
}
