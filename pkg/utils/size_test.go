package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataSize(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
		wantErr  bool
	}{
		{"0", 0, false},
		{"1024", 1024, false},
		{"100B", 100, false},
		{"50KB", 50000, false},
		{"1.5KB", 1500, false},
		{"1K", 1024, false},
		{"50KiB", 51200, false},
		{"1MiB", 1048576, false},
		{" 2 MB ", 2000000, false},
		{"1gib", 1073741824, false},

		{"", 0, true},
		{"-5", 0, true},
		{"ten KB", 0, true},
		{"5XB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDataSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFormatDataSize(t *testing.T) {
	assert.Equal(t, "0 B", FormatDataSize(0))
	assert.Equal(t, "300 B", FormatDataSize(300))
	assert.Equal(t, "50 KB", FormatDataSize(50*1024))
	assert.Equal(t, "1.5 MB", FormatDataSize(1536*1024))
	assert.Equal(t, "invalid", FormatDataSize(-1))
}
