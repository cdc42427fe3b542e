package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		n    int64
		want string
	}{
		{"zero", 0, "0 B"},
		{"bytes", 512, "512 B"},
		{"kilobytes", 1536, "1.5 KB"},
		{"megabytes", 10 << 20, "10.0 MB"},
		{"gigabytes", 3 << 29, "1.5 GB"},
		{"terabytes", 1 << 40, "1.0 TB"},
		{"negative clamps to zero", -5, "0 B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.n))
		})
	}
}
