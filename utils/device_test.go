package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceLabel(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      string
	}{
		{
			name:      "chrome on windows",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/92.0.4515.131 Safari/537.36",
			want:      "Chrome on Windows (Desktop)",
		},
		{
			name:      "safari on iphone",
			userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 14_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0.3 Mobile/15E148 Safari/604.1",
			want:      "Safari on iOS (Mobile)",
		},
		{
			name:      "empty user agent",
			userAgent: "",
			want:      "Unknown Client",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeviceLabel(tt.userAgent))
		})
	}
}
