package utils

import (
	"fmt"
	"strings"

	ua "github.com/mileusna/useragent"
)

// DeviceLabel turns a User-Agent string into a short human-readable label
// stored alongside the authorized device, e.g. "Chrome on Windows (Desktop)".
// It is metadata only; authorization is decided by the device_id alone.
func DeviceLabel(userAgent string) string {
	if userAgent == "" {
		return "Unknown Client"
	}

	parsed := ua.Parse(userAgent)

	browser := parsed.Name
	if browser == "" {
		browser = "Unknown Browser"
	}
	osName := parsed.OS
	if osName == "" {
		osName = "Unknown OS"
	}

	device := "Desktop"
	if parsed.Mobile {
		device = "Mobile"
	} else if parsed.Tablet {
		device = "Tablet"
	}

	return fmt.Sprintf("%s on %s (%s)", strings.TrimSpace(browser), strings.TrimSpace(osName), device)
}
