package utils

import (
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// MinDeviceIDLength matches the device identifiers the desktop client
// generates (opaque, at least 6 characters).
const MinDeviceIDLength = 6

var Validate *validator.Validate

func InitValidator() {
	Validate = validator.New()
	Validate.RegisterValidation("deviceid", ValidateDeviceIDRule)
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("deviceid", ValidateDeviceIDRule)
	}
}

func ValidateDeviceIDRule(fl validator.FieldLevel) bool {
	return ValidateDeviceID(fl.Field().String())
}

// ValidateDeviceID is a sanity filter, not a security boundary: the device
// identifier is an opaque string; we only reject obviously broken values.
func ValidateDeviceID(deviceID string) bool {
	deviceID = strings.TrimSpace(deviceID)
	return len(deviceID) >= MinDeviceIDLength
}
