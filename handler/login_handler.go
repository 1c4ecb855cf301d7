package handler

import (
	"errors"

	"main/middleware"
	"main/model"
	"main/usecase"
	"main/utils"

	"github.com/gin-gonic/gin"
)

// LoginHandler authorizes a device for an account. A login from a second
// device displaces the first; the response names the displaced device so the
// client can tell the user what happened.
func LoginHandler(c *gin.Context, sessionService *usecase.SessionService) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.TrackError("validation", "login_bad_request")
		utils.BadRequest(c, "missing or invalid email/device_id")
		return
	}

	deviceInfo := utils.DeviceLabel(c.Request.UserAgent())

	result, err := sessionService.Login(c.Request.Context(), req.Email, req.DeviceID, deviceInfo)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidAccount) || errors.Is(err, usecase.ErrInvalidDevice) {
			middleware.TrackError("validation", "login_invalid_field")
			utils.BadRequest(c, "missing or invalid email/device_id")
			return
		}
		middleware.TrackError("store", "login_failed")
		utils.InternalError(c, "session store unavailable")
		return
	}

	middleware.LoginsTotal.WithLabelValues(string(result.Outcome)).Inc()

	resp := gin.H{"status": "ok"}
	if result.Outcome == usecase.OutcomeTakeover {
		resp["takeover_from"] = result.PreviousDeviceID
	}
	utils.Success(c, resp)
}
