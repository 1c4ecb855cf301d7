package handler

import (
	"errors"

	"main/middleware"
	"main/model"
	"main/usecase"
	"main/utils"

	"github.com/gin-gonic/gin"
)

// HeartbeatHandler renews liveness for the authorized device. A displaced
// device gets "expired" and extends nothing.
func HeartbeatHandler(c *gin.Context, sessionService *usecase.SessionService) {
	var req model.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.TrackError("validation", "heartbeat_bad_request")
		utils.BadRequest(c, "missing or invalid email/device_id")
		return
	}

	result, err := sessionService.Heartbeat(c.Request.Context(), req.Email, req.DeviceID)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidAccount) || errors.Is(err, usecase.ErrInvalidDevice) {
			utils.BadRequest(c, "missing or invalid email/device_id")
			return
		}
		middleware.TrackError("store", "heartbeat_failed")
		utils.InternalError(c, "session store unavailable")
		return
	}

	middleware.HeartbeatsTotal.WithLabelValues(string(result)).Inc()
	utils.Success(c, gin.H{"status": result})
}
