package handler

import (
	"errors"

	"main/middleware"
	"main/model"
	"main/usecase"
	"main/utils"

	"github.com/gin-gonic/gin"
)

// CheckSessionHandler reports whether the calling device still holds the
// account's license: valid, expired, force_closed, transferred or invalid.
func CheckSessionHandler(c *gin.Context, sessionService *usecase.SessionService) {
	var query model.CheckSessionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.TrackError("validation", "check_missing_params")
		utils.BadRequest(c, "missing params")
		return
	}

	status, err := sessionService.CheckSession(c.Request.Context(), query.Email, query.DeviceID)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidAccount) || errors.Is(err, usecase.ErrInvalidDevice) {
			utils.BadRequest(c, "missing params")
			return
		}
		middleware.TrackError("store", "check_failed")
		utils.InternalError(c, "session store unavailable")
		return
	}

	middleware.CheckSessionsTotal.WithLabelValues(string(status)).Inc()
	utils.Success(c, gin.H{"status": status})
}
