package handler

import (
	"errors"

	"main/middleware"
	"main/model"
	"main/usecase"
	"main/utils"

	"github.com/gin-gonic/gin"
)

// LogoutHandler closes the account's session. Idempotent: logging out an
// absent or already-closed session still reports "closed".
func LogoutHandler(c *gin.Context, sessionService *usecase.SessionService) {
	var req model.LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.TrackError("validation", "logout_bad_request")
		utils.BadRequest(c, "missing or invalid email")
		return
	}

	if err := sessionService.Logout(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, usecase.ErrInvalidAccount) {
			utils.BadRequest(c, "missing or invalid email")
			return
		}
		middleware.TrackError("store", "logout_failed")
		utils.InternalError(c, "session store unavailable")
		return
	}

	utils.Success(c, gin.H{"status": "closed"})
}
