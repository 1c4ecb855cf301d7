package model

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	DeviceID string `json:"device_id" binding:"required,deviceid"`
}

type HeartbeatRequest struct {
	Email    string `json:"email" binding:"required,email"`
	DeviceID string `json:"device_id" binding:"required,deviceid"`
}

type LogoutRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// CheckSessionQuery binds the GET query parameters for check-session.
type CheckSessionQuery struct {
	Email    string `form:"email" binding:"required,email"`
	DeviceID string `form:"device_id" binding:"required,deviceid"`
}
