package handler

import (
	"time"

	"main/utils"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// StatsHandler returns a lightweight operational snapshot.
func StatsHandler(c *gin.Context) {
	utils.Success(c, gin.H{
		"uptime_seconds": int64(time.Since(startTime).Seconds()),
		"cpu_percent":    utils.GetCPUUsage(),
		"memory_percent": utils.GetMemoryUsage(),
	})
}

// HealthHandler reports process health and durable-store reachability.
func HealthHandler(c *gin.Context) {
	store := "up"
	if err := utils.PingMongo(c.Request.Context()); err != nil {
		store = "down"
	}
	utils.Success(c, gin.H{
		"status": "ok",
		"store":  store,
	})
}
