package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Ping is the liveness probe endpoint.
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// Root identifies the running service.
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "triageops-controlplane",
	})
}
