// Package middleware provides HTTP middleware for the Gin router.
//
// Go Learning Note — Middleware Pattern (Gin):
// In Gin, middleware is any function with the signature `gin.HandlerFunc`, which
// is `func(*gin.Context)`. Middleware functions form a chain: each one runs,
// optionally calls c.Next() to pass control to the next handler, and can call
// c.Abort() to stop the chain. Authentication, request logging and rate
// limiting in this package all follow that shape.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys for values set by middleware.
const (
	DeviceIDKey = "device_vehicle_id"

	devicePrefix = "vehicle-"
)

// DeviceAuth authenticates a vehicle's tracking device.
// Format: "Bearer vehicle-<id>", where <id> must equal the :id route
// parameter. A device may only report its own position.
//
// Go Learning Note — c.Abort():
// c.AbortWithStatusJSON writes the response and stops the chain in one call.
// Without the abort, the next handler would still execute.
func DeviceAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortAuth(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			abortAuth(c, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		vehicleID, ok := strings.CutPrefix(strings.TrimSpace(parts[1]), devicePrefix)
		if !ok || vehicleID == "" {
			abortAuth(c, http.StatusUnauthorized, "invalid device token")
			return
		}

		if param := c.Param("id"); param != "" && param != vehicleID {
			abortAuth(c, http.StatusForbidden, "device may only update its own vehicle")
			return
		}

		c.Set(DeviceIDKey, vehicleID)
		c.Next()
	}
}

// GetDeviceID returns the vehicle id set by DeviceAuth, or "" outside an
// authenticated route.
func GetDeviceID(c *gin.Context) string {
	return c.GetString(DeviceIDKey)
}

func abortAuth(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": "unauthorized", "message": message})
}
