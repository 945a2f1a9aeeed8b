package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spoqen/spoqen/internal/pkg/database"
)

// HandleHealth reports process and database health for load balancers.
func HandleHealth(c *fiber.Ctx) error {
	dbStatus := "ok"
	if db := database.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
			dbStatus = "unavailable"
		}
	} else {
		dbStatus = "unavailable"
	}

	status := fiber.StatusOK
	overall := "ok"
	if dbStatus != "ok" {
		status = fiber.StatusServiceUnavailable
		overall = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{
		"status":   overall,
		"database": dbStatus,
	})
}
