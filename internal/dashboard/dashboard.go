// oreon/sentinel · watchthelight <wtl>

// Package dashboard serves the read-only HTTP surface: stats, the
// scan history and report exports. It never mutates the store.
package dashboard

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/oreonproject/sentinel/internal/report"
	"github.com/oreonproject/sentinel/internal/store"
	"github.com/oreonproject/sentinel/pkg/threat"
)

// statsView is the dashboard's stats payload, with the derived
// safety score attached.
type statsView struct {
	threat.Stats
	SafetyScore int `json:"safety_score"`
}

// New builds the dashboard app over the store.
func New(st *store.Store) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "sentinel-dashboard",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	app.Use(logger.New())

	app.Get("/api/stats", func(c *fiber.Ctx) error {
		stats, err := st.Stats()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(statsView{Stats: stats, SafetyScore: report.SafetyScore(stats)})
	})

	app.Get("/api/history", func(c *fiber.Ctx) error {
		history, err := st.History()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if history == nil {
			history = []threat.HistoryEntry{}
		}
		return c.JSON(history)
	})

	app.Get("/api/export/csv", func(c *fiber.Ctx) error {
		history, err := st.History()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		c.Set(fiber.HeaderContentType, "text/csv")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+report.CSVFilename()+`"`)
		return c.SendString(report.CSV(history))
	})

	app.Get("/api/export/json", func(c *fiber.Ctx) error {
		history, err := st.History()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		stats, err := st.Stats()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		content, err := report.JSON(stats, history)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+report.JSONFilename()+`"`)
		return c.SendString(content)
	})

	return app
}
