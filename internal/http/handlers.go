package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/domain"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/service"
)

type todayResponse struct {
	MeterID       string      `json:"meter_id"`
	Timestamp     domain.Slot `json:"timestamp"`
	LatestReading float64     `json:"latest_reading"`
}

type dailyResponse struct {
	MeterID string     `json:"meter_id"`
	Date    domain.Day `json:"date"`
	Reading float64    `json:"reading"`
}

func Register(app *fiber.App, svcs *service.Services) {
	busy := Busy(svcs.Gate)

	app.Get("/today/:meter_id", busy, func(c *fiber.Ctx) error {
		id := c.Params("meter_id")
		p, err := svcs.Store.Latest(id)
		if err != nil {
			return meterError(c, id, err)
		}
		return c.JSON(todayResponse{MeterID: id, Timestamp: p.Slot, LatestReading: p.Value})
	})

	app.Get("/daily/:meter_id", busy, func(c *fiber.Ctx) error {
		id := c.Params("meter_id")
		raw := c.Query("date")
		if raw == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"meter_id": id, "message": "date is required (YYYYMMDD)"})
		}
		day, err := domain.ParseDay(raw)
		if err != nil {
			return meterError(c, id, err)
		}
		v, err := svcs.Store.Snapshot(id, day)
		if err != nil {
			return meterError(c, id, err)
		}
		return c.JSON(dailyResponse{MeterID: id, Date: day, Reading: v})
	})

	app.Get("/usage/:meter_id", busy, func(c *fiber.Ctx) error {
		id := c.Params("meter_id")
		u, err := svcs.Usage.Usage(id)
		if err != nil {
			return meterError(c, id, err)
		}
		return c.JSON(u)
	})

	app.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"accepting": svcs.Gate.Accepting()})
	})

	app.Post("/admin/pause", func(c *fiber.Ctx) error {
		day, err := svcs.Pause(c.UserContext())
		switch {
		case errors.Is(err, domain.ErrBusy):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "a pause is already running", "status": "busy"})
		case err != nil:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "archive failed, working set kept", "status": "error", "date": day, "error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "day archived and working set cleared", "status": "ok", "date": day})
	})
}

// Busy rejects requests with 503 while the gate is draining. Requests that
// were admitted before the drain run to completion.
func Busy(gate *service.Gate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !gate.Accepting() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"meter_id": c.Params("meter_id"), "message": domain.ErrBusy.Error()})
		}
		return c.Next()
	}
}

func meterError(c *fiber.Ctx, meterID string, err error) error {
	status := fiber.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.Is(err, domain.ErrNoData):
		status, msg = fiber.StatusNotFound, "no data"
	case errors.Is(err, domain.ErrMalformedQuery):
		status = fiber.StatusBadRequest
	case errors.Is(err, domain.ErrBusy):
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"meter_id": meterID, "message": msg})
}
