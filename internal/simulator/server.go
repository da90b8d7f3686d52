package simulator

import "github.com/gofiber/fiber/v2"

// Register exposes the bank as a reading source and a meter registry.
func Register(app *fiber.App, bank *Bank) {
	app.Get("/reading/:meter_id", func(c *fiber.Ctx) error {
		id := c.Params("meter_id")
		return c.JSON(fiber.Map{"meter_id": id, "reading": bank.Reading(id)})
	})
	app.Get("/meter_ids", func(c *fiber.Ctx) error {
		return c.JSON(bank.Meters())
	})
}
