// Package server hosts the development sync backend. It acknowledges every
// pushed mutation and returns empty change sets, which is enough to exercise
// the full push/pull/checkpoint cycle against a running process.
package server

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/openstall/stallpos/internal/pos"
)

type pushRequest struct {
	Mutations []pos.Mutation `json:"mutations"`
}

type pushResponse struct {
	AppliedIDs []string `json:"appliedIds"`
}

type changesResponse struct {
	TS      int64         `json:"ts"`
	Changes pos.ChangeSet `json:"changes"`
}

// New builds the fiber app with the sync routes mounted under /api.
func New() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	api := app.Group("/api")
	api.Post("/sync/mutations", handlePushMutations)
	api.Get("/sync/changes", handleFetchChanges)

	return app
}

// handlePushMutations acknowledges every mutation in the batch. A body that
// fails to parse is treated as an empty batch rather than rejected, so a
// client never wedges its outbox on a encoding mismatch.
func handlePushMutations(c *fiber.Ctx) error {
	var req pushRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Warn("unparseable mutation batch", "error", err)
		return c.JSON(pushResponse{AppliedIDs: make([]string, 0)})
	}

	applied := make([]string, 0, len(req.Mutations))
	for _, m := range req.Mutations {
		applied = append(applied, m.ID)
	}
	slog.Info("applied mutation batch", "count", len(applied))
	return c.JSON(pushResponse{AppliedIDs: applied})
}

// handleFetchChanges returns an empty change set stamped with the current
// time. The since parameter is accepted and ignored.
func handleFetchChanges(c *fiber.Ctx) error {
	return c.JSON(changesResponse{
		TS: time.Now().UnixMilli(),
		Changes: pos.ChangeSet{
			Orders:     []pos.Order{},
			OrderItems: []pos.OrderItem{},
			MenuItems:  []pos.MenuItem{},
			Inventory:  []pos.InventoryItem{},
		},
	})
}
