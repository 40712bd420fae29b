// handlers/quest_routes.go
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"quest-ledger/models"
	"quest-ledger/services"

	"github.com/gofiber/fiber/v2"
)

// questActionRequest is the body of /api/quest/verify and /api/quest/claim.
// telegramId is the field name older clients send instead of userId.
type questActionRequest struct {
	UserID     *string         `json:"userId"`
	TelegramID json.RawMessage `json:"telegramId"`
	QuestID    *string         `json:"questId"`
}

type questAction struct {
	UserID  string
	QuestID string
}

func SetupQuestRoutes(app *fiber.App, ledger *services.QuestLedger, health *services.StoreHealth) {
	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		if health != nil {
			if ok, _, _ := health.Status(); !ok {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status":  "DEGRADED",
					"message": "Quest Ledger Backend",
					"store":   "down",
				})
			}
		}
		return c.JSON(fiber.Map{
			"status":  "OK",
			"message": "Quest Ledger Backend",
			"store":   "up",
		})
	})

	api.Get("/user/:userId", func(c *fiber.Ctx) error {
		rec, err := ledger.GetOrCreateUser(c.UserContext(), pathUserID(c))
		if err != nil {
			return ledgerError(c, err, "Failed to get user data")
		}
		return c.JSON(rec)
	})

	api.Get("/user/:userId/events", func(c *fiber.Ctx) error {
		events, err := ledger.Events(c.UserContext(), pathUserID(c))
		if err != nil {
			return ledgerError(c, err, "Failed to get quest history")
		}
		if events == nil {
			events = []models.QuestEvent{}
		}
		return c.JSON(fiber.Map{"events": events})
	})

	api.Get("/quests/:userId", func(c *fiber.Ctx) error {
		quests, err := ledger.ListQuests(c.UserContext(), pathUserID(c))
		if err != nil {
			return ledgerError(c, err, "Failed to get quests")
		}
		return c.JSON(fiber.Map{"quests": quests})
	})

	api.Post("/quest/verify", func(c *fiber.Ctx) error {
		req, err := parseQuestAction(c.Body())
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		res, err := ledger.Verify(c.UserContext(), req.UserID, req.QuestID)
		if err != nil {
			return ledgerError(c, err, "Failed to verify quest")
		}
		if !res.Changed {
			return c.JSON(fiber.Map{
				"status":  "already_verified",
				"message": "Quest already completed",
			})
		}
		return c.JSON(fiber.Map{
			"status":  "verified",
			"message": "Quest completed! You can now claim your reward.",
		})
	})

	api.Post("/quest/claim", func(c *fiber.Ctx) error {
		req, err := parseQuestAction(c.Body())
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		res, err := ledger.Claim(c.UserContext(), req.UserID, req.QuestID)
		if err != nil {
			return ledgerError(c, err, "Failed to claim quest reward")
		}
		if !res.Changed {
			return c.JSON(fiber.Map{
				"status":  "already_claimed",
				"message": "Reward already claimed",
				"points":  res.Points,
			})
		}
		return c.JSON(fiber.Map{
			"status":  "claimed",
			"message": "Reward claimed successfully!",
			"points":  res.Points,
		})
	})
}

// pathUserID decodes the :userId segment; fiber leaves params escaped by default.
func pathUserID(c *fiber.Ctx) string {
	raw := c.Params("userId")
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}

// parseQuestAction checks field presence and types before anything reaches the ledger.
func parseQuestAction(body []byte) (questAction, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return questAction{}, errors.New("request body must be a JSON object")
	}

	var raw questActionRequest
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return questAction{}, fmt.Errorf("invalid JSON: %v", err)
	}

	var out questAction
	switch {
	case raw.UserID != nil:
		out.UserID = strings.TrimSpace(*raw.UserID)
	case len(raw.TelegramID) > 0:
		id, err := legacyTelegramID(raw.TelegramID)
		if err != nil {
			return questAction{}, err
		}
		out.UserID = id
	}
	if out.UserID == "" {
		return questAction{}, errors.New("userId is required")
	}

	if raw.QuestID == nil || strings.TrimSpace(*raw.QuestID) == "" {
		return questAction{}, errors.New("questId is required")
	}
	out.QuestID = strings.TrimSpace(*raw.QuestID)
	return out, nil
}

// Telegram user ids arrive as numbers from the bot and as strings from the web client.
func legacyTelegramID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		if id, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(id, 10), nil
		}
	}
	return "", errors.New("telegramId must be a string or an integer")
}

// ledgerError maps ledger errors onto status codes; infrastructure failures get
// only the generic message.
func ledgerError(c *fiber.Ctx, err error, generic string) error {
	switch {
	case errors.Is(err, services.ErrInvalidUser):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "userId is required"})
	case errors.Is(err, services.ErrUnknownQuest):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid quest ID"})
	case errors.Is(err, services.ErrInvalidTransition):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Quest not ready for claiming"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": generic})
	}
}
