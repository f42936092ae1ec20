package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"rirranges/internal/model"
)

type RangeService interface {
	LookupIP(ctx context.Context, ip string) (*model.IPResponse, error)
	CountryRanges(country string, family model.Family) []string
	Countries() []string
}

type Handler struct {
	service RangeService
	logger  *zap.Logger
}

func NewHandler(service RangeService, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/v1/lookup/:ip", h.LookupIP)
	app.Get("/api/v1/ranges/:family/:country", h.CountryRanges)
	app.Get("/api/v1/countries", h.Countries)
	app.Get("/api/v1/health", h.HealthCheck)
}

func (h *Handler) LookupIP(c *fiber.Ctx) error {
	ip := c.Params("ip")
	if ip == "" {
		return c.Status(fiber.StatusBadRequest).JSON(model.Error{
			Message: "IP address is required",
		})
	}

	result, err := h.service.LookupIP(c.Context(), ip)
	if err != nil {
		if strings.Contains(err.Error(), "invalid IP address") {
			return c.Status(fiber.StatusBadRequest).JSON(model.Error{
				Message: fmt.Sprintf("Invalid IP address format: %s", ip),
			})
		}

		h.logger.Error("IP lookup failed",
			zap.String("ip", ip),
			zap.Error(err))

		return c.Status(fiber.StatusInternalServerError).JSON(model.Error{
			Message: "Failed to lookup IP address",
		})
	}

	if result.CountryCode == "ZZ" {
		return c.Status(fiber.StatusNotFound).JSON(model.Error{
			Message: "No country information found for this IP",
		})
	}

	return c.JSON(result)
}

// CountryRanges serves the same document the sinks publish, with the
// ".json" suffix on the country optional.
func (h *Handler) CountryRanges(c *fiber.Ctx) error {
	family, err := model.ParseFamily(c.Params("family"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(model.Error{
			Message: fmt.Sprintf("Unknown address family: %s", c.Params("family")),
		})
	}

	country := strings.ToUpper(strings.TrimSuffix(c.Params("country"), ".json"))
	cidrs := h.service.CountryRanges(country, family)
	if len(cidrs) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(model.Error{
			Message: fmt.Sprintf("No %s ranges for %s", family, country),
		})
	}

	data, err := model.EncodeRangeList(cidrs)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	return c.Send(data)
}

func (h *Handler) Countries(c *fiber.Ctx) error {
	countries := h.service.Countries()
	if countries == nil {
		countries = []string{}
	}
	return c.JSON(countries)
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
	})
}
