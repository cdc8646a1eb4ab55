package api

import (
	"careplan/internal/dto"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) CreatePlanningSession(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	out, err := h.planning.Create(c.UserContext(), u)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

func (h *Handler) LastDraft(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	out, err := h.planning.LastDraft(c.UserContext(), u)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) GetProfile(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.planning.GetProfile(c.UserContext(), u, id)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) SaveProfile(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.SaveProfileDTO
	if err := h.bindJSON(c, &req); err != nil {
		return err
	}
	out, err := h.planning.SaveProfile(c.UserContext(), u, id, req)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) GetSessionCareActivities(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.planning.GetCareActivities(c.UserContext(), u, id)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) SaveSessionCareActivities(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.SaveCareActivityDTO
	if err := h.bindJSON(c, &req); err != nil {
		return err
	}
	out, err := h.planning.SaveCareActivities(c.UserContext(), u, id, req)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) GetSessionOccupations(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.planning.GetOccupations(c.UserContext(), u, id)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) SaveSessionOccupations(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.SaveOccupationDTO
	if err := h.bindJSON(c, &req); err != nil {
		return err
	}
	out, err := h.planning.SaveOccupations(c.UserContext(), u, id, req)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) SaveUnavailableOccupations(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.SaveOccupationDTO
	if err := h.bindJSON(c, &req); err != nil {
		return err
	}
	out, err := h.planning.SaveUnavailableOccupations(c.UserContext(), u, id, req)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) ActivitiesGap(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.planning.ActivitiesGap(c.UserContext(), u, id)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Suggestions takes its pagination and temporary selection from the body.
func (h *Handler) Suggestions(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var query dto.SuggestionQuery
	if len(c.Body()) > 0 {
		if err := h.bindJSON(c, &query); err != nil {
			return err
		}
	}
	out, err := h.planning.Suggestions(c.UserContext(), u, id, query)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) ExportPlanningSession(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	workbook, err := h.planning.Export(c.UserContext(), u, id)
	if err != nil {
		return err
	}
	return sendWorkbook(c, workbook)
}
