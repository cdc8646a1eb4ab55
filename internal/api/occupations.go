package api

import (
	"careplan/internal/dto"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) ListOccupations(c *fiber.Ctx) error {
	var query dto.OccupationQuery
	if err := h.bindQuery(c, &query); err != nil {
		return err
	}
	out, err := h.occupations.List(c.UserContext(), query)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) ListAllOccupations(c *fiber.Ctx) error {
	out, err := h.occupations.ListAll(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) GetOccupation(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.occupations.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) OccupationScope(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var query dto.ScopeQuery
	if err := h.bindQuery(c, &query); err != nil {
		return err
	}
	out, err := h.occupations.Scope(c.UserContext(), id, query)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) CreateOccupation(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	var req dto.CreateOccupationDTO
	if err := h.bindJSON(c, &req); err != nil {
		return err
	}
	out, err := h.occupations.Create(c.UserContext(), u, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

func (h *Handler) EditOccupation(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.EditOccupationDTO
	if err := h.bindJSON(c, &req); err != nil {
		return err
	}
	out, err := h.occupations.Edit(c.UserContext(), u, id, req)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) DeleteOccupation(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.occupations.Delete(c.UserContext(), u, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
