package api

import (
	"careplan/internal/dto"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) Me(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	return c.JSON(h.users.Me(c.UserContext(), u))
}

func (h *Handler) SavePreferences(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	var req dto.UserPreferencesDTO
	if err := h.bindJSON(c, &req); err != nil {
		return err
	}
	out, err := h.users.SavePreferences(c.UserContext(), u, req)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) ListUsers(c *fiber.Ctx) error {
	var query dto.UserQuery
	if err := h.bindQuery(c, &query); err != nil {
		return err
	}
	out, err := h.users.List(c.UserContext(), query)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) InviteUser(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	var req dto.CreateUserInviteDTO
	if err := h.bindJSON(c, &req); err != nil {
		return err
	}
	out, err := h.users.Invite(c.UserContext(), u, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

func (h *Handler) EditUserRoles(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.EditUserRolesDTO
	if err := h.bindJSON(c, &req); err != nil {
		return err
	}
	out, err := h.users.EditRoles(c.UserContext(), u, id, req)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) RevokeUser(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.users.Revoke(c.UserContext(), u, id)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) ReprovisionUser(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.users.Reprovision(c.UserContext(), u, id)
	if err != nil {
		return err
	}
	return c.JSON(out)
}
