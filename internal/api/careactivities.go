package api

import (
	"careplan/internal/dto"
	"careplan/internal/util"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func (h *Handler) ListUnits(c *fiber.Ctx) error {
	out, err := h.careActivities.ListUnits(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) ListBundles(c *fiber.Ctx) error {
	out, err := h.careActivities.ListBundles(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) BundlesForUnit(c *fiber.Ctx) error {
	var query dto.BundlesForUnitQuery
	if err := h.bindQuery(c, &query); err != nil {
		return err
	}
	out, err := h.careActivities.BundlesForUnit(c.UserContext(), uuid.MustParse(query.UnitID))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) FindCareActivities(c *fiber.Ctx) error {
	var query dto.CareActivityCMSQuery
	if err := h.bindQuery(c, &query); err != nil {
		return err
	}
	out, err := h.careActivities.Find(c.UserContext(), query)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) DownloadCareActivities(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	var query dto.ExportQuery
	if err := h.bindQuery(c, &query); err != nil {
		return err
	}
	unitID := util.None[uuid.UUID]()
	if query.UnitID != "" {
		unitID = util.Some(uuid.MustParse(query.UnitID))
	}
	workbook, err := h.careActivities.Export(c.UserContext(), u, unitID)
	if err != nil {
		return err
	}
	return sendWorkbook(c, workbook)
}

func (h *Handler) CareActivityTemplate(c *fiber.Ctx) error {
	workbook, err := h.careActivities.Template(c.UserContext())
	if err != nil {
		return err
	}
	return sendWorkbook(c, workbook)
}

func (h *Handler) ValidateUpload(c *fiber.Ctx) error {
	sheet, _, err := h.bulkSheet(c)
	if err != nil {
		return err
	}
	out, err := h.uploads.Validate(c.UserContext(), sheet)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) CommitUpload(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	sheet, file, err := h.bulkSheet(c)
	if err != nil {
		return err
	}
	out, err := h.uploads.Commit(c.UserContext(), u, sheet, file)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) GetCareActivity(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.careActivities.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) EditCareActivity(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.EditCareActivityDTO
	if err := h.bindJSON(c, &req); err != nil {
		return err
	}
	out, err := h.careActivities.Edit(c.UserContext(), u, id, req)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) DeleteCareActivity(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.careActivities.Delete(c.UserContext(), u, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) RemoveCareActivityUnit(c *fiber.Ctx) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	unitID, err := paramID(c, "unitId")
	if err != nil {
		return err
	}
	if err := h.careActivities.RemoveUnit(c.UserContext(), u, id, unitID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
