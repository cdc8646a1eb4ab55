package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"careplan/internal/apperror"
	"careplan/internal/careactivity"
	"careplan/internal/database"
	"careplan/internal/dto"
	"careplan/internal/kpi"
	"careplan/internal/middleware"
	"careplan/internal/occupation"
	"careplan/internal/planning"
	"careplan/internal/upload"
	"careplan/internal/user"
	"careplan/internal/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handler struct {
	validator      *validator.Validator
	maxFileSize    int
	users          *user.Manager
	occupations    *occupation.Manager
	careActivities *careactivity.Manager
	uploads        *upload.Manager
	planning       *planning.Manager
	kpi            *kpi.Manager
}

// bindJSON decodes the request body into v and validates it.
func (h *Handler) bindJSON(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return apperror.Validation("Malformed request body", nil)
	}
	return h.validator.Validate(v)
}

func (h *Handler) bindQuery(c *fiber.Ctx, v any) error {
	if err := c.QueryParser(v); err != nil {
		return apperror.Validation("Malformed query string", nil)
	}
	return h.validator.Validate(v)
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperror.Validation(name+" must be a valid UUID", nil)
	}
	return id, nil
}

func actor(c *fiber.Ctx) (database.User, error) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return u, apperror.Unauthorized("Not authenticated")
	}
	return u, nil
}

func sendWorkbook(c *fiber.Ctx, workbook upload.Workbook) error {
	c.Set(fiber.HeaderContentType, middleware.MIMEApplicationXLSX)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+workbook.Filename+`"`)
	c.Set(fiber.HeaderContentLength, strconv.Itoa(len(workbook.Data)))
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(workbook.Data)
}

var errNoFile = errors.New("no file")

// bulkSheet reads the uploaded spreadsheet, either as a multipart "file"
// field or as a JSON CareActivityBulkDTO body.
func (h *Handler) bulkSheet(c *fiber.Ctx) (upload.Sheet, *upload.File, error) {
	file, err := h.multipartFile(c)
	switch {
	case err == nil:
		sheet, err := upload.Parse(file.Name, bytes.NewReader(file.Data))
		if err != nil {
			return upload.Sheet{}, nil, err
		}
		return sheet, file, nil
	case !errors.Is(err, errNoFile):
		return upload.Sheet{}, nil, err
	}

	var req dto.CareActivityBulkDTO
	if err := h.bindJSON(c, &req); err != nil {
		return upload.Sheet{}, nil, err
	}
	return upload.FromDTO(req), nil, nil
}

func (h *Handler) multipartFile(c *fiber.Ctx) (*upload.File, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return nil, errNoFile
	}
	header, err := c.FormFile("file")
	if err != nil {
		return nil, apperror.Validation("file is required", nil)
	}
	if h.maxFileSize > 0 && header.Size > int64(h.maxFileSize) {
		return nil, apperror.New(apperror.TypeUnsupportedFile, http.StatusRequestEntityTooLarge, "The file is too large")
	}

	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &upload.File{Name: header.Filename, ContentType: header.Header.Get(fiber.HeaderContentType), Data: data}, nil
}
