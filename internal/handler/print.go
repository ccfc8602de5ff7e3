package handler

import (
	"errors"
	"image"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/receipt-printer/internal/config"
	"github.com/iliyamo/receipt-printer/internal/receipt"
	"github.com/iliyamo/receipt-printer/internal/service"
)

// DefaultTitle is used when a template request omits the title.
const DefaultTitle = "TASKS"

// MaxUploadBytes bounds photo uploads.
const MaxUploadBytes = 15 << 20

// PrintHandler serves the admin print endpoints.
type PrintHandler struct {
	Printer *service.Printer
	Log     *logrus.Logger
}

func NewPrintHandler(p *service.Printer, log *logrus.Logger) *PrintHandler {
	return &PrintHandler{Printer: p, Log: log}
}

// ----- DTOs -----

type templateReq struct {
	Title       *string  `json:"title"`
	Lines       []string `json:"lines" validate:"max=200"`
	Cut         *bool    `json:"cut"`
	AddDatetime *bool    `json:"add_datetime"`
}

type rawReq struct {
	Text        string `json:"text" validate:"max=20000"`
	AddDatetime bool   `json:"add_datetime"`
}

func (r templateReq) job() service.TemplateJob {
	j := service.TemplateJob{Title: DefaultTitle, Lines: r.Lines, AddTimestamp: true, Cut: true}
	if r.Title != nil {
		j.Title = *r.Title
	}
	if r.AddDatetime != nil {
		j.AddTimestamp = *r.AddDatetime
	}
	if r.Cut != nil {
		j.Cut = *r.Cut
	}
	return j
}

// Template prints a titled task list.
func (h *PrintHandler) Template(c echo.Context) error {
	var req templateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	id, err := h.Printer.PrintTemplate(c.Request().Context(), req.job())
	return h.respond(c, "Template", id, err)
}

// Raw prints free text.
func (h *PrintHandler) Raw(c echo.Context) error {
	var req rawReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	id, err := h.Printer.PrintRaw(c.Request().Context(), req.Text, req.AddDatetime, "")
	return h.respond(c, "Raw", id, err)
}

// Image prints an uploaded photo with optional img_title / img_subtitle.
func (h *PrintHandler) Image(c echo.Context) error {
	photo, err := readPhoto(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	id, err := h.Printer.PrintPhoto(c.Request().Context(), photo, c.FormValue("img_title"), c.FormValue("img_subtitle"), "")
	return h.respond(c, "Image", id, err)
}

// readPhoto decodes the multipart "file" field.
func readPhoto(c echo.Context) (image.Image, error) {
	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, MaxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, errors.New("file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.New("cannot read upload")
	}
	defer f.Close()
	img, err := receipt.DecodePhoto(io.LimitReader(f, MaxUploadBytes))
	if err != nil {
		return nil, errors.New("unsupported or corrupt image")
	}
	return img, nil
}

// respond maps pipeline errors to HTTP responses.
func (h *PrintHandler) respond(c echo.Context, funcName, ticketID string, err error) error {
	return printResult(c, h.Log, funcName, ticketID, err)
}

func printResult(c echo.Context, log *logrus.Logger, funcName, ticketID string, err error) error {
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"ok": true, "ticket_id": ticketID})
	case errors.Is(err, service.ErrNotDelivered):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "printer unavailable", "ticket_id": ticketID})
	case errors.Is(err, receipt.ErrInvalidPhoto):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unsupported or corrupt image"})
	case errors.Is(err, receipt.ErrEmptyReceipt):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to print"})
	default:
		config.LogError(log, "handler", funcName, "render receipt", nil, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "render failed"})
	}
}
