package handlers

import (
	"encoding/base64"

	"github.com/gofiber/fiber/v2"

	"pdf2png/internal/encode"
	"pdf2png/internal/pipeline"
	"pdf2png/internal/raster"
	u "pdf2png/internal/utils"
)

// ConvertService bundles configuration and the conversion pipeline behind
// the HTTP handlers. One instance is shared by all conversion routes.
type ConvertService struct {
	Config   *u.Config
	Engine   raster.Engine
	Pipeline *pipeline.Pipeline
}

// NewConvertService wires the poppler engine and PNG encoder into a pipeline.
func NewConvertService(cfg u.Config) *ConvertService {
	engine := raster.NewPoppler(cfg.Raster)
	return &ConvertService{
		Config:   &cfg, // convert value to pointer
		Engine:   engine,
		Pipeline: pipeline.New(engine, encode.NewPNG(), cfg.Raster.DPI),
	}
}

type convertRequest struct {
	PDFBase64 string `json:"pdfBase64"`
}

type pageResponse struct {
	Page        int    `json:"page"`
	ImageBase64 string `json:"imageBase64"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

type imagesResponse struct {
	Success    bool           `json:"success"`
	TotalPages int            `json:"totalPages"`
	Pages      []pageResponse `json:"pages"`
}

type zipResponse struct {
	Success    bool   `json:"success"`
	TotalPages int    `json:"totalPages"`
	ZipBase64  string `json:"zipBase64"`
}

type healthResponse struct {
	Status                 string   `json:"status"`
	Service                string   `json:"service"`
	EngineAvailable        bool     `json:"engineAvailable"`
	MaxPayloadBytes        int      `json:"maxPayloadBytes"`
	SupportedInputFormats  []string `json:"supportedInputFormats"`
	SupportedOutputFormats []string `json:"supportedOutputFormats"`
}

// HandleImages converts a PDF payload into inline base64 PNG pages.
func (svc *ConvertService) HandleImages(c *fiber.Ctx) error {
	req, err := parseConvertRequest(c)
	if err != nil {
		return err
	}

	res, err := svc.Pipeline.Convert(c.Context(), req.PDFBase64, pipeline.OutputInline)
	if err != nil {
		return logAndPass(c, err)
	}

	resp := imagesResponse{
		Success:    true,
		TotalPages: res.TotalPages,
		Pages:      make([]pageResponse, 0, len(res.Pages)),
	}
	for i := range res.Pages {
		page := &res.Pages[i]
		resp.Pages = append(resp.Pages, pageResponse{
			Page:        page.Number,
			ImageBase64: base64.StdEncoding.EncodeToString(page.Data),
			Width:       page.Width,
			Height:      page.Height,
		})
		page.Data = nil
	}

	u.Info("PDF converted",
		"mode", "images",
		"total_pages", res.TotalPages,
		"elapsed_secs", res.ElapsedSeconds,
		"request_id", c.Get("X-Request-ID"),
	)
	return c.JSON(resp)
}

// HandleZip converts a PDF payload into one base64 zip archive of PNG pages.
func (svc *ConvertService) HandleZip(c *fiber.Ctx) error {
	req, err := parseConvertRequest(c)
	if err != nil {
		return err
	}

	res, err := svc.Pipeline.Convert(c.Context(), req.PDFBase64, pipeline.OutputZip)
	if err != nil {
		return logAndPass(c, err)
	}

	u.Info("PDF converted",
		"mode", "zip",
		"total_pages", res.TotalPages,
		"elapsed_secs", res.ElapsedSeconds,
		"request_id", c.Get("X-Request-ID"),
	)
	return c.JSON(zipResponse{
		Success:    true,
		TotalPages: res.TotalPages,
		ZipBase64:  base64.StdEncoding.EncodeToString(res.Zip),
	})
}

// HandleHealth reports service status. Engine absence is data, never an
// error: the route answers 200 regardless so orchestrators can tell a dead
// process from a degraded one.
func (svc *ConvertService) HandleHealth(c *fiber.Ctx) error {
	available := svc.Engine.IsAvailable()
	status := "healthy"
	if !available {
		status = "degraded"
	}
	return c.JSON(healthResponse{
		Status:                 status,
		Service:                "pdf2png",
		EngineAvailable:        available,
		MaxPayloadBytes:        svc.Config.Limits.MaxPayloadBytes,
		SupportedInputFormats:  []string{"pdf"},
		SupportedOutputFormats: []string{"png", "zip"},
	})
}

func parseConvertRequest(c *fiber.Ctx) (*convertRequest, error) {
	var req convertRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, &pipeline.Error{Kind: pipeline.KindInvalidInput, Message: "request body is not valid JSON"}
	}
	return &req, nil
}

// logAndPass records the full error chain server-side and forwards the typed
// error to the app-level handler, which renders the client-safe body.
func logAndPass(c *fiber.Ctx, err error) error {
	u.Error("Conversion failed",
		"path", c.Path(),
		"error", err.Error(),
		"request_id", c.Get("X-Request-ID"),
	)
	return err
}
