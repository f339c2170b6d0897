package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf2png/internal/encode"
	"pdf2png/internal/pipeline"
	"pdf2png/internal/raster"
	u "pdf2png/internal/utils"
)

func TestMain(m *testing.M) {
	u.SetLoggerForTest(zerolog.Nop())
	os.Exit(m.Run())
}

type fakeEngine struct {
	available bool
	pages     []image.Image
}

func (f *fakeEngine) IsAvailable() bool { return f.available }

func (f *fakeEngine) Rasterize(ctx context.Context, pdf []byte, dpi int) ([]image.Image, error) {
	return f.pages, nil
}

func testCfg() u.Config {
	cfg := u.Config{}
	cfg.Limits.MaxPayloadBytes = 50 * 1024 * 1024
	cfg.Raster.Binary = "/definitely/missing/pdftoppm"
	cfg.Raster.DPI = 150
	return cfg
}

func newTestService(engine raster.Engine) *ConvertService {
	cfg := testCfg()
	return &ConvertService{
		Config:   &cfg,
		Engine:   engine,
		Pipeline: pipeline.New(engine, encode.NewPNG(), cfg.Raster.DPI),
	}
}

func testPage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: uint8(x), A: 255})
	}
	return img
}

func convertBody() string {
	payload := base64.StdEncoding.EncodeToString([]byte("%PDF-1.4\nfake\n%%EOF"))
	return `{"pdfBase64":"` + payload + `"}`
}

func TestHandleImages_Success(t *testing.T) {
	svc := newTestService(&fakeEngine{
		available: true,
		pages:     []image.Image{testPage(20, 10), testPage(21, 11)},
	})

	app := fiber.New()
	app.Post("/pdf-to-images", svc.HandleImages)

	req := httptest.NewRequest("POST", "/pdf-to-images", strings.NewReader(convertBody()))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success    bool `json:"success"`
		TotalPages int  `json:"totalPages"`
		Pages      []struct {
			Page        int    `json:"page"`
			ImageBase64 string `json:"imageBase64"`
			Width       int    `json:"width"`
			Height      int    `json:"height"`
		} `json:"pages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.True(t, body.Success)
	assert.Equal(t, 2, body.TotalPages)
	require.Len(t, body.Pages, 2)
	for i, page := range body.Pages {
		assert.Equal(t, i+1, page.Page)
		assert.Equal(t, 20+i, page.Width)
		assert.Equal(t, 10+i, page.Height)

		raw, err := base64.StdEncoding.DecodeString(page.ImageBase64)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(raw, []byte("\x89PNG")), "page %d must be PNG bytes", page.Page)
	}
}

func TestHandleZip_Success(t *testing.T) {
	svc := newTestService(&fakeEngine{
		available: true,
		pages:     []image.Image{testPage(15, 9)},
	})

	app := fiber.New()
	app.Post("/pdf-to-images-zip", svc.HandleZip)

	req := httptest.NewRequest("POST", "/pdf-to-images-zip", strings.NewReader(convertBody()))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success    bool   `json:"success"`
		TotalPages int    `json:"totalPages"`
		ZipBase64  string `json:"zipBase64"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.True(t, body.Success)
	assert.Equal(t, 1, body.TotalPages)

	raw, err := base64.StdEncoding.DecodeString(body.ZipBase64)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "page_1.png", zr.File[0].Name)
}

func TestHandleHealth_EngineMissing(t *testing.T) {
	// Real poppler adapter pointed at a missing binary: health must still
	// answer 200 and report the absence as data.
	cfg := testCfg()
	svc := NewConvertService(cfg)

	app := fiber.New()
	app.Get("/health", svc.HandleHealth)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Status                 string   `json:"status"`
		Service                string   `json:"service"`
		EngineAvailable        bool     `json:"engineAvailable"`
		MaxPayloadBytes        int      `json:"maxPayloadBytes"`
		SupportedInputFormats  []string `json:"supportedInputFormats"`
		SupportedOutputFormats []string `json:"supportedOutputFormats"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "pdf2png", body.Service)
	assert.False(t, body.EngineAvailable)
	assert.Equal(t, 50*1024*1024, body.MaxPayloadBytes)
	assert.Equal(t, []string{"pdf"}, body.SupportedInputFormats)
	assert.Equal(t, []string{"png", "zip"}, body.SupportedOutputFormats)
}

func TestHandleHealth_EngineAvailable(t *testing.T) {
	svc := newTestService(&fakeEngine{available: true})

	app := fiber.New()
	app.Get("/health", svc.HandleHealth)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Status          string `json:"status"`
		EngineAvailable bool   `json:"engineAvailable"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.True(t, body.EngineAvailable)
}
