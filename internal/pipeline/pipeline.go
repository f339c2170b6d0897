// Package pipeline orchestrates one PDF conversion: validate the payload,
// rasterize through the external engine, encode pages tolerating individual
// failures, and assemble the response.
package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"time"

	"pdf2png/internal/encode"
	"pdf2png/internal/raster"
	u "pdf2png/internal/utils"
)

// pdfSignature is the magic header every PDF starts with.
var pdfSignature = []byte("%PDF")

// OutputMode selects the response shape.
type OutputMode int

const (
	// OutputInline returns the encoded pages individually.
	OutputInline OutputMode = iota
	// OutputZip packs the encoded pages into one deflate archive.
	OutputZip
)

// Page is one successfully rendered page. Number is the 1-based position in
// the rasterized document and is preserved when earlier pages are skipped.
type Page struct {
	Number int
	Width  int
	Height int
	Data   []byte
}

// Result is a finished conversion. TotalPages counts the pages included in
// the output, not the document's page count: pages whose encoding failed are
// dropped. In zip mode Pages is nil and Zip holds the archive.
type Result struct {
	TotalPages     int
	Pages          []Page
	Zip            []byte
	ElapsedSeconds float64
}

// Pipeline drives one conversion per call. It holds no per-request state and
// is safe for concurrent use; each invocation runs strictly sequentially.
type Pipeline struct {
	engine  raster.Engine
	encoder encode.Encoder
	dpi     int
}

// New builds a pipeline. DPI is server policy, not a request parameter: a
// lower value bounds per-page memory at the cost of output resolution.
func New(engine raster.Engine, encoder encode.Encoder, dpi int) *Pipeline {
	return &Pipeline{engine: engine, encoder: encoder, dpi: dpi}
}

// Convert runs the full conversion for one base64-encoded PDF payload.
func (p *Pipeline) Convert(ctx context.Context, pdfBase64 string, mode OutputMode) (*Result, error) {
	start := time.Now()

	pdf, err := decodePayload(pdfBase64)
	if err != nil {
		return nil, err
	}

	if !p.engine.IsAvailable() {
		return nil, newError(KindEngineUnavailable, "rasterization engine is not installed")
	}

	images, err := p.engine.Rasterize(ctx, pdf, p.dpi)
	pdf = nil // the engine owns a copy now; drop ours before encoding
	if err != nil {
		if errors.Is(err, raster.ErrEngineUnavailable) {
			return nil, wrapError(KindEngineUnavailable, "rasterization engine is not installed", err)
		}
		return nil, wrapError(KindRasterizationFailed, "failed to rasterize document", err)
	}
	if len(images) == 0 {
		return nil, newError(KindNoPagesProduced, "document produced no pages")
	}

	pages, failed := p.encodePages(images)
	if len(pages) == 0 {
		return nil, newError(KindAllPagesFailed, "no page could be encoded")
	}
	if failed > 0 {
		u.Warn("Skipped pages during encoding", "skipped", failed, "encoded", len(pages))
	}

	res := &Result{
		TotalPages:     len(pages),
		ElapsedSeconds: time.Since(start).Seconds(),
	}

	if mode == OutputZip {
		archive, err := zipPages(pages)
		if err != nil {
			return nil, fmt.Errorf("assemble archive: %w", err)
		}
		res.Zip = archive
		return res, nil
	}

	res.Pages = pages
	return res, nil
}

// decodePayload validates and decodes the wire payload. Everything here is a
// client error; the engine is never invoked for input that fails these checks.
func decodePayload(pdfBase64 string) ([]byte, error) {
	if pdfBase64 == "" {
		return nil, newError(KindInvalidInput, "no pdfBase64 data provided")
	}
	pdf, err := base64.StdEncoding.DecodeString(pdfBase64)
	if err != nil {
		return nil, wrapError(KindInvalidInput, "pdfBase64 is not valid base64", err)
	}
	if len(pdf) == 0 {
		return nil, newError(KindInvalidInput, "decoded payload is empty")
	}
	if !bytes.HasPrefix(pdf, pdfSignature) {
		return nil, newError(KindInvalidInput, "payload is not a PDF document")
	}
	return pdf, nil
}

// encodePages encodes each rasterized page in order. A failed page is logged
// and skipped, never aborting the batch; its original 1-based position is
// kept for the surviving pages. Each decoded image is unreferenced as soon
// as its encode finishes so at most one page's pixels stay reachable.
func (p *Pipeline) encodePages(images []image.Image) ([]Page, int) {
	pages := make([]Page, 0, len(images))
	failed := 0
	for i := range images {
		img := images[i]
		images[i] = nil

		bounds := img.Bounds()
		data, err := p.encoder.Encode(img)
		if err != nil {
			failed++
			u.Warn("Page encoding failed, skipping", "page", i+1, "error", err.Error())
			continue
		}
		pages = append(pages, Page{
			Number: i + 1,
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
			Data:   data,
		})
	}
	return pages, failed
}

// zipPages packs the encoded pages into one deflate archive with entries
// named page_<n>.png by original page number.
func zipPages(pages []Page) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i := range pages {
		w, err := zw.Create(fmt.Sprintf("page_%d.png", pages[i].Number))
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(pages[i].Data); err != nil {
			return nil, err
		}
		pages[i].Data = nil // archived; release the standalone buffer
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
