package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	u "pdf2png/internal/utils"
)

// Poppler invokes pdftoppm, the same renderer the service's predecessors
// used. Each Rasterize call spawns one process and cleans up after itself;
// nothing is shared between calls.
type Poppler struct {
	Binary  string
	Timeout time.Duration
}

// NewPoppler builds an engine from the raster config section.
func NewPoppler(cfg u.RasterConfig) *Poppler {
	return &Poppler{
		Binary:  cfg.Binary,
		Timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
	}
}

// IsAvailable reports whether the configured pdftoppm binary resolves to an
// executable.
func (p *Poppler) IsAvailable() bool {
	_, err := exec.LookPath(p.Binary)
	return err == nil
}

// Rasterize renders every page of pdf to an in-memory image at dpi.
func (p *Poppler) Rasterize(ctx context.Context, pdf []byte, dpi int) ([]image.Image, error) {
	bin, err := exec.LookPath(p.Binary)
	if err != nil {
		return nil, ErrEngineUnavailable
	}
	if dpi <= 0 {
		return nil, &RasterizeError{Detail: fmt.Sprintf("invalid dpi %d", dpi)}
	}

	tmpDir, err := os.MkdirTemp("", "pdf2png-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(pdfPath, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	prefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, bin, "-png", "-r", strconv.Itoa(dpi), pdfPath, prefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &RasterizeError{Detail: fmt.Sprintf("engine timed out after %s", p.Timeout)}
		}
		return nil, &RasterizeError{Detail: engineDetail(stderr.String(), err)}
	}

	paths, err := pageFiles(prefix)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, &RasterizeError{Detail: "engine produced no pages"}
	}

	images := make([]image.Image, 0, len(paths))
	for _, path := range paths {
		img, err := decodePage(path)
		if err != nil {
			return nil, &RasterizeError{Detail: fmt.Sprintf("decode %s: %v", filepath.Base(path), err)}
		}
		// Drop the file early so peak disk usage stays one page behind.
		_ = os.Remove(path)
		images = append(images, img)
	}
	return images, nil
}

func decodePage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}

// pageFiles lists the engine's page_N outputs in page order. pdftoppm pads
// page numbers to a uniform width, but we sort numerically anyway so mixed
// widths cannot reorder pages.
func pageFiles(prefix string) ([]string, error) {
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageIndex(matches[i]) < pageIndex(matches[j])
	})
	return matches, nil
}

func pageIndex(path string) int {
	name := strings.TrimSuffix(filepath.Base(path), ".png")
	idx := strings.LastIndex(name, "-")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(name[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

func engineDetail(stderr string, err error) string {
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		return err.Error()
	}
	// Keep a single diagnostic line; full output is too noisy for the
	// error chain and is not client-facing anyway.
	if i := strings.IndexByte(msg, '\n'); i > 0 {
		msg = msg[:i]
	}
	return msg
}
