package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/siteqa/internal/domain"
	"github.com/kailas-cloud/siteqa/internal/domain/text"
)

// PDF converts the first PDFMaxPages pages of a PDF with pdftotext. The staged
// files live in a private temp dir that is removed on every path.
func (e *Extractor) PDF(ctx context.Context, body []byte) (string, error) {
	dir, err := os.MkdirTemp("", "siteqa-pdf-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("Failed to remove pdf staging dir", zap.String("dir", dir), zap.Error(err))
		}
	}()

	in := filepath.Join(dir, "doc.pdf")
	out := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(in, body, 0o600); err != nil {
		return "", fmt.Errorf("stage pdf: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.cfg.PDFToText,
		"-q", "-layout",
		"-enc", "UTF-8",
		"-f", "1",
		"-l", strconv.Itoa(e.cfg.PDFMaxPages),
		in, out,
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: pdftotext: %v: %s", domain.ErrExtractionFailed, err, stderr.String())
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		return "", fmt.Errorf("%w: read pdftotext output: %v", domain.ErrExtractionFailed, err)
	}
	return text.NormalizeWhitespace(string(raw)), nil
}
