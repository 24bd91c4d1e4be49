package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kailas-cloud/siteqa/internal/domain"
)

const docxBody = "word/document.xml"

// DOCX returns the paragraphs of word/document.xml joined with newlines.
func (e *Extractor) DOCX(body []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("%w: open docx: %v", domain.ErrExtractionFailed, err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			part = f
			break
		}
	}
	if part == nil {
		return "", fmt.Errorf("%w: %s missing", domain.ErrExtractionFailed, docxBody)
	}

	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", domain.ErrExtractionFailed, docxBody, err)
	}
	defer func() { _ = rc.Close() }()

	paragraphs, err := docxParagraphs(io.LimitReader(rc, e.cfg.MaxDocumentBytes))
	if err != nil {
		return "", fmt.Errorf("%w: parse %s: %v", domain.ErrExtractionFailed, docxBody, err)
	}
	return strings.Join(paragraphs, "\n"), nil
}

// docxParagraphs streams w:p elements, collecting w:t runs and mapping w:tab and
// w:br to whitespace.
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		out    []string
		cur    strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				cur.WriteByte('\t')
			case "br", "cr":
				cur.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if p := strings.TrimSpace(cur.String()); p != "" {
					out = append(out, p)
				}
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	if p := strings.TrimSpace(cur.String()); p != "" {
		out = append(out, p)
	}
	return out, nil
}
