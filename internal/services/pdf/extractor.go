// -----------------------------------------------------------------------
// PDF text extraction
// pdfcpu validates the document and counts pages; page text is read with
// font encodings and ToUnicode maps applied. Pages that yield nothing fall
// back to scanning the pdfcpu-decoded content streams.
// -----------------------------------------------------------------------

package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/Geldren1/nato-website-2/internal/interfaces"
	pdftext "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
)

// PageMarker is written before the text of every page
const PageMarker = "--- PAGE %d ---"

// Extractor implements TextExtractor
type Extractor struct {
	logger  arbor.ILogger
	tempDir string
}

// Compile-time interface assertion
var _ interfaces.TextExtractor = (*Extractor)(nil)

// NewExtractor creates a new PDF extractor service. The work directory is
// created on first use.
func NewExtractor(logger arbor.ILogger) *Extractor {
	return &Extractor{
		logger:  logger,
		tempDir: filepath.Join(os.TempDir(), "nato-scraper-pdf"),
	}
}

var contentPageRegex = regexp.MustCompile(`Content_page_(\d+)`)

// ExtractText converts PDF bytes into page-marked text. Pages without
// recoverable text still get a marker so page numbering stays aligned.
func (e *Extractor) ExtractText(ctx context.Context, document []byte) (string, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(document, " \t\r\n"), []byte("%PDF")) {
		return "", fmt.Errorf("document is not a PDF")
	}

	if err := os.MkdirAll(e.tempDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create extraction directory: %w", err)
	}
	workDir, err := os.MkdirTemp(e.tempDir, "extract-")
	if err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	tempFile := filepath.Join(workDir, "document.pdf")
	if err := os.WriteFile(tempFile, document, 0644); err != nil {
		return "", fmt.Errorf("failed to write temp PDF file: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF context: %w", err)
	}
	pageCount := pdfCtx.PageCount

	if err := ctx.Err(); err != nil {
		return "", err
	}

	pageTexts := e.readPages(document)

	missing := 0
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		if pageTexts[pageNum] == "" {
			missing++
		}
	}
	if missing > 0 {
		for pageNum, text := range e.scanContentStreams(tempFile, workDir) {
			if pageTexts[pageNum] == "" && text != "" {
				pageTexts[pageNum] = text
			}
		}
	}

	var text strings.Builder
	withText := 0
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		if pageNum > 1 {
			text.WriteString("\n\n")
		}
		text.WriteString(fmt.Sprintf(PageMarker, pageNum))
		text.WriteString("\n")
		text.WriteString(pageTexts[pageNum])
		if pageTexts[pageNum] != "" {
			withText++
		}
	}

	e.logger.Debug().
		Int("page_count", pageCount).
		Int("pages_with_text", withText).
		Int("text_length", text.Len()).
		Msg("Extracted PDF text")

	return text.String(), nil
}

// readPages returns the decoded text of every page keyed by page number.
// Rows are emitted top to bottom, one line each.
func (e *Extractor) readPages(document []byte) map[int]string {
	pageTexts := make(map[int]string)

	reader, err := pdftext.NewReader(bytes.NewReader(document), int64(len(document)))
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to open PDF for text decoding, scanning content streams")
		return pageTexts
	}

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := pageText(page)
		if err != nil {
			e.logger.Warn().Err(err).Int("page", pageNum).Msg("Failed to decode page text")
			continue
		}
		pageTexts[pageNum] = text
	}
	return pageTexts
}

func pageText(page pdftext.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page: %v", r)
		}
	}()

	rows, err := page.GetTextByRow()
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		var line strings.Builder
		for _, word := range row.Content {
			line.WriteString(word.S)
		}
		if s := strings.TrimSpace(line.String()); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// scanContentStreams decodes page content streams with pdfcpu and collects the
// shown strings without font decoding
func (e *Extractor) scanContentStreams(tempFile, workDir string) map[int]string {
	pageTexts := make(map[int]string)

	outDir := filepath.Join(workDir, "pages")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to create content directory")
		return pageTexts
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to extract PDF content streams")
		return pageTexts
	}

	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		match := contentPageRegex.FindStringSubmatch(file.Name())
		if match == nil {
			continue
		}
		pageNum, _ := strconv.Atoi(match[1])
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			e.logger.Warn().Err(err).Int("page", pageNum).Msg("Failed to read extracted page content")
			continue
		}
		pageTexts[pageNum] = ContentStreamText(content)
	}
	return pageTexts
}
