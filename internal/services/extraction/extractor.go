package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Geldren1/nato-website-2/internal/interfaces"
	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

// Options tune the chunked protocol for one posting type
type Options struct {
	ChunkPages    int
	CharsPerPage  int
	ChunkDelay    time.Duration
	MinTextLength int
	Temperature   float32
}

// OptionsFromConfig resolves the options of a posting type from configuration
func OptionsFromConfig(cfg *common.ExtractionConfig, postingType models.PostingType) Options {
	return Options{
		ChunkPages:    cfg.ChunkPagesFor(string(postingType)),
		CharsPerPage:  cfg.CharsPerPage,
		ChunkDelay:    common.ParseDurationOr(cfg.ChunkDelay, time.Second),
		MinTextLength: cfg.MinTextLength,
		Temperature:   cfg.Temperature,
	}
}

// Extractor runs the chunked extraction protocol for one posting type.
// A nil backend selects pattern extraction.
type Extractor struct {
	def     *Definition
	backend interfaces.LLMService
	opts    Options
	logger  arbor.ILogger
}

var _ interfaces.FieldExtractor = (*Extractor)(nil)

// ForType returns the extractor for a posting type
func ForType(postingType models.PostingType, backend interfaces.LLMService, opts Options, logger arbor.ILogger) (*Extractor, error) {
	def, err := DefinitionFor(postingType)
	if err != nil {
		return nil, err
	}
	if opts.ChunkPages <= 0 {
		opts.ChunkPages = 5
	}
	if opts.CharsPerPage <= 0 {
		opts.CharsPerPage = 3000
	}
	return &Extractor{
		def:     def,
		backend: backend,
		opts:    opts,
		logger:  logger,
	}, nil
}

// PostingType returns the posting type handled by this extractor
func (e *Extractor) PostingType() models.PostingType {
	return e.def.PostingType
}

// TargetFields returns the backend keys requested for this posting type
func (e *Extractor) TargetFields() []string {
	return e.def.Keys()
}

// Extract produces the field map of a document. It never fails: backend
// problems degrade to fewer fields.
func (e *Extractor) Extract(ctx context.Context, input interfaces.ExtractionInput) models.FieldMap {
	if e.backend == nil {
		e.logger.Debug().Str("code", input.Code).Msg("No extraction backend configured, using pattern extraction")
		return PatternExtract(e.def, input.Text, input.PageTitle)
	}
	if len(strings.TrimSpace(input.Text)) < e.opts.MinTextLength {
		e.logger.Warn().
			Str("code", input.Code).
			Int("text_length", len(input.Text)).
			Msg("Document text too short, using pattern extraction")
		return PatternExtract(e.def, input.Text, input.PageTitle)
	}

	found := e.extractChunked(ctx, input)

	fields := make(models.FieldMap, len(found))
	for key, value := range found {
		output := e.def.OutputField(key)
		if _, exists := fields[output]; exists {
			continue
		}
		fields[output] = value
	}

	if _, ok := fields[models.FieldName]; !ok {
		if title := cleanTitle(input.PageTitle); title != "" {
			fields[models.FieldName] = title
		}
	}

	return fields
}

// extractChunked runs the backend over page chunks until every target field is filled.
// The first chunk to yield a value for a field wins.
func (e *Extractor) extractChunked(ctx context.Context, input interfaces.ExtractionInput) map[string]string {
	targets := e.def.Keys()
	found := make(map[string]string, len(targets))

	pages := SplitPages(input.Text, e.opts.CharsPerPage)
	chunks := ChunkPages(pages, e.opts.ChunkPages)

	limit := rate.Inf
	if e.opts.ChunkDelay > 0 {
		limit = rate.Every(e.opts.ChunkDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	calls := 0
	for _, chunk := range chunks {
		if allFilled(found, targets) {
			e.logger.Debug().
				Str("code", input.Code).
				Str("stopped_before", chunk.PageRange()).
				Msg("All target fields extracted")
			break
		}

		if err := limiter.Wait(ctx); err != nil {
			e.logger.Warn().Err(err).Str("code", input.Code).Msg("Extraction cancelled")
			break
		}

		calls++
		values, err := e.extractChunk(ctx, input.Code, chunk)
		if err != nil {
			e.logger.Warn().
				Err(err).
				Str("code", input.Code).
				Str("pages", chunk.PageRange()).
				Msg("Chunk extraction failed, continuing")
			continue
		}

		for _, key := range targets {
			if _, done := found[key]; done {
				continue
			}
			if value, ok := values[key]; ok {
				found[key] = value
			}
		}
	}

	e.logger.Info().
		Str("code", input.Code).
		Str("type", string(e.def.PostingType)).
		Int("pages", len(pages)).
		Int("chunks", len(chunks)).
		Int("backend_calls", calls).
		Int("fields_found", len(found)).
		Msg("Field extraction completed")

	return found
}

func (e *Extractor) extractChunk(ctx context.Context, code string, chunk Chunk) (map[string]string, error) {
	messages := []interfaces.Message{
		{Role: "system", Content: e.systemPrompt()},
		{Role: "user", Content: e.chunkPrompt(code, chunk)},
	}

	response, err := e.backend.Chat(ctx, messages, interfaces.ChatOptions{
		Temperature:  e.opts.Temperature,
		JSONResponse: true,
	})
	if err != nil {
		return nil, err
	}
	return ParseResponse(response)
}

func (e *Extractor) systemPrompt() string {
	return fmt.Sprintf("You extract structured information from %s documents. Always return valid JSON.", e.def.DocumentLabel)
}

func (e *Extractor) chunkPrompt(code string, chunk Chunk) string {
	if code == "" {
		code = "Not provided"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Extract the following information from this section of an %s document:\n\n", e.def.DocumentLabel)
	for i, f := range e.def.Fields {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, f.Key, f.Description)
	}
	fmt.Fprintf(&b, "\nOpportunity code (for reference): %s\n", code)
	fmt.Fprintf(&b, "This section contains: %s\n\n", chunk.PageRange())
	b.WriteString("Return a JSON object with exactly these keys: ")
	b.WriteString(strings.Join(e.def.Keys(), ", "))
	b.WriteString(". Use null for any field not present in this section. Do not make up information.\n\n")
	b.WriteString("Document section text:\n")
	b.WriteString(chunk.Text)
	return b.String()
}

func allFilled(found map[string]string, targets []string) bool {
	for _, key := range targets {
		if _, ok := found[key]; !ok {
			return false
		}
	}
	return true
}
