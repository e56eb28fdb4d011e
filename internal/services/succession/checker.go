package succession

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Geldren1/nato-website-2/internal/interfaces"
	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/ternarybob/arbor"
)

// Checker deactivates preliminary notices that a formal posting has superseded.
// "NOI-ACT-SACT-26-16" is superseded by any active non-NOI posting whose code
// ends in "ACT-SACT-26-16".
type Checker struct {
	storage interfaces.PostingStorage
	logger  arbor.ILogger
}

// NewChecker creates a succession checker
func NewChecker(storage interfaces.PostingStorage, logger arbor.ILogger) *Checker {
	return &Checker{storage: storage, logger: logger}
}

// Check runs one succession pass. Postings are never deleted or reactivated.
func (c *Checker) Check(ctx context.Context) *models.SuccessionResult {
	result := &models.SuccessionResult{
		SucceededCodes: []string{},
		StartTime:      time.Now().UTC(),
	}

	err := common.RunProtected(c.logger, "succession check", func() error {
		return c.check(ctx, result)
	})

	result.EndTime = time.Now().UTC()
	if err != nil {
		msg := err.Error()
		result.Error = &msg
		c.logger.Error().Err(err).Int("succeeded", result.SucceededCount).Msg("Succession check failed")
		return result
	}

	result.Success = true
	c.logger.Info().
		Int("checked", result.CheckedCount).
		Int("succeeded", result.SucceededCount).
		Strs("codes", result.SucceededCodes).
		Msg("Succession check completed")
	return result
}

func (c *Checker) check(ctx context.Context, result *models.SuccessionResult) error {
	active, err := c.storage.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active postings: %w", err)
	}

	successors := make(map[string][]string)
	var notices []*models.Posting
	for _, p := range active {
		if p.PostingType.IsPreliminary() {
			notices = append(notices, p)
			continue
		}
		if suffix := p.Suffix(); suffix != "" {
			successors[suffix] = append(successors[suffix], p.Code)
		}
	}
	sort.Slice(notices, func(i, j int) bool { return notices[i].Code < notices[j].Code })

	result.CheckedCount = len(notices)
	for _, notice := range notices {
		suffix := notice.Suffix()
		if suffix == "" {
			c.logger.Warn().Str("code", notice.Code).Msg("Notice code has no suffix, skipping")
			continue
		}

		by, ok := successors[suffix]
		if !ok {
			continue
		}

		if err := c.storage.SetActive(ctx, notice.Code, false); err != nil {
			return fmt.Errorf("failed to deactivate %s: %w", notice.Code, err)
		}

		result.SucceededCount++
		result.SucceededCodes = append(result.SucceededCodes, notice.Code)
		c.logger.Info().Str("code", notice.Code).Strs("succeeded_by", by).Msg("Notice superseded")
	}
	return nil
}
