package reconciler

import (
	"time"

	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/Geldren1/nato-website-2/internal/services/dates"
)

// observation is what one visit learned about a posting
type observation struct {
	code    string
	source  *models.Source
	info    *models.PageInfo
	fields  models.FieldMap
	amended bool
}

// newPosting builds the first stored version of a posting
func newPosting(obs *observation, now time.Time) *models.Posting {
	p := &models.Posting{
		Code:             obs.code,
		PostingType:      obs.source.PostingType,
		IssuingBody:      obs.source.IssuingBody,
		PageURL:          obs.info.PageURL,
		DocumentURL:      obs.info.DocumentURL,
		SourceListingURL: obs.source.ListingURL,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
		LastCheckedAt:    timePtr(now),
		ExtractedAt:      timePtr(now),
	}

	for _, name := range models.ContentFields {
		if v := obs.fields.Get(name); v != nil {
			p.SetField(name, v)
		}
	}
	dates.ApplyParsed(p)
	p.ContentHash = p.ComputeContentHash()
	return p
}

// mergePosting applies an observation to a stored posting. Only non-null values
// that differ are written; nulls never erase stored content.
func mergePosting(stored *models.Posting, obs *observation, now time.Time) *models.Posting {
	p := stored.Clone()

	changed := make([]string, 0)
	for _, name := range models.ContentFields {
		v := obs.fields.Get(name)
		if v == nil {
			continue
		}
		if current := p.Field(name); current != nil && *current == *v {
			continue
		}
		p.SetField(name, v)
		changed = append(changed, name)
	}
	dates.ApplyParsed(p)
	p.MergeChangedFields(changed)

	if hash := p.ComputeContentHash(); hash != p.ContentHash {
		p.ContentHash = hash
		p.UpdateCount++
		p.LastContentUpdate = timePtr(now)
	}

	if obs.amended {
		p.AmendmentCount++
		p.HasAmendments = true
		p.LastAmendmentAt = timePtr(now)
	}

	p.PageURL = obs.info.PageURL
	if obs.info.DocumentURL != nil {
		p.DocumentURL = obs.info.DocumentURL
	}
	if p.SourceListingURL == "" {
		p.SourceListingURL = obs.source.ListingURL
	}

	p.UpdatedAt = now
	p.LastCheckedAt = timePtr(now)
	p.ExtractedAt = timePtr(now)
	return p
}

func timePtr(t time.Time) *time.Time {
	return &t
}
