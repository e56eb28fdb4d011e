package notify

import (
	"fmt"
	"strings"

	"github.com/Geldren1/nato-website-2/internal/models"
)

// Digest renders the change-set of a run as plain text, one block per posting
func Digest(result *models.RunResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %d new, %d amended\n", result.Source, len(result.New), len(result.Amendments))

	if len(result.New) > 0 {
		b.WriteString("\nNew opportunities\n")
		for _, p := range result.New {
			writePosting(&b, p, false)
		}
	}

	if len(result.Amendments) > 0 {
		b.WriteString("\nAmended opportunities\n")
		for _, p := range result.Amendments {
			writePosting(&b, p, true)
		}
	}

	return b.String()
}

func writePosting(b *strings.Builder, p *models.Posting, amended bool) {
	fmt.Fprintf(b, "- %s: %s\n", p.Code, p.DisplayName())
	if p.BidClosingDate != nil {
		fmt.Fprintf(b, "  Closing: %s\n", *p.BidClosingDate)
	}
	if p.ClarificationDeadline != nil {
		fmt.Fprintf(b, "  Clarifications: %s\n", *p.ClarificationDeadline)
	}
	if amended {
		fmt.Fprintf(b, "  Amendment %d", p.AmendmentCount)
		if len(p.LastChangedFields) > 0 {
			fmt.Fprintf(b, ", changed: %s", strings.Join(p.LastChangedFields, ", "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(b, "  %s\n", p.PageURL)
}
