package extraction

import (
	"fmt"

	"github.com/Geldren1/nato-website-2/internal/models"
)

// Backend-only keys that are renamed before reaching the posting
const (
	keyBidSubmissionDeadline = "bid_submission_deadline"
	keyTargetBidClosingDate  = "target_bid_closing_date"
)

// FieldSpec is one field requested from the backend
type FieldSpec struct {
	Key         string
	Description string
}

// Definition holds everything type-specific about extraction
type Definition struct {
	PostingType   models.PostingType
	DocumentLabel string
	Fields        []FieldSpec
	// Renames maps backend keys to posting field names
	Renames map[string]string
}

// Keys returns the backend keys of the target fields in prompt order
func (d *Definition) Keys() []string {
	keys := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		keys = append(keys, f.Key)
	}
	return keys
}

// OutputField returns the posting field a backend key is stored under
func (d *Definition) OutputField(key string) string {
	if renamed, ok := d.Renames[key]; ok {
		return renamed
	}
	return key
}

const dateGuidance = "Give the date exactly as written, including the time and timezone when the document states them."

var nameField = FieldSpec{
	Key:         models.FieldName,
	Description: "The full descriptive title of the opportunity, usually near the opportunity code or at the start of the document.",
}

var definitions = map[models.PostingType]*Definition{
	models.PostingTypeIFIB: {
		PostingType:   models.PostingTypeIFIB,
		DocumentLabel: "IFIB (Invitation for International Bidding)",
		Fields: []FieldSpec{
			nameField,
			{models.FieldBidClosingDate, `The bid closing date or submission deadline ("Bid closing date", "Closing date", "Bids must be received by"). ` + dateGuidance},
			{models.FieldClarificationDeadline, `The deadline for clarification questions ("Clarification deadline", "Questions must be submitted by"). ` + dateGuidance},
			{models.FieldExpectedContractAwardDate, `The expected contract award date ("Expected award", "Anticipated contract award"). ` + dateGuidance},
		},
	},
	models.PostingTypeNOI: {
		PostingType:   models.PostingTypeNOI,
		DocumentLabel: "NOI (Notification of Intent)",
		Fields: []FieldSpec{
			nameField,
			{models.FieldContractType, `The type of contract, e.g. "Firm Fixed Price" or "Time and Materials" ("Type of Contract", "Contracting method").`},
			{models.FieldEstimatedValue, `The estimated contract value with its currency, e.g. "EUR 500,000" ("Estimated value", "Budget").`},
			{models.FieldTargetIssueDate, `The date the solicitation is expected to be issued ("Target issue date", "Planned issue date"). ` + dateGuidance},
			{keyTargetBidClosingDate, `The planned bid closing date ("Target bid closing date", "Expected closing date"). ` + dateGuidance},
		},
		Renames: map[string]string{keyTargetBidClosingDate: models.FieldBidClosingDate},
	},
	models.PostingTypeRFI: {
		PostingType:   models.PostingTypeRFI,
		DocumentLabel: "RFI (Request for Information)",
		Fields: []FieldSpec{
			nameField,
			{models.FieldClarificationDeadline, `The deadline for clarification questions ("Clarification deadline", "Deadline for questions"). ` + dateGuidance},
			{models.FieldBidClosingDate, `The due date for the RFI response ("Due date", "Response deadline", "Closing date"). ` + dateGuidance},
		},
	},
	models.PostingTypeRFIP: {
		PostingType:   models.PostingTypeRFIP,
		DocumentLabel: "RFIP (Request for Innovation Proposals)",
		Fields: []FieldSpec{
			{models.FieldName, nameField.Description + ` It may read like "Innovation Challenge" followed by a date or theme.`},
			{keyBidSubmissionDeadline, `The proposal submission deadline ("Bid submission deadline", "Proposal deadline", "Submission due date"). ` + dateGuidance},
		},
		Renames: map[string]string{keyBidSubmissionDeadline: models.FieldBidClosingDate},
	},
}

// DefinitionFor returns the extraction definition of a posting type
func DefinitionFor(postingType models.PostingType) (*Definition, error) {
	def, ok := definitions[postingType]
	if !ok {
		return nil, fmt.Errorf("no extractor for posting type %q", postingType)
	}
	return def, nil
}
