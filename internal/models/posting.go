package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// PostingType identifies the kind of procurement posting
type PostingType string

const (
	// PostingTypeNOI is a Notification of Intent, the preliminary notice
	PostingTypeNOI PostingType = "NOI"
	// PostingTypeIFIB is an Invitation for International Bidding
	PostingTypeIFIB PostingType = "IFIB"
	// PostingTypeRFI is a Request for Information
	PostingTypeRFI PostingType = "RFI"
	// PostingTypeRFIP is a Request for Innovation Proposals
	PostingTypeRFIP PostingType = "RFIP"
)

// IsPreliminary reports whether postings of this type are superseded by formal postings
func (t PostingType) IsPreliminary() bool {
	return t == PostingTypeNOI
}

// ParsePostingType normalises a posting type name
func ParsePostingType(s string) (PostingType, bool) {
	switch PostingType(strings.ToUpper(strings.TrimSpace(s))) {
	case PostingTypeNOI:
		return PostingTypeNOI, true
	case PostingTypeIFIB:
		return PostingTypeIFIB, true
	case PostingTypeRFI:
		return PostingTypeRFI, true
	case PostingTypeRFIP:
		return PostingTypeRFIP, true
	}
	return "", false
}

// Content field names. These are the keys of extraction field maps and the
// values recorded in LastChangedFields.
const (
	FieldName                      = "name"
	FieldContractType              = "contract_type"
	FieldEstimatedValue            = "estimated_value"
	FieldCurrency                  = "currency"
	FieldContractDuration          = "contract_duration"
	FieldDocumentClassification    = "document_classification"
	FieldEligibleOrganizationTypes = "eligible_organization_types"
	FieldClarificationDeadline     = "clarification_deadline"
	FieldBidClosingDate            = "bid_closing_date"
	FieldExpectedContractAwardDate = "expected_contract_award_date"
	FieldTargetIssueDate           = "target_issue_date"
	FieldSubmissionInstructions    = "submission_instructions"
	FieldContactPerson             = "contact_person"
	FieldContactEmail              = "contact_email"
	FieldSummary                   = "summary"
)

// ContentFields lists every content field in hashing order
var ContentFields = []string{
	FieldName,
	FieldContractType,
	FieldEstimatedValue,
	FieldCurrency,
	FieldContractDuration,
	FieldDocumentClassification,
	FieldEligibleOrganizationTypes,
	FieldClarificationDeadline,
	FieldBidClosingDate,
	FieldExpectedContractAwardDate,
	FieldTargetIssueDate,
	FieldSubmissionInstructions,
	FieldContactPerson,
	FieldContactEmail,
	FieldSummary,
}

// DateFields lists the as-written date fields that have a parsed sibling
var DateFields = []string{
	FieldClarificationDeadline,
	FieldBidClosingDate,
	FieldExpectedContractAwardDate,
	FieldTargetIssueDate,
}

// Posting is a persisted procurement opportunity
type Posting struct {
	// Identity
	Code        string      `json:"code"`
	PostingType PostingType `json:"posting_type"`
	IssuingBody string      `json:"issuing_body"`

	// Source pointers
	PageURL          string  `json:"page_url"`
	DocumentURL      *string `json:"document_url,omitempty"`
	SourceListingURL string  `json:"source_listing_url"`

	// Extracted content
	Name                            *string    `json:"name,omitempty"`
	ContractType                    *string    `json:"contract_type,omitempty"`
	EstimatedValue                  *string    `json:"estimated_value,omitempty"`
	Currency                        *string    `json:"currency,omitempty"`
	ContractDuration                *string    `json:"contract_duration,omitempty"`
	DocumentClassification          *string    `json:"document_classification,omitempty"`
	EligibleOrganizationTypes       *string    `json:"eligible_organization_types,omitempty"`
	ClarificationDeadline           *string    `json:"clarification_deadline,omitempty"`
	ClarificationDeadlineParsed     *time.Time `json:"clarification_deadline_parsed,omitempty"`
	BidClosingDate                  *string    `json:"bid_closing_date,omitempty"`
	BidClosingDateParsed            *time.Time `json:"bid_closing_date_parsed,omitempty"`
	ExpectedContractAwardDate       *string    `json:"expected_contract_award_date,omitempty"`
	ExpectedContractAwardDateParsed *time.Time `json:"expected_contract_award_date_parsed,omitempty"`
	TargetIssueDate                 *string    `json:"target_issue_date,omitempty"`
	TargetIssueDateParsed           *time.Time `json:"target_issue_date_parsed,omitempty"`
	SubmissionInstructions          *string    `json:"submission_instructions,omitempty"`
	ContactPerson                   *string    `json:"contact_person,omitempty"`
	ContactEmail                    *string    `json:"contact_email,omitempty"`
	Summary                         *string    `json:"summary,omitempty"`

	// Change tracking
	ContentHash       string     `json:"content_hash"`
	UpdateCount       int        `json:"update_count"`
	LastChangedFields []string   `json:"last_changed_fields,omitempty"`
	LastContentUpdate *time.Time `json:"last_content_update,omitempty"`

	// Amendment tracking
	AmendmentCount  int        `json:"amendment_count"`
	HasAmendments   bool       `json:"has_amendments"`
	LastAmendmentAt *time.Time `json:"last_amendment_at,omitempty"`

	// Lifecycle
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	ExtractedAt   *time.Time `json:"extracted_at,omitempty"`
	RemovedAt     *time.Time `json:"removed_at,omitempty"`
}

// fieldRef returns the storage slot for a content field, or nil for unknown names
func (p *Posting) fieldRef(name string) **string {
	switch name {
	case FieldName:
		return &p.Name
	case FieldContractType:
		return &p.ContractType
	case FieldEstimatedValue:
		return &p.EstimatedValue
	case FieldCurrency:
		return &p.Currency
	case FieldContractDuration:
		return &p.ContractDuration
	case FieldDocumentClassification:
		return &p.DocumentClassification
	case FieldEligibleOrganizationTypes:
		return &p.EligibleOrganizationTypes
	case FieldClarificationDeadline:
		return &p.ClarificationDeadline
	case FieldBidClosingDate:
		return &p.BidClosingDate
	case FieldExpectedContractAwardDate:
		return &p.ExpectedContractAwardDate
	case FieldTargetIssueDate:
		return &p.TargetIssueDate
	case FieldSubmissionInstructions:
		return &p.SubmissionInstructions
	case FieldContactPerson:
		return &p.ContactPerson
	case FieldContactEmail:
		return &p.ContactEmail
	case FieldSummary:
		return &p.Summary
	}
	return nil
}

// ParsedRef returns the parsed-timestamp slot for a date field, or nil
func (p *Posting) ParsedRef(name string) **time.Time {
	switch name {
	case FieldClarificationDeadline:
		return &p.ClarificationDeadlineParsed
	case FieldBidClosingDate:
		return &p.BidClosingDateParsed
	case FieldExpectedContractAwardDate:
		return &p.ExpectedContractAwardDateParsed
	case FieldTargetIssueDate:
		return &p.TargetIssueDateParsed
	}
	return nil
}

// Field returns the value of a content field (nil when absent or unknown)
func (p *Posting) Field(name string) *string {
	if ref := p.fieldRef(name); ref != nil {
		return *ref
	}
	return nil
}

// SetField assigns a content field. Returns false for unknown field names.
func (p *Posting) SetField(name string, value *string) bool {
	ref := p.fieldRef(name)
	if ref == nil {
		return false
	}
	if value == nil {
		*ref = nil
		return true
	}
	v := *value
	*ref = &v
	return true
}

// ComputeContentHash fingerprints all content fields
func (p *Posting) ComputeContentHash() string {
	h := sha256.New()
	for _, name := range ContentFields {
		h.Write([]byte(name))
		h.Write([]byte{'='})
		if v := p.Field(name); v != nil {
			h.Write([]byte(*v))
		}
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// MergeChangedFields unions names into LastChangedFields, keeping the set sorted
func (p *Posting) MergeChangedFields(names []string) {
	if len(names) == 0 {
		return
	}
	set := make(map[string]struct{}, len(p.LastChangedFields)+len(names))
	for _, n := range p.LastChangedFields {
		set[n] = struct{}{}
	}
	for _, n := range names {
		set[n] = struct{}{}
	}
	merged := make([]string, 0, len(set))
	for n := range set {
		merged = append(merged, n)
	}
	sort.Strings(merged)
	p.LastChangedFields = merged
}

// Suffix returns the business key without its type prefix:
// everything after the first hyphen ("NOI-ACT-SACT-26-16" -> "ACT-SACT-26-16").
func (p *Posting) Suffix() string {
	return CodeSuffix(p.Code)
}

// CodeSuffix returns everything after the first hyphen of a business key
func CodeSuffix(code string) string {
	if i := strings.Index(code, "-"); i >= 0 && i < len(code)-1 {
		return code[i+1:]
	}
	return ""
}

// DisplayName returns the name or the code when no name was extracted
func (p *Posting) DisplayName() string {
	if p.Name != nil && *p.Name != "" {
		return *p.Name
	}
	return p.Code
}

// Clone returns a deep copy
func (p *Posting) Clone() *Posting {
	if p == nil {
		return nil
	}
	c := *p
	for _, name := range ContentFields {
		c.SetField(name, p.Field(name))
	}
	for _, name := range DateFields {
		if src := *p.ParsedRef(name); src != nil {
			t := *src
			*c.ParsedRef(name) = &t
		}
	}
	if p.DocumentURL != nil {
		d := *p.DocumentURL
		c.DocumentURL = &d
	}
	if p.LastChangedFields != nil {
		c.LastChangedFields = append([]string(nil), p.LastChangedFields...)
	}
	c.LastContentUpdate = cloneTime(p.LastContentUpdate)
	c.LastAmendmentAt = cloneTime(p.LastAmendmentAt)
	c.LastCheckedAt = cloneTime(p.LastCheckedAt)
	c.ExtractedAt = cloneTime(p.ExtractedAt)
	c.RemovedAt = cloneTime(p.RemovedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// FieldMap is the output of field extraction: field name to value.
// A missing key means the field was not found.
type FieldMap map[string]string

// Get returns a pointer to the value or nil when absent
func (m FieldMap) Get(name string) *string {
	if v, ok := m[name]; ok {
		return &v
	}
	return nil
}
