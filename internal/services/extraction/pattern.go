package extraction

import (
	"regexp"
	"strings"

	"github.com/Geldren1/nato-website-2/internal/models"
)

// labelPatterns find "Label: value" lines for fields when no backend is available.
// The first capture group is the value.
var labelPatterns = map[string]*regexp.Regexp{
	models.FieldBidClosingDate: labelRegex(
		`bid\s+closing\s+date`, `bid\s+submission\s+deadline`, `submission\s+deadline`,
		`closing\s+date(?:\s+and\s+time)?`, `deadline\s+for\s+submissions?`,
		`bids\s+must\s+be\s+received\s+(?:no\s+later\s+than|by)`, `response\s+due\s+date`, `due\s+date`,
	),
	models.FieldClarificationDeadline: labelRegex(
		`clarification\s+questions?\s+deadline`, `clarification\s+deadline`,
		`deadline\s+for\s+(?:clarifications?|questions)`, `questions\s+must\s+be\s+submitted\s+by`,
	),
	models.FieldExpectedContractAwardDate: labelRegex(
		`expected\s+contract\s+award(?:\s+date)?`, `anticipated\s+contract\s+award(?:\s+date)?`, `contract\s+award\s+date`,
	),
	models.FieldTargetIssueDate: labelRegex(
		`target\s+issue\s+date`, `expected\s+issue\s+date`, `planned\s+issue\s+date`,
	),
	models.FieldContractType: labelRegex(
		`type\s+of\s+contract`, `contract\s+type`,
	),
	models.FieldEstimatedValue: labelRegex(
		`estimated\s+contract\s+value`, `estimated\s+value`,
	),
}

func labelRegex(labels ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)(?:` + strings.Join(labels, "|") + `)\s*(?:is|:|-|–)?\s*([^\n]{3,160})`)
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// PatternExtract fills the output fields of def from labelled lines in the text,
// taking the name from the page title.
func PatternExtract(def *Definition, text, pageTitle string) models.FieldMap {
	fields := make(models.FieldMap)

	if title := cleanTitle(pageTitle); title != "" {
		fields[models.FieldName] = title
	}

	for _, key := range def.Keys() {
		output := def.OutputField(key)
		if output == models.FieldName {
			continue
		}
		if _, done := fields[output]; done {
			continue
		}
		re, ok := labelPatterns[output]
		if !ok {
			continue
		}
		if value, found := matchLabel(re, text, isDateField(output)); found {
			fields[output] = value
		}
	}
	return fields
}

func matchLabel(re *regexp.Regexp, text string, wantDigit bool) (string, bool) {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		value := strings.Trim(whitespaceRegex.ReplaceAllString(m[1], " "), " .;:")
		if value == "" || IsSentinel(value) {
			continue
		}
		if wantDigit && !strings.ContainsAny(value, "0123456789") {
			continue
		}
		return value, true
	}
	return "", false
}

func isDateField(name string) bool {
	for _, f := range models.DateFields {
		if f == name {
			return true
		}
	}
	return false
}

func cleanTitle(title string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(title, " "))
}
