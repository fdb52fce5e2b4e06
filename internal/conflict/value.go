package conflict

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ValueKind is the comparable shape of a claim value
type ValueKind int

const (
	KindNone ValueKind = iota
	KindCategorical
	KindNumeric
)

// Value is the comparable content extracted from a claim text
type Value struct {
	Kind  ValueKind
	Label string // categorical: "positive" or "negative"
	Lo    float64
	Hi    float64
	Unit  string
}

const (
	LabelPositive = "positive"
	LabelNegative = "negative"
)

// String renders the value for tie-break records
func (v Value) String() string {
	switch v.Kind {
	case KindCategorical:
		return v.Label
	case KindNumeric:
		return formatInterval(v.Lo, v.Hi, v.Unit)
	default:
		return ""
	}
}

func formatInterval(lo, hi float64, unit string) string {
	var s string
	if lo == hi {
		s = strconv.FormatFloat(lo, 'f', -1, 64)
	} else {
		s = fmt.Sprintf("%s-%s", strconv.FormatFloat(lo, 'f', -1, 64), strconv.FormatFloat(hi, 'f', -1, 64))
	}
	if unit != "" {
		s += " " + unit
	}
	return s
}

// Overlaps reports whether two numeric values share any point
func (v Value) Overlaps(o Value) bool {
	return v.Lo <= o.Hi && o.Lo <= v.Hi
}

var (
	negativePhrases = []string{
		"not approved", "not been approved", "did not meet", "failed to meet",
		"not eligible", "not cleared", "not granted", "not safe", "not effective",
		"safety concern", "safety concerns", "complete response letter",
	}
	negativeTerms = []string{
		"rejected", "denied", "withdrawn", "failed", "suspended", "terminated",
		"hold", "warning", "unsafe", "ineffective", "negative",
	}
	positiveTerms = []string{
		"approved", "cleared", "granted", "eligible", "authorized", "authorised",
		"safe", "effective", "positive", "met", "recruiting", "completed",
	}

	negativeTermRe = wordsRegexp(negativeTerms)
	positiveTermRe = wordsRegexp(positiveTerms)

	unitPattern = `(%|mg/kg|mg/ml|mg|mcg|µg|ug|ml|kg|g|years?|months?|weeks?|days?|hours?|patients|participants|subjects)`
	numPattern  = `(\d+(?:\.\d+)?)`

	betweenRe = regexp.MustCompile(`between\s+` + numPattern + `\s*` + unitPattern + `?\s+and\s+` + numPattern + `\s*` + unitPattern + `?`)
	rangeRe   = regexp.MustCompile(numPattern + `\s*` + unitPattern + `?\s*(?:-|–|to)\s*` + numPattern + `\s*` + unitPattern + `?`)
	singleRe  = regexp.MustCompile(numPattern + `\s*` + unitPattern + `\b`)
	percentRe = regexp.MustCompile(numPattern + `\s*%`)
)

func wordsRegexp(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
}

// ParseValue extracts a categorical polarity or a numeric interval from text.
// Categorical polarity wins over numbers; text carrying both polarities has
// no value.
func ParseValue(text string) Value {
	lower := strings.ToLower(strings.Join(strings.Fields(text), " "))
	if lower == "" {
		return Value{}
	}

	negative := false
	rest := lower
	for _, phrase := range negativePhrases {
		if strings.Contains(rest, phrase) {
			negative = true
			rest = strings.ReplaceAll(rest, phrase, " ")
		}
	}
	if negativeTermRe.MatchString(rest) {
		negative = true
	}
	positive := positiveTermRe.MatchString(rest)

	switch {
	case positive && negative:
		return Value{}
	case positive:
		return Value{Kind: KindCategorical, Label: LabelPositive}
	case negative:
		return Value{Kind: KindCategorical, Label: LabelNegative}
	}

	return parseNumeric(lower)
}

func parseNumeric(lower string) Value {
	if m := betweenRe.FindStringSubmatch(lower); m != nil {
		return numericValue(m[1], m[3], firstNonEmpty(m[4], m[2]))
	}
	// Unitless dashed pairs are usually dates or identifiers
	if m := rangeRe.FindStringSubmatch(lower); m != nil && firstNonEmpty(m[4], m[2]) != "" {
		return numericValue(m[1], m[3], firstNonEmpty(m[4], m[2]))
	}
	if m := percentRe.FindStringSubmatch(lower); m != nil {
		return numericValue(m[1], m[1], "%")
	}
	if m := singleRe.FindStringSubmatch(lower); m != nil {
		return numericValue(m[1], m[1], m[2])
	}
	return Value{}
}

func numericValue(a, b, unit string) Value {
	lo, errA := strconv.ParseFloat(a, 64)
	hi, errB := strconv.ParseFloat(b, 64)
	if errA != nil || errB != nil {
		return Value{}
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return Value{Kind: KindNumeric, Lo: lo, Hi: hi, Unit: canonicalUnit(unit)}
}

func canonicalUnit(unit string) string {
	switch unit {
	case "µg", "ug":
		return "mcg"
	case "patients", "participants", "subjects":
		return "participants"
	case "years", "months", "weeks", "days", "hours":
		return strings.TrimSuffix(unit, "s")
	}
	return unit
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
