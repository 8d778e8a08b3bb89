package privacy

// Category identifies the kind of PII a field value was classified as
type Category string

const (
	CategoryNone       Category = ""
	CategoryPhone      Category = "phone"
	CategoryNationalID Category = "national_id"
	CategoryPassport   Category = "passport"
	CategoryHandle     Category = "handle"
	CategoryEmail      Category = "email"
	CategoryPersonName Category = "person_name"
	// CategoryAddress is only ever produced by the composite rule
	CategoryAddress Category = "address"
)

// Source records which stage of classification produced a category
type Source string

const (
	SourceNone      Source = ""
	SourceShape     Source = "shape"
	SourceFieldName Source = "field_name"
	SourceComposite Source = "composite"
)

const (
	// MaskChar is the character used by every format-preserving mask
	MaskChar = "X"
	// RedactedSentinel replaces values that cannot be masked partially
	RedactedSentinel = "[REDACTED_PII]"
)

// FieldResult is the outcome of classifying a single field value
type FieldResult struct {
	Field    string
	Value    any
	Category Category
	Source   Source
	Changed  bool
}

// Finding describes one masked field. Values are never carried.
type Finding struct {
	Field    string   `json:"field"`
	Category Category `json:"category"`
	Source   Source   `json:"source"`
}

// RecordResult contains the outcome of analyzing one record
type RecordResult struct {
	Redacted         *Record   `json:"redacted"`
	IsPII            bool      `json:"is_pii"`
	Composite        bool      `json:"composite"`
	QuasiIdentifiers int       `json:"quasi_identifiers"`
	Findings         []Finding `json:"findings"`
}

// CategoryCounts tallies findings by category
func (r RecordResult) CategoryCounts() map[Category]int {
	counts := make(map[Category]int, len(r.Findings))
	for _, f := range r.Findings {
		counts[f.Category]++
	}
	return counts
}

// textValue reports whether v is a non-empty string
func textValue(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
