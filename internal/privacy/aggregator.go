package privacy

// CompositeThreshold is the number of populated quasi-identifier fields at
// which a record is treated as PII as a whole
const CompositeThreshold = 2

// compositeMasks lists the quasi-identifier fields that are re-masked when
// the composite rule fires, in the order they are applied
var compositeMasks = []struct {
	field    string
	category Category
}{
	{"name", CategoryPersonName},
	{"email", CategoryEmail},
	{"address", CategoryAddress},
}

// Aggregation is the outcome of the composite rule for one record
type Aggregation struct {
	QuasiIdentifiers int
	Fired            bool
	Findings         []Finding
}

// Aggregate applies the composite rule. It counts populated quasi-identifier
// fields in the original record and, at or above the threshold, overwrites
// name, email and address in redacted with masks computed from the original
// values, never from already-masked text.
func Aggregate(original, redacted *Record) Aggregation {
	var agg Aggregation
	for _, field := range QuasiIdentifierFields() {
		if _, ok := original.Text(field); ok {
			agg.QuasiIdentifiers++
		}
	}

	if agg.QuasiIdentifiers < CompositeThreshold {
		return agg
	}
	agg.Fired = true

	for _, m := range compositeMasks {
		value, ok := original.Text(m.field)
		if !ok {
			continue
		}
		redacted.Set(m.field, Mask(m.category, value))
		agg.Findings = append(agg.Findings, Finding{
			Field:    m.field,
			Category: m.category,
			Source:   SourceComposite,
		})
	}

	return agg
}
