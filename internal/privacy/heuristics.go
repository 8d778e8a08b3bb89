package privacy

import "strings"

// FieldRule maps a known field name to the category its value is assumed to hold
type FieldRule struct {
	Category Category
	// Applies further restricts the rule to certain values. Nil means always.
	Applies func(value string) bool
}

// multiToken reports whether a value has two or more whitespace separated tokens
func multiToken(value string) bool {
	return len(strings.Fields(value)) >= 2
}

// DefaultFieldRules returns the fixed field-name table used once shape
// matching has failed
func DefaultFieldRules() map[string]FieldRule {
	return map[string]FieldRule{
		"name":      {Category: CategoryPersonName, Applies: multiToken},
		"full_name": {Category: CategoryPersonName, Applies: multiToken},
		"email":     {Category: CategoryEmail},
		"upi_id":    {Category: CategoryHandle},
		"passport":  {Category: CategoryPassport},
		"phone":     {Category: CategoryPhone},
		"aadhar":    {Category: CategoryNationalID},
	}
}

// QuasiIdentifierFields returns the fields whose co-occurrence triggers the
// composite rule
func QuasiIdentifierFields() []string {
	return []string{"name", "email", "address", "ip_address", "device_id"}
}

// MatchField returns the category implied by the field name for this value
func MatchField(field, value string) (Category, bool) {
	return matchField(DefaultFieldRules(), field, value)
}

func matchField(rules map[string]FieldRule, field, value string) (Category, bool) {
	rule, ok := rules[field]
	if !ok {
		return CategoryNone, false
	}
	if rule.Applies != nil && !rule.Applies(value) {
		return CategoryNone, false
	}
	return rule.Category, true
}
