package privacy

import "regexp"

// ShapeRule recognizes a PII category from the shape of a value alone
type ShapeRule struct {
	Name     string
	Category Category
	Pattern  *regexp.Regexp
	Mask     MaskFunc
}

// Matches reports whether the whole value has the rule's shape
func (r ShapeRule) Matches(value string) bool {
	return r.Pattern.MatchString(value)
}

// Patterns are anchored so that only a full match counts. Digits and word
// characters are Unicode classes; the passport digits stay ASCII. A handle
// must start with a word character.
var (
	phonePattern      = regexp.MustCompile(`^\p{Nd}{10}$`)
	nationalIDPattern = regexp.MustCompile(`^\p{Nd}{12}$`)
	passportPattern   = regexp.MustCompile(`^[A-PR-WYa-pr-wy][0-9]{7}$`)
	handlePattern     = regexp.MustCompile(`^[\pL\pN_][\pL\pN_.\-]*@[\pL\pN_]+$`)
)

// DefaultShapeRules returns the shape rules in precedence order.
// The first matching rule wins.
func DefaultShapeRules() []ShapeRule {
	return []ShapeRule{
		{Name: "phone", Category: CategoryPhone, Pattern: phonePattern, Mask: MaskPhone},
		{Name: "national_id", Category: CategoryNationalID, Pattern: nationalIDPattern, Mask: MaskNationalID},
		{Name: "passport", Category: CategoryPassport, Pattern: passportPattern, Mask: MaskPassport},
		{Name: "handle", Category: CategoryHandle, Pattern: handlePattern, Mask: MaskHandle},
	}
}

// MatchShape returns the first default rule category that fully matches value
func MatchShape(value string) (Category, bool) {
	for _, rule := range DefaultShapeRules() {
		if rule.Matches(value) {
			return rule.Category, true
		}
	}
	return CategoryNone, false
}
