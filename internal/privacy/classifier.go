package privacy

// Classifier decides per field whether and how a value is masked.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	rules  []ShapeRule
	fields map[string]FieldRule
}

// NewClassifier creates a classifier from an ordered list of shape rules and
// a field-name table
func NewClassifier(rules []ShapeRule, fields map[string]FieldRule) *Classifier {
	return &Classifier{
		rules:  rules,
		fields: fields,
	}
}

// DefaultClassifier returns a classifier with every built-in rule
func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultShapeRules(), DefaultFieldRules())
}

// Classify returns the classification of one field value.
//
// Shape rules are tried first and are independent of the field name, so a
// value shaped like local@domain in a field called "email" is masked as a
// handle, not as an email.
func (c *Classifier) Classify(field string, value any) FieldResult {
	result := FieldResult{Field: field, Value: value}

	text, ok := textValue(value)
	if !ok {
		return result
	}

	for _, rule := range c.rules {
		if rule.Matches(text) {
			return c.masked(result, text, rule.Category, SourceShape, rule.Mask)
		}
	}

	if category, ok := matchField(c.fields, field, text); ok {
		return c.masked(result, text, category, SourceFieldName, nil)
	}

	return result
}

func (c *Classifier) masked(result FieldResult, text string, category Category, source Source, fn MaskFunc) FieldResult {
	var out string
	if fn != nil {
		out = fn(text)
	} else {
		out = Mask(category, text)
	}

	result.Value = out
	result.Category = category
	result.Source = source
	result.Changed = out != text
	return result
}
