package privacy

import (
	"fmt"
	"sort"

	"github.com/raaihank/pii-sentinel/internal/config"
	"github.com/raaihank/pii-sentinel/internal/logger"
	"go.uber.org/zap"
)

// Detector handles PII classification and masking of records
type Detector struct {
	classifier *Classifier
	enabled    map[string]bool
	logger     *logger.Logger
	config     config.PrivacyConfig
}

// New creates a new PII detector instance
func New(cfg config.PrivacyConfig, log *logger.Logger) (*Detector, error) {
	detector := &Detector{
		enabled: make(map[string]bool),
		logger:  log,
		config:  cfg,
	}

	rules, err := detector.configureDetectors(DefaultShapeRules(), cfg.Detectors)
	if err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}
	detector.classifier = NewClassifier(rules, DefaultFieldRules())

	log.Info("Privacy detector initialized",
		zap.Bool("enabled", cfg.Enabled),
		zap.Int("total_rules", len(DefaultShapeRules())),
		zap.Int("enabled_rules", len(rules)),
	)

	return detector, nil
}

// configureDetectors keeps the shape rules named in detectors, preserving
// their precedence order
func (d *Detector) configureDetectors(all []ShapeRule, detectors []string) ([]ShapeRule, error) {
	for _, rule := range all {
		d.enabled[rule.Name] = false
	}

	for _, detector := range detectors {
		if detector == "all" {
			for _, rule := range all {
				d.enabled[rule.Name] = true
			}
			continue
		}

		if _, known := d.enabled[detector]; !known {
			return nil, fmt.Errorf("unknown detector: %s", detector)
		}
		d.enabled[detector] = true
	}

	rules := make([]ShapeRule, 0, len(all))
	for _, rule := range all {
		if d.enabled[rule.Name] {
			rules = append(rules, rule)
		}
	}
	return rules, nil
}

// AnalyzeRecord classifies every field of rec and applies the composite rule.
// rec is never modified.
func (d *Detector) AnalyzeRecord(rec *Record) RecordResult {
	if !d.config.Enabled {
		return RecordResult{Redacted: rec.Clone(), Findings: []Finding{}}
	}

	result := d.classifier.AnalyzeRecord(rec)

	for _, f := range result.Findings {
		d.logger.Debug("PII detected and masked",
			zap.String("field", f.Field),
			zap.String("category", string(f.Category)),
			zap.String("source", string(f.Source)),
		)
	}
	if result.Composite {
		d.logger.Debug("Composite rule fired",
			zap.Int("quasi_identifiers", result.QuasiIdentifiers),
		)
	}

	return result
}

// AnalyzePayload decodes a serialized record and analyzes it. A payload that
// cannot be decoded is analyzed as an empty record; the decode error is
// returned alongside for the caller to report.
func (d *Detector) AnalyzePayload(payload []byte) (RecordResult, error) {
	rec, err := DecodeRecord(payload)
	if err != nil {
		return d.AnalyzeRecord(rec), fmt.Errorf("failed to decode record payload: %w", err)
	}
	return d.AnalyzeRecord(rec), nil
}

// GetEnabledRules returns the names of enabled shape rules
func (d *Detector) GetEnabledRules() []string {
	var enabled []string
	for ruleName, isEnabled := range d.enabled {
		if isEnabled {
			enabled = append(enabled, ruleName)
		}
	}
	sort.Strings(enabled)
	return enabled
}

// Enabled reports whether masking is switched on
func (d *Detector) Enabled() bool {
	return d.config.Enabled
}

// AnalyzeRecord runs per-field classification followed by the composite rule
func (c *Classifier) AnalyzeRecord(rec *Record) RecordResult {
	redacted := rec.Clone()
	result := RecordResult{
		Redacted: redacted,
		Findings: []Finding{},
	}

	for _, key := range rec.Keys() {
		value, _ := rec.Get(key)
		fr := c.Classify(key, value)
		if !fr.Changed {
			continue
		}
		redacted.Set(key, fr.Value)
		result.IsPII = true
		result.Findings = append(result.Findings, Finding{
			Field:    key,
			Category: fr.Category,
			Source:   fr.Source,
		})
	}

	agg := Aggregate(rec, redacted)
	result.QuasiIdentifiers = agg.QuasiIdentifiers
	if agg.Fired {
		result.IsPII = true
		result.Composite = true
		result.Findings = mergeFindings(result.Findings, agg.Findings)
	}

	return result
}

// mergeFindings replaces findings for fields the composite rule re-masked
func mergeFindings(findings, composite []Finding) []Finding {
	replaced := make(map[string]Finding, len(composite))
	for _, f := range composite {
		replaced[f.Field] = f
	}

	out := make([]Finding, 0, len(findings)+len(composite))
	for _, f := range findings {
		if c, ok := replaced[f.Field]; ok {
			out = append(out, c)
			delete(replaced, f.Field)
			continue
		}
		out = append(out, f)
	}
	for _, f := range composite {
		if _, ok := replaced[f.Field]; ok {
			out = append(out, f)
		}
	}
	return out
}
