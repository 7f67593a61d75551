// Package processing cleans raw OCR text before it is classified and
// extracted.
package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Text sources a rule can be restricted to
const (
	SourceOCR  = "ocr"  // text produced by an OCR engine
	SourceText = "text" // text supplied directly by the caller
)

// CleaningRule represents a single text cleaning rule
type CleaningRule interface {
	Name() string
	Description() string
	Apply(content string) (string, error)
	Applicable(source string) bool
}

// CleaningResult contains the results of text cleaning
type CleaningResult struct {
	OriginalLength int           `json:"original_length"`
	CleanedLength  int           `json:"cleaned_length"`
	RulesApplied   []string      `json:"rules_applied"`
	BytesRemoved   int           `json:"bytes_removed"`
	ProcessingTime time.Duration `json:"processing_time"`
	Warnings       []string      `json:"warnings,omitempty"`
}

// TextCleaner applies rule-based cleaning to OCR output. Rules preserve
// line structure: the extractors and the delimiter table detector depend
// on line breaks and runs of spaces.
type TextCleaner struct {
	rules        []CleaningRule
	enabledRules map[string]bool
	strictMode   bool
}

// NewTextCleaner creates a cleaner with the default rules
func NewTextCleaner() *TextCleaner {
	cleaner := &TextCleaner{
		rules:        make([]CleaningRule, 0),
		enabledRules: make(map[string]bool),
	}

	cleaner.AddRule(&LineEndingNormalizationRule{})
	cleaner.AddRule(&EscapedNewlineRule{})
	cleaner.AddRule(&EncodingNormalizationRule{})
	cleaner.AddRule(&TrailingSpaceRule{})
	cleaner.AddRule(&PunctuationCleaningRule{})
	cleaner.AddRule(&EmailAtRepairRule{})

	return cleaner
}

// AddRule adds a custom cleaning rule
func (tc *TextCleaner) AddRule(rule CleaningRule) {
	tc.rules = append(tc.rules, rule)
	tc.enabledRules[rule.Name()] = true
}

// EnableRule enables a specific rule by name
func (tc *TextCleaner) EnableRule(ruleName string) {
	tc.enabledRules[ruleName] = true
}

// DisableRule disables a specific rule by name
func (tc *TextCleaner) DisableRule(ruleName string) {
	tc.enabledRules[ruleName] = false
}

// SetStrictMode makes a failing rule abort the whole clean
func (tc *TextCleaner) SetStrictMode(strict bool) {
	tc.strictMode = strict
}

// Clean runs every enabled rule applicable to source over text
func (tc *TextCleaner) Clean(ctx context.Context, text, source string) (string, *CleaningResult, error) {
	if text == "" {
		return "", &CleaningResult{RulesApplied: []string{}}, nil
	}

	start := time.Now()
	cleaned := text
	rulesApplied := []string{}
	var warnings []string

	for _, rule := range tc.rules {
		if err := ctx.Err(); err != nil {
			return text, nil, err
		}
		if !tc.enabledRules[rule.Name()] || !rule.Applicable(source) {
			continue
		}

		after, err := rule.Apply(cleaned)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Rule %s failed: %v", rule.Name(), err))
			if tc.strictMode {
				return text, nil, fmt.Errorf("cleaning failed in strict mode: %w", err)
			}
			continue
		}
		if after != cleaned {
			cleaned = after
			rulesApplied = append(rulesApplied, rule.Name())
		}
	}

	result := &CleaningResult{
		OriginalLength: len(text),
		CleanedLength:  len(cleaned),
		RulesApplied:   rulesApplied,
		BytesRemoved:   len(text) - len(cleaned),
		ProcessingTime: time.Since(start),
		Warnings:       warnings,
	}

	log.Debug().
		Strs("rules", rulesApplied).
		Int("bytes_removed", result.BytesRemoved).
		Msg("Text cleaned")

	return cleaned, result, nil
}

// EnabledRules returns the names of the enabled rules in order
func (tc *TextCleaner) EnabledRules() []string {
	enabled := make([]string, 0)
	for _, rule := range tc.rules {
		if tc.enabledRules[rule.Name()] {
			enabled = append(enabled, rule.Name())
		}
	}
	return enabled
}

// AvailableRules returns all rules with descriptions
func (tc *TextCleaner) AvailableRules() map[string]string {
	rules := make(map[string]string)
	for _, rule := range tc.rules {
		rules[rule.Name()] = rule.Description()
	}
	return rules
}
