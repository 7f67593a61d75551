package processing

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	excessPunct   = regexp.MustCompile(`[!?:;]{4,}`)
	emailCom      = regexp.MustCompile(`(\w+)Q([\w.-]+\.com)`)
	emailCo       = regexp.MustCompile(`(\w+)Q([\w.-]+\.co)\b`)

	mojibake = strings.NewReplacer(
		"Ã¡", "á", "Ã©", "é", "Ã\u00ad", "í", "Ã³", "ó", "Ãº", "ú",
		"Ã±", "ñ", "Ã‘", "Ñ", "Ã¼", "ü",
		"Ã\u0081", "Á", "Ã‰", "É", "Ã\u008d", "Í", "Ã“", "Ó", "Ãš", "Ú",
		"â€™", "'", "â€œ", "\"", "â€\u009d", "\"", "â€“", "\u2013", "â€”", "\u2014",
		"Â°", "°", "Âº", "º", "Â ", " ",
	)
	typography = strings.NewReplacer(
		"\uFEFF", "", "\u200B", "", "\u00A0", " ",
		"\u2018", "'", "\u2019", "'", "\u201C", "\"", "\u201D", "\"",
	)
)

// LineEndingNormalizationRule turns CRLF and CR into LF
type LineEndingNormalizationRule struct{}

func (r *LineEndingNormalizationRule) Name() string { return "line_ending_normalization" }

func (r *LineEndingNormalizationRule) Description() string {
	return "Converts CRLF and CR line endings to LF"
}

func (r *LineEndingNormalizationRule) Applicable(source string) bool { return true }

func (r *LineEndingNormalizationRule) Apply(content string) (string, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n"), nil
}

// EscapedNewlineRule expands literal "\n" sequences left by engines that
// return JSON encoded text
type EscapedNewlineRule struct{}

func (r *EscapedNewlineRule) Name() string { return "escaped_newline_expansion" }

func (r *EscapedNewlineRule) Description() string {
	return `Expands literal \n sequences into line breaks`
}

func (r *EscapedNewlineRule) Applicable(source string) bool { return source == SourceOCR }

func (r *EscapedNewlineRule) Apply(content string) (string, error) {
	if strings.Contains(content, "\n") || !strings.Contains(content, `\n`) {
		return content, nil
	}
	return strings.ReplaceAll(content, `\n`, "\n"), nil
}

// EncodingNormalizationRule fixes UTF-8 read as Latin-1 and typographic
// characters OCR engines emit
type EncodingNormalizationRule struct{}

func (r *EncodingNormalizationRule) Name() string { return "encoding_normalization" }

func (r *EncodingNormalizationRule) Description() string {
	return "Repairs mojibake accents and dashes, normalizes quotes and drops invisible characters"
}

func (r *EncodingNormalizationRule) Applicable(source string) bool { return true }

func (r *EncodingNormalizationRule) Apply(content string) (string, error) {
	cleaned := typography.Replace(mojibake.Replace(content))

	// Remove control characters except newlines and tabs
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, cleaned)

	return cleaned, nil
}

// TrailingSpaceRule trims spaces at line ends. Interior runs of spaces
// separate table columns and are kept.
type TrailingSpaceRule struct{}

func (r *TrailingSpaceRule) Name() string { return "trailing_space_trim" }

func (r *TrailingSpaceRule) Description() string {
	return "Trims trailing spaces and tabs from every line"
}

func (r *TrailingSpaceRule) Applicable(source string) bool { return true }

func (r *TrailingSpaceRule) Apply(content string) (string, error) {
	return strings.TrimRight(trailingSpace.ReplaceAllString(content, "\n"), " \t"), nil
}

// PunctuationCleaningRule collapses runs of repeated punctuation
type PunctuationCleaningRule struct{}

func (r *PunctuationCleaningRule) Name() string { return "punctuation_cleaning" }

func (r *PunctuationCleaningRule) Description() string {
	return "Collapses runs of four or more ! ? : ; characters to three"
}

func (r *PunctuationCleaningRule) Applicable(source string) bool { return true }

func (r *PunctuationCleaningRule) Apply(content string) (string, error) {
	return excessPunct.ReplaceAllStringFunc(content, func(match string) string {
		return match[:3]
	}), nil
}

// EmailAtRepairRule restores '@' that OCR read as 'Q' in e-mail addresses
type EmailAtRepairRule struct{}

func (r *EmailAtRepairRule) Name() string { return "email_at_repair" }

func (r *EmailAtRepairRule) Description() string {
	return "Replaces Q misread for @ before .com and .co domains"
}

func (r *EmailAtRepairRule) Applicable(source string) bool { return source == SourceOCR }

func (r *EmailAtRepairRule) Apply(content string) (string, error) {
	content = emailCom.ReplaceAllString(content, "$1@$2")
	return emailCo.ReplaceAllString(content, "$1@$2"), nil
}

// RepairEmails applies the e-mail repair outside a cleaner
func RepairEmails(content string) string {
	out, _ := (&EmailAtRepairRule{}).Apply(content)
	return out
}
