package memory

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	nonNumeric = regexp.MustCompile(`[^0-9.,\-]`)
	nonDigit   = regexp.MustCompile(`[^0-9]`)
	allDigits  = regexp.MustCompile(`^[0-9]+$`)
	nonTaxID   = regexp.MustCompile(`[^0-9\-]`)
)

// NormalizeNumber parses raw with the given confusion map. It is the
// store-free form of Store.NormalizeNumber.
func NormalizeNumber(raw string, confusions map[string]string) float64 {
	return normalizeNumber(raw, confusionReplacer(confusions))
}

// FormatNumber renders a normalized value so that normalizing it again
// yields the same value
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func confusionReplacer(confusions map[string]string) *strings.Replacer {
	keys := make([]string, 0, len(confusions))
	for k := range confusions {
		if k != "" {
			keys = append(keys, k)
		}
	}
	// longer keys first so multi-character confusions win over their prefixes
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, k, confusions[k])
	}
	return strings.NewReplacer(pairs...)
}

func normalizeNumber(raw string, replacer *strings.Replacer) float64 {
	if strings.TrimSpace(raw) == "" {
		return 0
	}

	cleaned := nonNumeric.ReplaceAllString(replacer.Replace(raw), "")
	cleaned = disambiguateSeparators(cleaned)
	if cleaned == "" {
		return 0
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		log.Warn().
			Str("raw", raw).
			Str("cleaned", cleaned).
			Msg("Could not normalize number")
		return 0
	}
	return v
}

// disambiguateSeparators leaves at most one '.' as the decimal marker.
// With both separators present the last one is the decimal marker. A lone
// comma followed by at most two digits is a decimal comma; any other comma
// groups thousands. Repeated dots with no comma group thousands too.
func disambiguateSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			return strings.ReplaceAll(s, ",", "")
		}
		s = strings.ReplaceAll(s, ".", "")
		return strings.Replace(s, ",", ".", 1)
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// CleanCode keeps only the digits of a product code when at least six
// remain; otherwise the code is returned as read
func CleanCode(code string) string {
	if code == "" {
		return code
	}
	if allDigits.MatchString(strings.ReplaceAll(code, " ", "")) {
		return code
	}
	digits := nonDigit.ReplaceAllString(code, "")
	if len(digits) >= 6 {
		log.Debug().Str("original", code).Str("cleaned", digits).Msg("Code cleaned")
		return digits
	}
	return code
}

// CleanTaxID strips a NIT down to digits and dashes
func CleanTaxID(nit string) string {
	return nonTaxID.ReplaceAllString(nit, "")
}
