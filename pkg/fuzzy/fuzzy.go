// Package fuzzy scores approximate string matches on a 0..100 scale.
//
// The scorers mirror the familiar ratio / partial / token-sort / token-set
// family. Every scorer runs on processed input: accents folded, upper-cased,
// non-alphanumerics collapsed to single spaces.
package fuzzy

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	partialThreshold = 1.5
	longRatio        = 8.0
	partialScale     = 0.9
	longPartialScale = 0.6
	tokenScale       = 0.95
)

// Process folds accents, upper-cases and collapses every run of
// non-alphanumeric characters into one space.
func Process(s string) string {
	folded := Fold(s)
	var b strings.Builder
	space := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		space = true
	}
	return b.String()
}

// Fold strips combining marks (á → a, Ñ → N)
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Ratio is the normalized edit-distance similarity of the processed inputs
func Ratio(a, b string) int {
	return ratio(Process(a), Process(b))
}

// PartialRatio scores the best alignment of the shorter string inside the longer one
func PartialRatio(a, b string) int {
	return partialRatio(Process(a), Process(b))
}

// TokenSortRatio compares the inputs after sorting their words
func TokenSortRatio(a, b string) int {
	return ratio(sortedTokens(Process(a)), sortedTokens(Process(b)))
}

// TokenSetRatio compares shared words against each side's remainder
func TokenSetRatio(a, b string) int {
	return tokenSet(Process(a), Process(b), ratio)
}

// WRatio is the weighted combination used for name correction
func WRatio(a, b string) int {
	p1, p2 := Process(a), Process(b)
	if p1 == "" || p2 == "" {
		return 0
	}

	base := float64(ratio(p1, p2))
	l1, l2 := float64(runeLen(p1)), float64(runeLen(p2))
	lenRatio := math.Max(l1, l2) / math.Min(l1, l2)

	if lenRatio < partialThreshold {
		tsor := float64(ratio(sortedTokens(p1), sortedTokens(p2))) * tokenScale
		tser := float64(tokenSet(p1, p2, ratio)) * tokenScale
		return int(math.Round(max3(base, tsor, tser)))
	}

	scale := partialScale
	if lenRatio > longRatio {
		scale = longPartialScale
	}
	partial := float64(partialRatio(p1, p2)) * scale
	ptsor := float64(partialRatio(sortedTokens(p1), sortedTokens(p2))) * tokenScale * scale
	ptser := float64(tokenSet(p1, p2, partialRatio)) * tokenScale * scale
	return int(math.Round(math.Max(base, max3(partial, ptsor, ptser))))
}

// ExtractOne returns the choice with the highest WRatio against query.
// Earlier choices win ties. ok is false when choices is empty.
func ExtractOne(query string, choices []string) (match string, score int, ok bool) {
	score = -1
	for _, c := range choices {
		s := WRatio(query, c)
		if s > score {
			match, score, ok = c, s, true
		}
	}
	if !ok {
		return "", 0, false
	}
	return match, score, true
}

func ratio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	longest := runeLen(a)
	if lb := runeLen(b); lb > longest {
		longest = lb
	}
	dist := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * (1 - float64(dist)/float64(longest))))
}

func partialRatio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == len(long) {
		return ratio(a, b)
	}
	best := 0
	s := string(short)
	for i := 0; i+len(short) <= len(long); i++ {
		r := ratio(s, string(long[i:i+len(short)]))
		if r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

func tokenSet(a, b string, scorer func(string, string) int) int {
	t1, t2 := tokenSetOf(a), tokenSetOf(b)
	var sect, diff12, diff21 []string
	for tok := range t1 {
		if t2[tok] {
			sect = append(sect, tok)
		} else {
			diff12 = append(diff12, tok)
		}
	}
	for tok := range t2 {
		if !t1[tok] {
			diff21 = append(diff21, tok)
		}
	}
	sort.Strings(sect)
	sort.Strings(diff12)
	sort.Strings(diff21)

	base := strings.Join(sect, " ")
	c12 := strings.TrimSpace(base + " " + strings.Join(diff12, " "))
	c21 := strings.TrimSpace(base + " " + strings.Join(diff21, " "))

	best := scorer(c12, c21)
	if base != "" {
		if s := scorer(base, c12); s > best {
			best = s
		}
		if s := scorer(base, c21); s > best {
			best = s
		}
	}
	return best
}

func tokenSetOf(s string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		out[tok] = true
	}
	return out
}

func sortedTokens(s string) string {
	toks := strings.Fields(s)
	sort.Strings(toks)
	return strings.Join(toks, " ")
}

func runeLen(s string) int {
	return len([]rune(s))
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}
