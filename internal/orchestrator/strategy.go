package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Caia-Tech/caia-extract/pkg/ocr"
)

// Strategy selects which OCR engines are tried and in what order
type Strategy string

const (
	StrategyFast     Strategy = "FAST"
	StrategyBalanced Strategy = "BALANCED"
	StrategyPrecise  Strategy = "PRECISE"
	StrategyCloud    Strategy = "CLOUD"
	StrategyAuto     Strategy = "AUTO"
	StrategyCompare  Strategy = "COMPARE"
)

// ErrUnknownStrategy is returned by ParseStrategy
var ErrUnknownStrategy = errors.New("unknown strategy")

var strategyAliases = map[string]Strategy{
	"FAST":       StrategyFast,
	"RAPIDO":     StrategyFast,
	"RÁPIDO":     StrategyFast,
	"BALANCED":   StrategyBalanced,
	"BALANCEADO": StrategyBalanced,
	"PRECISE":    StrategyPrecise,
	"PRECISO":    StrategyPrecise,
	"CLOUD":      StrategyCloud,
	"AZURE":      StrategyCloud,
	"AUTO":       StrategyAuto,
	"COMPARE":    StrategyCompare,
	"COMPARAR":   StrategyCompare,
}

// ParseStrategy accepts the strategy names case-insensitively, plus the
// Spanish names the desktop tool used. Empty means AUTO.
func ParseStrategy(s string) (Strategy, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "" {
		return StrategyAuto, nil
	}
	if st, ok := strategyAliases[name]; ok {
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Strategies lists the accepted canonical names
func Strategies() []Strategy {
	return []Strategy{StrategyFast, StrategyBalanced, StrategyPrecise, StrategyCloud, StrategyAuto, StrategyCompare}
}

// chains are the fixed candidate lists of the named strategies
var chains = map[Strategy][]string{
	StrategyFast:     {ocr.NameTesseract},
	StrategyBalanced: {ocr.NameTesseract, ocr.NamePaddleOCR},
	StrategyPrecise:  {ocr.NameEasyOCR, ocr.NamePaddleOCR},
	StrategyCloud:    {ocr.NameOpenAIVision},
}

// tableChain is what AUTO uses for documents dominated by a table; its
// engines are asked for positioned tokens
var tableChain = []string{ocr.NamePaddleOCR, ocr.NameTesseract}

// probeOrder is cheapest first
var probeOrder = []string{ocr.NameTesseract, ocr.NameEasyOCR, ocr.NamePaddleOCR, ocr.NameOpenAIVision}

// Chain returns the candidate engines of a named strategy. AUTO and
// COMPARE have no fixed chain.
func (s Strategy) Chain() []string {
	return append([]string(nil), chains[s]...)
}
