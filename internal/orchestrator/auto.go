package orchestrator

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/Caia-Tech/caia-extract/pkg/ocr"
	"github.com/rs/zerolog/log"
)

// Document profiles AUTO chooses between
const (
	ProfileTableHeavy = "table_heavy"
	ProfileMedical    = "medical"
	ProfileComplex    = "complex"
	ProfileStandard   = "standard"
)

var (
	tableKeywords   = []string{"cartera", "cliente", "saldo", "vencido", "corriente", "mora"}
	medicalKeywords = []string{"formula", "médica", "medica", "medicamento", "posología", "dosis"}
)

const (
	complexChars = 2000
	complexLines = 50
)

// Classify picks the AUTO profile for a first-pass text
func Classify(text string) string {
	lower := strings.ToLower(text)
	switch {
	case countKeywords(lower, tableKeywords) >= 3:
		return ProfileTableHeavy
	case countKeywords(lower, medicalKeywords) >= 2:
		return ProfileMedical
	case utf8.RuneCountInString(text) > complexChars || strings.Count(text, "\n") > complexLines:
		return ProfileComplex
	default:
		return ProfileStandard
	}
}

func countKeywords(lower string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			n++
		}
	}
	return n
}

// auto recognizes once with the cheapest usable engine, classifies the
// text and runs the chain for that profile. The probe output is reused
// when the chain starts with the probe engine.
func (o *Orchestrator) auto(ctx context.Context, pages []ocr.Image) (*Recognition, error) {
	probe, attempts := o.probe(ctx, pages)
	if probe == nil {
		return nil, &AggregateError{Strategy: StrategyAuto, Attempts: attempts}
	}

	profile := Classify(probe.text)
	p := o.planFor(profile, probe.engine)
	reused := p.engines[0] == probe.engine && !p.layout
	if reused {
		attempts = attempts[:len(attempts)-1]
	}

	log.Info().
		Str("probe_engine", probe.engine).
		Str("profile", profile).
		Strs("chain", p.engines).
		Bool("probe_reused", reused).
		Msg("Automatic strategy selected")

	rec, err := o.runPlan(ctx, p, pages, probe)
	if err != nil {
		var agg *AggregateError
		if errors.As(err, &agg) {
			agg.Attempts = append(attempts, agg.Attempts...)
		}
		return nil, err
	}
	rec.Attempts = append(attempts, rec.Attempts...)
	return rec, nil
}

// probe returns the first engine in probeOrder that recognizes text, and
// every attempt made including the successful one
func (o *Orchestrator) probe(ctx context.Context, pages []ocr.Image) (*probeResult, []Attempt) {
	var attempts []Attempt
	for _, name := range probeOrder {
		if _, ok := o.engines[name]; !ok {
			continue
		}
		text, _, attempt := o.run(ctx, name, pages, false)
		attempts = append(attempts, attempt)
		if attempt.Err == nil {
			return &probeResult{engine: name, text: text, attempt: attempt}, attempts
		}
	}
	return nil, attempts
}

func (o *Orchestrator) planFor(profile, probeEngine string) plan {
	p := plan{strategy: StrategyAuto, profile: profile}
	switch profile {
	case ProfileTableHeavy:
		p.engines = tableChain
		p.layout = true
	case ProfileMedical:
		// prescriptions read fine from the first pass, whichever engine made it
		p.engines = withFirst(probeEngine, chains[StrategyFast])
	case ProfileComplex:
		if o.caps.Has(ocr.NameOpenAIVision) {
			p.engines = chains[StrategyCloud]
		} else {
			p.engines = chains[StrategyPrecise]
		}
	default:
		p.engines = chains[StrategyBalanced]
		p.supplement = true
	}
	return p
}

func withFirst(first string, rest []string) []string {
	out := []string{first}
	for _, name := range rest {
		if name != first {
			out = append(out, name)
		}
	}
	return out
}
