package memory

import (
	"sort"
	"time"
)

// Categories of canonical names kept by the store
const (
	CategorySuppliers   = "suppliers"
	CategoryMedications = "medications"
)

// LogEntry records one name correction
type LogEntry struct {
	Category  string    `json:"category"`
	Original  string    `json:"original"`
	Corrected string    `json:"corrected"`
	Score     int       `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the persisted shape of the correction memory
type Snapshot struct {
	Names           map[string][]string `json:"names"`
	DigitConfusions map[string]string   `json:"digit_confusions"`
	CorrectionLog   []LogEntry          `json:"correction_log"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// EmptySnapshot returns a store with no names, confusions or log entries
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		Names:           make(map[string][]string),
		DigitConfusions: make(map[string]string),
		CorrectionLog:   []LogEntry{},
	}
}

// DefaultSnapshot returns the seed memory used on first load
func DefaultSnapshot() *Snapshot {
	return &Snapshot{
		Names: map[string][]string{
			CategorySuppliers: {
				"GRUPO EMPRESARIAL MERCURY SAS", "ANDES CABLES SAS", "DURMAN COLOMBIA SAS",
				"VISION INTEGRADOS SAS", "HERINCO", "DROGUERIAS CAFAM", "COHAN MEDICAL",
			},
			CategoryMedications: {
				"HIALURONATO DE SODIO 0.4%", "ACETAMINOFEN 500MG", "IBUPROFENO 400MG",
				"SOLUCION OFTALMICA", "SUSPENSION ORAL", "TABLETAS RECUBIERTAS",
			},
		},
		DigitConfusions: map[string]string{
			"S": "5", "O": "0", "I": "1", "l": "1", "G": "6", "B": "8",
		},
		CorrectionLog: []LogEntry{},
	}
}

// Clone returns a deep copy
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Names:           make(map[string][]string, len(s.Names)),
		DigitConfusions: make(map[string]string, len(s.DigitConfusions)),
		CorrectionLog:   make([]LogEntry, len(s.CorrectionLog)),
		UpdatedAt:       s.UpdatedAt,
	}
	for category, names := range s.Names {
		out.Names[category] = append([]string(nil), names...)
	}
	for k, v := range s.DigitConfusions {
		out.DigitConfusions[k] = v
	}
	copy(out.CorrectionLog, s.CorrectionLog)
	return out
}

// Categories returns the category names in sorted order
func (s *Snapshot) Categories() []string {
	out := make([]string, 0, len(s.Names))
	for category := range s.Names {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

// normalize fills nil collections left by a sparse JSON document
func (s *Snapshot) normalize() {
	if s.Names == nil {
		s.Names = make(map[string][]string)
	}
	if s.DigitConfusions == nil {
		s.DigitConfusions = make(map[string]string)
	}
	if s.CorrectionLog == nil {
		s.CorrectionLog = []LogEntry{}
	}
}
