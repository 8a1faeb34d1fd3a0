package analysis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	jsonutil "github.com/richinex/aegis/internal/json"
)

// DefaultConfidenceThreshold is the confidence below which a claimed incident
// is demoted to a non-incident.
const DefaultConfidenceThreshold = 70

// ParseError reports that the model's response could not be decoded into an
// analysis. The raw text is retained for diagnosis.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable analysis response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// rawAnalysis is the untrusted wire shape of an analysis response. Fields
// with unstable types arrive as raw JSON and are coerced individually so one
// malformed field cannot fail the whole decode.
type rawAnalysis struct {
	Incident           json.RawMessage `json:"incident"`
	Type               string          `json:"type"`
	Severity           string          `json:"severity"`
	Confidence         json.RawMessage `json:"confidence"`
	Reasoning          string          `json:"reasoning"`
	Subjects           json.RawMessage `json:"subjects"`
	RecommendedActions json.RawMessage `json:"recommended_actions"`
}

// Normalizer converts raw inference text into a FrameAnalysis.
// Stateless per call.
type Normalizer struct {
	// ConfidenceThreshold demotes low-confidence incidents. Zero means
	// DefaultConfidenceThreshold.
	ConfidenceThreshold int
}

// NewNormalizer creates a normalizer with the given confidence threshold.
func NewNormalizer(confidenceThreshold int) *Normalizer {
	if confidenceThreshold <= 0 {
		confidenceThreshold = DefaultConfidenceThreshold
	}
	return &Normalizer{ConfidenceThreshold: confidenceThreshold}
}

// Normalize parses raw model text into a strict FrameAnalysis.
// On parse failure it returns a *ParseError; the caller substitutes
// DefaultAnalysis rather than propagating the failure.
func (n *Normalizer) Normalize(frameNumber int, raw string) (FrameAnalysis, error) {
	parsed, err := jsonutil.ExtractJSONFromResponse[rawAnalysis](raw)
	if err != nil {
		return FrameAnalysis{}, &ParseError{Raw: raw, Err: err}
	}

	confidence := coerceConfidence(parsed.Confidence)

	incident := coerceBool(parsed.Incident)
	if confidence < n.ConfidenceThreshold {
		incident = false
	}

	category := parsed.Type
	if category == "" {
		category = "unknown"
	}

	reasoning := parsed.Reasoning
	if reasoning == "" {
		reasoning = "No explanation provided"
	}

	return FrameAnalysis{
		FrameNumber:        frameNumber,
		Timestamp:          time.Now().UTC(),
		Incident:           incident,
		Category:           category,
		Severity:           ParseSeverity(parsed.Severity),
		Confidence:         confidence,
		Reasoning:          reasoning,
		Subjects:           coerceStringList(parsed.Subjects),
		RecommendedActions: coerceStringList(parsed.RecommendedActions),
	}, nil
}

// coerceConfidence accepts numbers, numeric strings, or garbage and always
// lands in [0,100].
func coerceConfidence(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return clampConfidence(int(f))
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return clampConfidence(int(v))
		}
	}

	return 0
}

func clampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// coerceBool treats anything other than a literal true as false.
func coerceBool(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	return false
}

// coerceStringList returns an empty list for anything that is not
// list-shaped. Non-string elements are dropped rather than failing the list.
func coerceStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
		}
	}
	return out
}
