package confidence

import (
	"fmt"
	"math"
)

// Decision is the outcome of gating a plan.
type Decision string

const (
	DecisionGo   Decision = "GO"
	DecisionAsk  Decision = "ASK"
	DecisionStop Decision = "STOP"
)

// Default thresholds.
const (
	DefaultGoThreshold  = 0.75
	DefaultAskThreshold = 0.40
)

// Thresholds split confidence into GO, ASK and STOP bands.
type Thresholds struct {
	Go  float64
	Ask float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Go: DefaultGoThreshold, Ask: DefaultAskThreshold}
}

// destructiveTools always require consent, and are refused outright when
// confidence is below the ASK threshold.
var destructiveTools = map[string]struct{}{
	"execute_shell_command":    {},
	"delete_junk_file":         {},
	"create_new_tool":          {},
	"execute_generated_script": {},
}

// IsDestructive reports whether tool is in the destructive set.
func IsDestructive(tool string) bool {
	_, ok := destructiveTools[tool]
	return ok
}

// AnyDestructive reports whether any of tools is destructive.
func AnyDestructive(tools []string) bool {
	for _, t := range tools {
		if IsDestructive(t) {
			return true
		}
	}
	return false
}

// Decide is the gating policy. It is a pure function of its inputs.
func Decide(conf float64, destructive bool, th Thresholds) Decision {
	switch {
	case destructive && conf < th.Ask:
		return DecisionStop
	case destructive:
		return DecisionAsk
	case conf >= th.Go:
		return DecisionGo
	case conf >= th.Ask:
		return DecisionAsk
	default:
		return DecisionStop
	}
}

// Weights controls how the three signals are blended. The zero value is
// treated as model-only.
type Weights struct {
	Model      float64
	Verifier   float64
	Historical float64
}

// Validate rejects negative weights.
func (w Weights) Validate() error {
	if w.Model < 0 || w.Verifier < 0 || w.Historical < 0 {
		return fmt.Errorf("confidence weights must not be negative: model %.2f, verifier %.2f, history %.2f",
			w.Model, w.Verifier, w.Historical)
	}
	return nil
}

// ModelOnly uses the model's self-assessment unchanged.
func ModelOnly() Weights { return Weights{Model: 1} }

// Signal is the blended confidence for a plan plus its inputs.
type Signal struct {
	Model      float64  `json:"model"`
	Verifier   float64  `json:"verifier"`
	Historical float64  `json:"historical"`
	Value      float64  `json:"value"`
	Rationales []string `json:"rationales,omitempty"`
}

// NormalizeModelScore maps the model's 0-10 self-assessment onto [0,1].
func NormalizeModelScore(score float64) float64 {
	return clamp(score / 10)
}

// Blend combines the normalized model score with verifier and historical
// scores as a weighted mean, clamped to [0,1].
// Negative weights count as zero so no signal can invert the others.
func Blend(model, verifier, historical float64, w Weights) Signal {
	w.Model = math.Max(0, w.Model)
	w.Verifier = math.Max(0, w.Verifier)
	w.Historical = math.Max(0, w.Historical)
	if w.Model == 0 && w.Verifier == 0 && w.Historical == 0 {
		w = ModelOnly()
	}
	total := w.Model + w.Verifier + w.Historical
	value := (w.Model*model + w.Verifier*verifier + w.Historical*historical) / total
	return Signal{
		Model:      model,
		Verifier:   verifier,
		Historical: historical,
		Value:      clamp(value),
	}
}

func (s Signal) String() string {
	return fmt.Sprintf("%.2f (model %.2f, verifier %.2f, history %.2f)", s.Value, s.Model, s.Verifier, s.Historical)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
