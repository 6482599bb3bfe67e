package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		name        string
		conf        float64
		destructive bool
		want        Decision
	}{
		{"high confidence", 0.9, false, DecisionGo},
		{"exactly go", 0.75, false, DecisionGo},
		{"middle band", 0.5, false, DecisionAsk},
		{"exactly ask", 0.40, false, DecisionAsk},
		{"low confidence", 0.39, false, DecisionStop},
		{"destructive overrides go", 0.99, true, DecisionAsk},
		{"destructive middle", 0.6, true, DecisionAsk},
		{"destructive low", 0.2, true, DecisionStop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.conf, tt.destructive, th)
			assert.Equal(t, tt.want, got)
			// Pure: same inputs, same answer.
			assert.Equal(t, got, Decide(tt.conf, tt.destructive, th))
		})
	}
}

func TestAnyDestructive(t *testing.T) {
	assert.False(t, AnyDestructive([]string{"rename_file", "move_file"}))
	assert.True(t, AnyDestructive([]string{"rename_file", "execute_shell_command"}))
	assert.True(t, IsDestructive("create_new_tool"))
	assert.True(t, IsDestructive("execute_generated_script"))
	assert.True(t, IsDestructive("delete_junk_file"))
}

func TestBlend(t *testing.T) {
	s := Blend(NormalizeModelScore(9), 0.1, 0.2, Weights{})
	assert.InDelta(t, 0.9, s.Value, 1e-9, "zero weights fall back to model only")

	s = Blend(0.8, 0.4, 0.6, Weights{Model: 1, Verifier: 1, Historical: 2})
	assert.InDelta(t, 0.6, s.Value, 1e-9)

	assert.Equal(t, 1.0, NormalizeModelScore(15))
	assert.Equal(t, 0.0, NormalizeModelScore(-3))
}

func TestBlendIgnoresNegativeWeights(t *testing.T) {
	w := Weights{Model: -0.6, Verifier: 0.8, Historical: 0.8}
	s := Blend(NormalizeModelScore(1), 0.6, 0.6, w)
	assert.InDelta(t, 0.6, s.Value, 1e-9, "a low model score must not be inverted into a boost")
	assert.Equal(t, DecisionAsk, Decide(s.Value, false, DefaultThresholds()))

	assert.Error(t, w.Validate())
	assert.NoError(t, Weights{Model: 0.5, Verifier: 0.5}.Validate())
}
