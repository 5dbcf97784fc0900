package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodDescriptor = `{
  "receiver_id": "r1",
  "state_delta": "dispatch task X",
  "intent_reference": "goal_42",
  "confidence": 0.95,
  "context": "compressed",
  "memory_refs": ["mem-1"],
  "salience_map": [{"key": "goal_42", "weight": 0.8}],
  "permissions": ["execute"],
  "risk_level": "medium",
  "reversibility": "reversible"
}`

func TestDecodeDraft(t *testing.T) {
	d, err := DecodeDraft([]byte(goodDescriptor))
	require.NoError(t, err)

	assert.Equal(t, "r1", d.ReceiverID)
	assert.Equal(t, "goal_42", d.IntentReference)
	assert.Equal(t, RiskMedium, d.RiskLevel)
	assert.Equal(t, []string{"mem-1"}, d.MemoryRefs)
	require.Len(t, d.Salience, 1)
	assert.Equal(t, 0.8, d.Salience[0].Weight)

	f := newTestFactory(t, "op1")
	sig, err := f.Create(d)
	require.NoError(t, err)
	assert.NoError(t, sig.Validate())
}

func TestDecodeDraft_Rejections(t *testing.T) {
	cases := map[string]string{
		"not json":          `{`,
		"missing field":     `{"receiver_id": "r1"}`,
		"bad risk level":    `{"receiver_id":"r1","state_delta":"x","intent_reference":"g","confidence":0.5,"context":"c","memory_refs":[],"permissions":[],"risk_level":"extreme","reversibility":"reversible"}`,
		"confidence bounds":  `{"receiver_id":"r1","state_delta":"x","intent_reference":"g","confidence":1.2,"context":"c","memory_refs":[],"permissions":[],"risk_level":"low","reversibility":"reversible"}`,
		"unknown property":  `{"receiver_id":"r1","state_delta":"x","intent_reference":"g","confidence":0.5,"context":"c","memory_refs":[],"permissions":[],"risk_level":"low","reversibility":"reversible","extra":true}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeDraft([]byte(raw))
			assert.Error(t, err)
		})
	}
}
