package canonicalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJCS_KeyOrdering(t *testing.T) {
	a := map[string]interface{}{"b": 1, "a": 2, "c": 3}
	b := map[string]interface{}{"c": 3, "a": 2, "b": 1}

	ca, err := JCS(a)
	require.NoError(t, err)
	cb, err := JCS(b)
	require.NoError(t, err)

	assert.Equal(t, string(ca), string(cb))
	assert.Equal(t, `{"a":2,"b":1,"c":3}`, string(ca))
}

func TestJCS_NoHTMLEscaping(t *testing.T) {
	out, err := JCS(map[string]string{"k": "<&>"})
	require.NoError(t, err)
	assert.Equal(t, `{"k":"<&>"}`, string(out))
}

func TestCanonicalHash_Deterministic(t *testing.T) {
	type payload struct {
		StateDelta string  `json:"state_delta"`
		Confidence float64 `json:"confidence"`
	}

	h1, err := CanonicalHash(payload{StateDelta: "dispatch task X", Confidence: 0.95})
	require.NoError(t, err)
	h2, err := CanonicalHash(payload{StateDelta: "dispatch task X", Confidence: 0.95})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestHashBytes_DiffersOnInput(t *testing.T) {
	assert.NotEqual(t, HashBytes([]byte("a")), HashBytes([]byte("b")))
	assert.Equal(t, HashString("a"), HashBytes([]byte("a")))
}
