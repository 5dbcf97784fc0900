package signal

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// descriptorSchemaURL anchors the embedded schema resource.
const descriptorSchemaURL = "https://neurofabric.schemas.local/nlp-c/signal-descriptor.schema.json"

// descriptorSchema validates the JSON shape the cognitive layer supplies.
// Structural checks live here; semantic checks (risk grades, confidence
// bounds, envelope size) remain in checkDraft and Validate.
const descriptorSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["receiver_id", "state_delta", "intent_reference", "confidence",
               "context", "memory_refs", "permissions", "risk_level", "reversibility"],
  "properties": {
    "receiver_id":      {"type": "string", "minLength": 1},
    "state_delta":      {"type": "string", "minLength": 1},
    "intent_reference": {"type": "string", "minLength": 1},
    "confidence":       {"type": "number", "minimum": 0, "maximum": 1},
    "context":          {"type": "string", "minLength": 1},
    "memory_refs":      {"type": "array", "items": {"type": "string"}},
    "salience_map": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["key", "weight"],
        "properties": {
          "key":    {"type": "string"},
          "weight": {"type": "number"}
        }
      }
    },
    "permissions":      {"type": "array", "items": {"type": "string"}},
    "risk_level":       {"type": "string", "enum": ["low", "medium", "high", "critical"]},
    "reversibility":    {"type": "string", "enum": ["reversible", "irreversible"]},
    "parent_signal_id": {"type": "string"}
  },
  "additionalProperties": false
}`

var (
	descriptorOnce     sync.Once
	descriptorCompiled *jsonschema.Schema
	descriptorErr      error
)

func compiledDescriptorSchema() (*jsonschema.Schema, error) {
	descriptorOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(descriptorSchemaURL, strings.NewReader(descriptorSchema)); err != nil {
			descriptorErr = fmt.Errorf("signal: descriptor schema load failed: %w", err)
			return
		}
		descriptorCompiled, descriptorErr = c.Compile(descriptorSchemaURL)
	})
	return descriptorCompiled, descriptorErr
}

// descriptor mirrors the external JSON contract supplied by the cognitive
// layer. It is decoded into a Draft once validated.
type descriptor struct {
	ReceiverID      string          `json:"receiver_id"`
	StateDelta      string          `json:"state_delta"`
	IntentReference string          `json:"intent_reference"`
	Confidence      float64         `json:"confidence"`
	Context         string          `json:"context"`
	MemoryRefs      []string        `json:"memory_refs"`
	SalienceMap     []SalienceEntry `json:"salience_map"`
	Permissions     []string        `json:"permissions"`
	RiskLevel       RiskLevel       `json:"risk_level"`
	Reversibility   Reversibility   `json:"reversibility"`
	ParentSignalID  string          `json:"parent_signal_id"`
}

// DecodeDraft validates raw descriptor JSON against the embedded schema and
// converts it into a Draft ready for Factory.Create. Fail-closed: anything
// the schema does not explicitly allow is rejected.
func DecodeDraft(raw []byte) (Draft, error) {
	sch, err := compiledDescriptorSchema()
	if err != nil {
		return Draft{}, err
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Draft{}, fmt.Errorf("signal: descriptor is not valid JSON: %w", err)
	}
	if err := sch.Validate(generic); err != nil {
		return Draft{}, fmt.Errorf("signal: descriptor rejected by schema: %w", err)
	}

	var d descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return Draft{}, fmt.Errorf("signal: descriptor decode failed: %w", err)
	}

	if d.MemoryRefs == nil {
		d.MemoryRefs = []string{}
	}
	if d.Permissions == nil {
		d.Permissions = []string{}
	}

	return Draft{
		ReceiverID:      d.ReceiverID,
		StateDelta:      d.StateDelta,
		IntentReference: d.IntentReference,
		Confidence:      d.Confidence,
		Context:         d.Context,
		MemoryRefs:      d.MemoryRefs,
		Salience:        d.SalienceMap,
		Permissions:     d.Permissions,
		RiskLevel:       d.RiskLevel,
		Reversibility:   d.Reversibility,
		ParentSignalID:  d.ParentSignalID,
	}, nil
}
