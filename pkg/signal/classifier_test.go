package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := map[string]SignalClass{
		"reason":      ClassCognitive,
		"plan":        ClassCognitive,
		"simulate":    ClassCognitive,
		"think":       ClassCognitive,
		"pause":       ClassControl,
		"resume":      ClassControl,
		"halt":        ClassControl,
		"reconfigure": ClassControl,
		"execute":     ClassExecution,
		"dispatch":    ClassExecution,
		"invoke":      ClassExecution,
		"run":         ClassExecution,
		"feedback":    ClassFeedback,
		"outcome":     ClassFeedback,
		"error":       ClassFeedback,
		"metric":      ClassFeedback,
	}
	for keyword, want := range cases {
		assert.Equal(t, want, Classify(keyword), keyword)
	}
}

func TestClassify_UnknownDefaultsToCognitive(t *testing.T) {
	assert.Equal(t, ClassCognitive, Classify("daydream"))
	assert.Equal(t, ClassCognitive, Classify(""))
}

func TestValidateFeedback(t *testing.T) {
	assert.ErrorIs(t, ValidateFeedback(""), ErrOrphanFeedback)
	assert.NoError(t, ValidateFeedback("sig-123"))
}

func TestPriorityOf(t *testing.T) {
	assert.Equal(t, PriorityPreemptive, PriorityOf(ClassControl))
	assert.Equal(t, PriorityNormal, PriorityOf(ClassCognitive))
	assert.Equal(t, PriorityNormal, PriorityOf(ClassExecution))
	assert.Equal(t, PriorityNormal, PriorityOf(ClassFeedback))
}
