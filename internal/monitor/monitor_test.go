package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["stripe", "paypal"],
	"properties": {
		"stripe": {
			"type": "object",
			"required": ["api_key"],
			"properties": {"api_key": {"type": "string", "minLength": 1}}
		},
		"paypal": {
			"type": "object",
			"required": ["client_id", "client_secret"],
			"properties": {
				"client_id": {"type": "string", "minLength": 1},
				"client_secret": {"type": "string", "minLength": 1}
			}
		},
		"recency_window_seconds": {"type": "integer", "minimum": 1}
	}
}`

func TestValidateConformingDocument(t *testing.T) {
	m, err := NewContractMonitor([]byte(testSchema))
	require.NoError(t, err)

	ok, violations, err := m.Validate([]byte(`{
		"stripe": {"api_key": "sk_test_1"},
		"paypal": {"client_id": "cid", "client_secret": "cs"},
		"recency_window_seconds": 60
	}`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, violations)
}

func TestValidateReportsViolations(t *testing.T) {
	m, err := NewContractMonitor([]byte(testSchema))
	require.NoError(t, err)

	ok, violations, err := m.Validate([]byte(`{
		"stripe": {"api_key": ""},
		"recency_window_seconds": 0
	}`))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotEmpty(t, violations)
	msg := FormatErrors(violations)
	assert.Contains(t, msg, "paypal")
}

func TestValidateMalformedDocument(t *testing.T) {
	m, err := NewContractMonitor([]byte(testSchema))
	require.NoError(t, err)

	_, _, err = m.Validate([]byte(`{not json`))
	assert.Error(t, err)
}

func TestNewContractMonitorBadSchema(t *testing.T) {
	_, err := NewContractMonitor([]byte(`{"type": 12}`))
	assert.Error(t, err)
}
