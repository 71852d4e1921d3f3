// Package monitor validates the runtime gateway configuration against its
// JSON Schema contract. The server refuses to start on a document that
// breaks the contract.
package monitor

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ContractMonitor validates configuration documents against one compiled
// schema.
type ContractMonitor struct {
	schema *gojsonschema.Schema
}

// NewContractMonitor compiles the schema from raw JSON.
func NewContractMonitor(schemaJSON []byte) (*ContractMonitor, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &ContractMonitor{schema: schema}, nil
}

// Validate checks a JSON document against the contract. It returns whether
// the document conforms and the list of violations when it does not.
func (m *ContractMonitor) Validate(document []byte) (bool, []string, error) {
	result, err := m.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return false, nil, fmt.Errorf("validate document: %w", err)
	}
	if result.Valid() {
		return true, nil, nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return false, violations, nil
}

// FormatErrors renders violations as a single message for logs.
func FormatErrors(violations []string) string {
	return strings.Join(violations, "; ")
}
