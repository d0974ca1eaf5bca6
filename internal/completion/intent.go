package completion

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/wolfman30/storage-assistant/internal/records"
)

// ExtractedIntent is the structured reading of a customer message. Empty
// strings mean the field was not present.
type ExtractedIntent struct {
	IsServiceRequest bool                       `json:"isServiceRequest"`
	Type             records.ServiceRequestType `json:"type,omitempty"`
	CustomerName     string                     `json:"customerName,omitempty"`
	CustomerEmail    string                     `json:"customerEmail,omitempty"`
	CustomerPhone    string                     `json:"customerPhone,omitempty"`
	PreferredDate    string                     `json:"preferredDate,omitempty"`
	Description      string                     `json:"description,omitempty"`
}

// intentWire is the object the model is asked to produce. Every property is
// required so the schema can be enforced strictly.
type intentWire struct {
	IsServiceRequest bool   `json:"isServiceRequest" jsonschema:"description=True when the customer is asking for a storage service"`
	Type             string `json:"type" jsonschema:"description=collection or delivery or inquiry or other; empty when not a service request"`
	CustomerName     string `json:"customerName" jsonschema:"description=Customer name if provided"`
	CustomerEmail    string `json:"customerEmail" jsonschema:"description=Customer email if provided"`
	CustomerPhone    string `json:"customerPhone" jsonschema:"description=Customer phone if provided"`
	PreferredDate    string `json:"preferredDate" jsonschema:"description=Preferred date as YYYY-MM-DD or ISO-8601 if provided"`
	Description      string `json:"description" jsonschema:"description=Description of the request"`
}

var errEmptyExtraction = errors.New("completion: empty extraction output")

// IntentSchema returns the JSON schema of the extraction output.
func IntentSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&intentWire{})
}

// parseIntent decodes model output into an ExtractedIntent. Unknown service
// types are dropped rather than rejected.
func parseIntent(raw string) (ExtractedIntent, error) {
	raw = stripCodeFence(raw)
	if raw == "" {
		return ExtractedIntent{}, errEmptyExtraction
	}
	var wire struct {
		IsServiceRequest *bool  `json:"isServiceRequest"`
		Type             string `json:"type"`
		CustomerName     string `json:"customerName"`
		CustomerEmail    string `json:"customerEmail"`
		CustomerPhone    string `json:"customerPhone"`
		PreferredDate    string `json:"preferredDate"`
		Description      string `json:"description"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return ExtractedIntent{}, fmt.Errorf("completion: decode extraction: %w", err)
	}
	if wire.IsServiceRequest == nil {
		return ExtractedIntent{}, errors.New("completion: extraction missing isServiceRequest")
	}
	if !*wire.IsServiceRequest {
		return ExtractedIntent{}, nil
	}
	intent := ExtractedIntent{
		IsServiceRequest: true,
		CustomerName:     strings.TrimSpace(wire.CustomerName),
		CustomerEmail:    strings.TrimSpace(wire.CustomerEmail),
		CustomerPhone:    strings.TrimSpace(wire.CustomerPhone),
		PreferredDate:    strings.TrimSpace(wire.PreferredDate),
		Description:      strings.TrimSpace(wire.Description),
	}
	if t, ok := records.ParseServiceRequestType(wire.Type); ok {
		intent.Type = t
	}
	return intent, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
