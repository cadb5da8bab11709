package masking

import (
	"bytes"
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaskedCredentialValue is the replacement string for masked credential-block values.
const MaskedCredentialValue = "[MASKED_CREDENTIAL_DATA]"

// Pre-compiled patterns for fast AppliesTo checks — a handler result only
// gets the expensive structured parse when it plausibly contains one of the
// credential-bearing kinds.
var (
	yamlCredentialKindPattern = regexp.MustCompile(`(?m)^kind:\s*(Credential|ServiceAccount|ApiKeySet)\s*$`)
	jsonCredentialKindPattern = regexp.MustCompile(`"kind"\s*:\s*"(Credential|ServiceAccount|ApiKeySet)"`)
)

// CredentialBlockMasker masks data/secrets fields in structured
// (JSON or YAML) handler results tagged with a credential-bearing kind —
// the common shape an integration returns when it echoes back a service
// account or API key record — while leaving unrelated resource kinds
// untouched.
type CredentialBlockMasker struct{}

// Name returns the unique identifier for this masker.
func (m *CredentialBlockMasker) Name() string { return "credential_block" }

// AppliesTo performs a lightweight check on whether this masker should process the data.
func (m *CredentialBlockMasker) AppliesTo(data string) bool {
	if !strings.Contains(data, "kind") {
		return false
	}
	return yamlCredentialKindPattern.MatchString(data) || jsonCredentialKindPattern.MatchString(data)
}

// Mask applies credential-block masking. Detects JSON vs YAML and applies
// the appropriate parser. Returns original data on parse/processing errors.
func (m *CredentialBlockMasker) Mask(data string) string {
	trimmed := strings.TrimSpace(data)

	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		if masked := m.maskJSON(data); masked != data {
			return masked
		}
	}

	if masked := m.maskYAML(data); masked != data {
		return masked
	}

	return data
}

func (m *CredentialBlockMasker) maskYAML(data string) string {
	decoder := yaml.NewDecoder(strings.NewReader(data))
	var documents []map[string]any
	anyMasked := false

	for {
		var doc map[string]any
		err := decoder.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return data
		}
		if doc == nil {
			continue
		}

		if isCredentialBlock(doc) {
			maskCredentialFields(doc)
			anyMasked = true
		} else if isCredentialList(doc) {
			if maskListItems(doc) {
				anyMasked = true
			}
		}

		documents = append(documents, doc)
	}

	if !anyMasked || len(documents) == 0 {
		return data
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	for _, doc := range documents {
		if err := encoder.Encode(doc); err != nil {
			return data
		}
	}
	if err := encoder.Close(); err != nil {
		return data
	}

	result := strings.TrimRight(buf.String(), "\n")
	if strings.HasSuffix(data, "\n") {
		result += "\n"
	}
	return result
}

func (m *CredentialBlockMasker) maskJSON(data string) string {
	var obj map[string]any
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return data
	}

	anyMasked := false
	if isCredentialBlock(obj) {
		maskCredentialFields(obj)
		anyMasked = true
	} else if isCredentialList(obj) {
		if maskListItems(obj) {
			anyMasked = true
		}
	}

	if !anyMasked {
		return data
	}

	result, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return data
	}

	output := string(result)
	if strings.HasSuffix(data, "\n") {
		output += "\n"
	}
	return output
}

func maskListItems(doc map[string]any) bool {
	items, ok := doc["items"]
	if !ok {
		return false
	}
	itemList, ok := items.([]any)
	if !ok {
		return false
	}

	anyMasked := false
	for _, item := range itemList {
		itemMap, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if isCredentialBlock(itemMap) {
			maskCredentialFields(itemMap)
			anyMasked = true
		}
	}
	return anyMasked
}

func isCredentialBlock(resource map[string]any) bool {
	kind, ok := resource["kind"].(string)
	if !ok {
		return false
	}
	return kind == "Credential" || kind == "ServiceAccount" || kind == "ApiKeySet" ||
		strings.HasSuffix(kind, "CredentialList")
}

func isCredentialList(resource map[string]any) bool {
	kind, ok := resource["kind"].(string)
	if !ok {
		return false
	}
	return kind == "List" || strings.HasSuffix(kind, "List")
}

// maskCredentialFields replaces values in "data" and "secrets" map fields
// with the masked placeholder.
func maskCredentialFields(resource map[string]any) {
	for _, field := range []string{"data", "secrets", "credentials"} {
		fieldVal, ok := resource[field]
		if !ok {
			continue
		}
		dataMap, ok := fieldVal.(map[string]any)
		if !ok {
			continue
		}
		for key := range dataMap {
			dataMap[key] = MaskedCredentialValue
		}
	}
}
