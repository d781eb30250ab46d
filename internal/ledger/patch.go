package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// mergePatch applies an RFC 7386 JSON merge patch to doc.
func mergePatch(doc, patch json.RawMessage) (json.RawMessage, error) {
	var target any
	if len(doc) > 0 {
		if err := decodeJSON(doc, &target); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
	}
	var p any
	if err := decodeJSON(patch, &p); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	out, err := json.Marshal(applyMerge(target, p))
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return out, nil
}

func applyMerge(target, patch any) any {
	patchObj, ok := patch.(map[string]any)
	if !ok {
		return patch
	}
	targetObj, ok := target.(map[string]any)
	if !ok {
		targetObj = make(map[string]any)
	}
	for k, v := range patchObj {
		if v == nil {
			delete(targetObj, k)
			continue
		}
		targetObj[k] = applyMerge(targetObj[k], v)
	}
	return targetObj
}

// isJSONObject reports whether raw decodes to a JSON object.
func isJSONObject(raw json.RawMessage) bool {
	var obj map[string]any
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}

// decodeJSON keeps numbers as json.Number so integers survive a round trip.
func decodeJSON(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
