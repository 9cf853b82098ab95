package jsonx

import (
	json "github.com/goccy/go-json"
)

// ToDynamicJSON round-trips val through JSON and returns the resulting object.
// It fails when val does not encode to a JSON object.
func ToDynamicJSON(val any) (map[string]any, error) {
	b, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	result := make(map[string]any)
	if err = json.Unmarshal(b, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Text renders v the way it is handed to a model: strings as is, everything
// else as compact JSON.
func Text(v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
