package gemini

import "encoding/json"

func jsonString(v map[string]any) (string, error) {
	if v == nil {
		return "{}", nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return "{}", err
	}

	return string(b), nil
}
