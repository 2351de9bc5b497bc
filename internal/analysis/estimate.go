package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MacroEstimate is the nutritional estimate for one photographed meal.
type MacroEstimate struct {
	Name        string  `json:"name"`
	Calories    float64 `json:"calories"`
	Protein     float64 `json:"protein"`
	Carbs       float64 `json:"carbs"`
	Fat         float64 `json:"fat"`
	Description string  `json:"description,omitempty"`
}

// StripCodeFences removes every markdown fence marker from model output.
func StripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// ParseEstimate parses the text returned by a model into an estimate.
func ParseEstimate(text string) (MacroEstimate, error) {
	body := StripCodeFences(text)
	if !strings.HasPrefix(body, "{") {
		return MacroEstimate{}, fmt.Errorf("failed to parse model response: expected a JSON object, got %.40q", body)
	}
	var estimate MacroEstimate
	if err := json.Unmarshal([]byte(body), &estimate); err != nil {
		return MacroEstimate{}, fmt.Errorf("failed to parse model response: %w", err)
	}
	return estimate, nil
}
