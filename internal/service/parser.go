package service

import (
	"encoding/json"
	"regexp"
)

var (
	fencedJSONBlock = regexp.MustCompile("(?s)```(?i:json)\\s*(\\{.*?\\})\\s*```")
	outerBraceSpan  = regexp.MustCompile(`(?s)\{.*\}`)
)

// RoutinePayload is the object the routine prompt asks the model to return.
type RoutinePayload struct {
	Routines    []RoutineDraft `json:"routines"`
	Explanation FlexString     `json:"explanation"`
}

// ParsedResponse is a successful structured parse of a model answer.
type ParsedResponse struct {
	Payload  RoutinePayload
	Strategy string
}

type extractionStrategy struct {
	name    string
	extract func(text string) []string
}

// Order matters: a fenced block is preferred over any loose brace span.
var routineStrategies = []extractionStrategy{
	{name: "fenced_json", extract: extractFencedJSON},
	{name: "brace_span", extract: extractBraceSpan},
}

func extractFencedJSON(text string) []string {
	matches := fencedJSONBlock.FindAllStringSubmatch(text, -1)
	candidates := make([]string, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, m[1])
	}
	return candidates
}

func extractBraceSpan(text string) []string {
	if span := outerBraceSpan.FindString(text); span != "" {
		return []string{span}
	}
	return nil
}

// ParseRoutineResponse recovers the routines object from free-form model text.
// ok is false when no strategy yields a JSON object with at least one routine;
// the caller then falls back to returning the raw text.
func ParseRoutineResponse(text string) (parsed *ParsedResponse, ok bool) {
	for _, strategy := range routineStrategies {
		for _, candidate := range strategy.extract(text) {
			payload, ok := decodeRoutinePayload(candidate)
			if !ok {
				continue
			}
			return &ParsedResponse{Payload: payload, Strategy: strategy.name}, true
		}
	}
	return nil, false
}

func decodeRoutinePayload(candidate string) (RoutinePayload, bool) {
	var payload RoutinePayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return RoutinePayload{}, false
	}
	// A missing or empty routines array is treated the same as unparseable text.
	if len(payload.Routines) == 0 {
		return RoutinePayload{}, false
	}
	return payload, true
}
