package extract

import (
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// RepairResult tries to recover a Result from a body that failed strict parsing:
// markdown fences, single quotes, trailing commas and similar slips that
// model-backed extraction services tend to produce.
func RepairResult(raw []byte) (Result, []byte, error) {
	in := strings.TrimSpace(string(raw))
	if in == "" {
		return nil, nil, fmt.Errorf("repair: empty body")
	}
	repaired, err := jsonrepair.RepairJSON(in)
	if err != nil {
		return nil, nil, fmt.Errorf("repair: %w", err)
	}
	res, err := ParseResult([]byte(repaired))
	if err != nil {
		return nil, nil, fmt.Errorf("repair: %w", err)
	}
	return res, []byte(repaired), nil
}
