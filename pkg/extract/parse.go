package extract

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Wire types mirror the prompt's response contract. Facts arrive as either
// a bare string or an object, so they decode through json.RawMessage.
type wireResult struct {
	Entities []struct {
		Name  string            `json:"name"`
		Type  string            `json:"type"`
		Facts []json.RawMessage `json:"facts"`
	} `json:"entities"`
	Relations []struct {
		From        string `json:"from"`
		To          string `json:"to"`
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"relations"`
	Knowledge []struct {
		Entity   string `json:"entity"`
		Type     string `json:"type"`
		Title    string `json:"title"`
		Content  string `json:"content"`
		Artifact string `json:"artifact"`
	} `json:"knowledge"`
	Episodes []struct {
		Summary          string   `json:"summary"`
		Context          string   `json:"context"`
		Outcome          string   `json:"outcome"`
		Participants     []string `json:"participants"`
		EmotionalValence string   `json:"emotional_valence"`
		Importance       float64  `json:"importance"`
		HappenedAt       string   `json:"happened_at"`
	} `json:"episodes"`
	Procedures []struct {
		Name     string   `json:"name"`
		Trigger  string   `json:"trigger"`
		Steps    []Step   `json:"steps"`
		Entities []string `json:"entities"`
	} `json:"procedures"`
}

type wireFact struct {
	Fact      string `json:"fact"`
	Content   string `json:"content"`
	When      string `json:"when"`
	EventDate string `json:"event_date"`
}

// parse decodes the LLM response into a Result. It strips markdown fences,
// falls back to the outermost brace span, then to jsonrepair. When nothing
// salvages valid JSON it returns an empty Result with Raw preserved.
func (e *Extractor) parse(raw string) *Result {
	result := &Result{Raw: raw}

	data, ok := decodeJSON(raw)
	if !ok {
		e.logger.Warn("failed to parse extraction response",
			slog.Int("response_len", len(raw)))
		return result
	}

	for _, ent := range data.Entities {
		facts := make([]Fact, 0, len(ent.Facts))
		for _, rawFact := range ent.Facts {
			if f, ok := decodeFact(rawFact); ok {
				facts = append(facts, f)
			}
		}
		result.Entities = append(result.Entities, Entity{
			Name:  orString(ent.Name, "Unknown"),
			Type:  normalizeEntityType(ent.Type),
			Facts: facts,
		})
	}

	for _, rel := range data.Relations {
		if rel.From == "" || rel.To == "" {
			continue
		}
		result.Relations = append(result.Relations, Relation{
			From:        rel.From,
			To:          rel.To,
			Type:        orString(rel.Type, DefaultRelation),
			Description: rel.Description,
		})
	}

	for _, k := range data.Knowledge {
		if k.Entity == "" || k.Title == "" {
			continue
		}
		result.Knowledge = append(result.Knowledge, Knowledge{
			Entity:   k.Entity,
			Type:     orString(k.Type, "insight"),
			Title:    k.Title,
			Content:  k.Content,
			Artifact: nonNullish(k.Artifact),
		})
	}

	for _, ep := range data.Episodes {
		if ep.Summary == "" {
			continue
		}
		result.Episodes = append(result.Episodes, Episode{
			Summary:          ep.Summary,
			Context:          ep.Context,
			Outcome:          ep.Outcome,
			Participants:     ep.Participants,
			EmotionalValence: orString(ep.EmotionalValence, "neutral"),
			Importance:       clamp01(ep.Importance),
			HappenedAt:       nonNullish(ep.HappenedAt),
		})
	}

	for _, pr := range data.Procedures {
		if pr.Name == "" {
			continue
		}
		result.Procedures = append(result.Procedures, Procedure{
			Name:     pr.Name,
			Trigger:  pr.Trigger,
			Steps:    pr.Steps,
			Entities: pr.Entities,
		})
	}

	return result
}

func decodeJSON(raw string) (*wireResult, bool) {
	clean := stripFences(strings.TrimSpace(raw))

	var data wireResult
	if ok := lenientUnmarshal([]byte(clean), &data); ok {
		return &data, true
	}

	// The model sometimes surrounds the JSON with prose. Take the
	// outermost brace span before resorting to repair.
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		span := raw[start : end+1]
		if ok := lenientUnmarshal([]byte(span), &data); ok {
			return &data, true
		}
		if fixed, err := jsonrepair.JSONRepair(span); err == nil {
			if ok := lenientUnmarshal([]byte(fixed), &data); ok {
				return &data, true
			}
		}
	}
	return nil, false
}

// lenientUnmarshal tolerates field type mismatches: encoding/json keeps
// decoding past an UnmarshalTypeError, so the rest of the payload is
// still usable.
func lenientUnmarshal(data []byte, v *wireResult) bool {
	err := json.Unmarshal(data, v)
	if err == nil {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &typeErr)
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 1 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[1 : len(lines)-1]
	} else {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}

func decodeFact(raw json.RawMessage) (Fact, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return Fact{}, false
		}
		return Fact{Content: s}, true
	}
	var wf wireFact
	if err := json.Unmarshal(raw, &wf); err != nil {
		return Fact{}, false
	}
	content := orString(wf.Fact, wf.Content)
	if content == "" {
		return Fact{}, false
	}
	return Fact{Content: content, EventDate: nonNullish(orString(wf.When, wf.EventDate))}, true
}

var knownEntityTypes = map[string]bool{
	TypePerson:     true,
	TypeProject:    true,
	TypeTechnology: true,
	TypeCompany:    true,
	TypeConcept:    true,
	TypePlace:      true,
	TypeActivity:   true,
}

func normalizeEntityType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if knownEntityTypes[t] {
		return t
	}
	return TypeConcept
}

// nonNullish drops the placeholder strings models emit instead of null.
func nonNullish(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "null", "none", "unknown", "":
		return ""
	}
	return s
}

func orString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
