// Package extract turns raw conversation turns into structured knowledge:
// entities with facts, relations between entities, reusable knowledge
// entries, episodes and procedures. Extraction is delegated to an LLM
// through a versioned prompt; the response is parsed defensively because
// models occasionally wrap JSON in fences or emit trailing commas.
package extract

import "errors"

// ErrExhausted is returned when all extraction attempts fail.
var ErrExhausted = errors.New("extract: retries exhausted")

// Entity types the extractor recognizes. Anything else is folded
// into TypeConcept.
const (
	TypePerson     = "person"
	TypeProject    = "project"
	TypeTechnology = "technology"
	TypeCompany    = "company"
	TypeConcept    = "concept"
	TypePlace      = "place"
	TypeActivity   = "activity"
)

// DefaultRelation is used when the LLM omits a relation type.
const DefaultRelation = "related_to"

// Fact is a short assertion about an entity, optionally dated.
type Fact struct {
	Content   string
	EventDate string // "2006-01-02", empty when unknown
}

// Entity is a named thing the conversation mentioned, with the facts
// asserted about it.
type Entity struct {
	Name  string
	Type  string
	Facts []Fact
}

// Relation is a typed, directed connection between two entities.
type Relation struct {
	From        string
	To          string
	Type        string
	Description string
}

// Knowledge is a reusable entry attached to an entity: a solution,
// formula, command, insight, decision, recipe or reference. Artifact
// carries verbatim code, config or commands when present.
type Knowledge struct {
	Entity   string
	Type     string
	Title    string
	Content  string
	Artifact string
}

// Episode is a dated event worth remembering.
type Episode struct {
	Summary          string
	Context          string
	Outcome          string
	Participants     []string
	EmotionalValence string  // positive, negative, neutral, mixed
	Importance       float64 // clamped to [0, 1]
	HappenedAt       string  // "2006-01-02", empty when unknown
}

// Step is one ordered action of a procedure.
type Step struct {
	Step   int    `json:"step"`
	Action string `json:"action"`
	Detail string `json:"detail"`
}

// Procedure is a repeatable workflow extracted from the conversation.
type Procedure struct {
	Name     string
	Trigger  string
	Steps    []Step
	Entities []string
}

// Result holds everything one extraction produced. Raw preserves the
// unparsed LLM response for debugging.
type Result struct {
	Entities   []Entity
	Relations  []Relation
	Knowledge  []Knowledge
	Episodes   []Episode
	Procedures []Procedure
	Raw        string
}

// Empty reports whether the extraction produced nothing usable.
func (r *Result) Empty() bool {
	return len(r.Entities) == 0 && len(r.Relations) == 0 &&
		len(r.Knowledge) == 0 && len(r.Episodes) == 0 && len(r.Procedures) == 0
}
