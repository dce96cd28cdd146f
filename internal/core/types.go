package core

import "encoding/json"

// DraftStatus tracks a content unit's position in the drafting state machine.
// It advances monotonically through the normal pipeline flow; only the
// surrounding application ever sets StatusComplete.
type DraftStatus string

const (
	StatusIdea      DraftStatus = "idea"
	StatusSkeleton  DraftStatus = "skeleton"
	StatusValidated DraftStatus = "validated"
	StatusDraft     DraftStatus = "draft"
	StatusComplete  DraftStatus = "complete"
)

// Valid reports whether s is one of the known draft states.
func (s DraftStatus) Valid() bool {
	switch s {
	case StatusIdea, StatusSkeleton, StatusValidated, StatusDraft, StatusComplete:
		return true
	}
	return false
}

// rank orders states for the monotonic-advance check. Unknown states rank
// lowest so they never block an update.
func (s DraftStatus) rank() int {
	switch s {
	case StatusIdea:
		return 1
	case StatusSkeleton:
		return 2
	case StatusValidated:
		return 3
	case StatusDraft:
		return 4
	case StatusComplete:
		return 5
	}
	return 0
}

// Before reports whether s precedes other in the normal pipeline order.
func (s DraftStatus) Before(other DraftStatus) bool {
	return s.rank() < other.rank()
}

// Dimension is one weighted scoring axis in an evaluation rubric. Weights
// across a set are relative and need not sum to 1.
type Dimension struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// Trace is the per-dimension record of one evaluation pass, with quoted
// evidence from the candidate text.
type Trace struct {
	Dimension string   `json:"dimension"`
	Score     float64  `json:"score"`
	Evidence  []string `json:"evidence"`
	Failures  []string `json:"failures"`
	Successes []string `json:"successes"`
}

// Mutation is one actionable, atomic edit instruction derived from an
// evaluation failure.
type Mutation struct {
	Target     string `json:"target"`
	Issue      string `json:"issue"`
	Suggestion string `json:"suggestion"`
	Rationale  string `json:"rationale"`
}

// Reflection is the structured result of one evaluation pass. A zero
// Reflection (no traces, OverallScore 0) is the fail-soft placeholder callers
// receive when the judge's output could not be parsed.
type Reflection struct {
	Traces       []Trace    `json:"traces"`
	OverallScore float64    `json:"overallScore"`
	PriorityFix  string     `json:"priorityFix"`
	Mutations    []Mutation `json:"mutations"`
}

// WeightedScore recomputes the overall score from the traces using the given
// dimension weights. Dimensions without a matching trace are skipped; a trace
// whose dimension is not in dims contributes with weight 1.
func (r Reflection) WeightedScore(dims []Dimension) float64 {
	if len(r.Traces) == 0 {
		return 0
	}
	weights := make(map[string]float64, len(dims))
	for _, d := range dims {
		weights[d.Name] = d.Weight
	}
	var sum, total float64
	for _, t := range r.Traces {
		w, ok := weights[t.Dimension]
		if !ok || w <= 0 {
			w = 1
		}
		sum += t.Score * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

// OptimizationResult reports one full optimize run over a candidate of type T.
// FinalScore is normalized to 0..1; Iterations counts evaluate passes actually
// executed.
type OptimizationResult[T any] struct {
	Original    T
	Improved    T
	Iterations  int
	FinalScore  float64
	Reflections []Reflection
}

// Codec carries the serialize/parse pair that makes a candidate type opaque
// to the optimization engine. Serialize must be deterministic so that
// Serialize(Parse(Serialize(x))) == Serialize(x).
type Codec[T any] struct {
	Serialize func(T) string
	Parse     func(string) (T, error)
}

// JSONCodec returns the default codec for any JSON-representable candidate.
// Serialize returns "" for values encoding/json cannot marshal.
func JSONCodec[T any]() Codec[T] {
	return Codec[T]{
		Serialize: func(v T) string {
			data, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return ""
			}
			return string(data)
		},
		Parse: func(s string) (T, error) {
			var v T
			err := json.Unmarshal([]byte(s), &v)
			return v, err
		},
	}
}

// StringCodec treats the candidate as raw text; Parse never fails.
func StringCodec() Codec[string] {
	return Codec[string]{
		Serialize: func(s string) string { return s },
		Parse:     func(s string) (string, error) { return s, nil },
	}
}

// Terminology is one canonical term in the bible. An empty ScopeUnitID marks
// the term global; otherwise it applies only to the named unit.
type Terminology struct {
	Term        string `json:"term"`
	Definition  string `json:"definition"`
	ScopeUnitID string `json:"scopeUnitId,omitempty"`
}

// StoryState is the story bible: global, read-mostly context shared by all
// content units. The extraction stage is its single writer; re-extraction
// overwrites it wholesale (no merge).
type StoryState struct {
	CoreThemes     []string      `json:"coreThemes"`
	Terminologies  []Terminology `json:"terminologies"`
	ToneGuidelines string        `json:"toneGuidelines"`
	NarrativeArc   string        `json:"narrativeArc"`
	Motifs         []string      `json:"motifs"`
	WorldRules     []string      `json:"worldRules"`
}

// IsZero reports whether the state carries no content at all.
func (s StoryState) IsZero() bool {
	return len(s.CoreThemes) == 0 && len(s.Terminologies) == 0 &&
		s.ToneGuidelines == "" && s.NarrativeArc == "" &&
		len(s.Motifs) == 0 && len(s.WorldRules) == 0
}

// ContentUnit is one addressable piece of hierarchical content (a chapter).
// It is created at the skeleton stage with a placeholder and empty body and
// mutated in place through validation, drafting, and summarization.
//
// LastPromptHash always reflects the hash of the context blocks most recently
// composed for the unit; staleness is detected by recomputing and comparing.
type ContentUnit struct {
	ID                   string      `json:"id"`
	OrderIndex           int         `json:"orderIndex"`
	Title                string      `json:"title"`
	Placeholder          string      `json:"placeholder"`
	ValidatorNotes       string      `json:"validatorNotes"`
	DraftStatus          DraftStatus `json:"draftStatus"`
	DenseSummary         string      `json:"denseSummary"`
	ContextSnapshot      string      `json:"contextSnapshot"`
	LastPromptHash       string      `json:"lastPromptHash"`
	ContextTokenEstimate int         `json:"contextTokenEstimate"`
	Body                 string      `json:"body"`
	Synopsis             string      `json:"synopsis"`
	ParticipantIDs       []string    `json:"participantIds"`
}

// Participant is a character-like entity; read-only input to context
// assembly. The point-of-view participant additionally contributes voice
// constraints (diction rules, forbidden phrases, signature metaphors).
type Participant struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Role               string   `json:"role"`
	Bio                string   `json:"bio"`
	Traits             []string `json:"traits"`
	IsPointOfView      bool     `json:"isPointOfView"`
	DictionRules       []string `json:"dictionRules"`
	ForbiddenPhrases   []string `json:"forbiddenPhrases"`
	SignatureMetaphors []string `json:"signatureMetaphors"`
}
