package llm

import (
	"context"
	"strings"
	"sync"
)

// MockCall records one request the mock served.
type MockCall struct {
	System string
	User   string
}

type mockRule struct {
	keyword  string
	response string
}

// Mock is a deterministic core.TextService for tests and offline dry runs.
// Responses are routed by keyword match against the prompts, first rule wins;
// the preloaded rules cover every stage of an auto-build so the whole
// pipeline can run without a network.
type Mock struct {
	mu    sync.Mutex
	rules []mockRule
	calls []MockCall
	fail  error
}

// NewMock returns a mock preloaded with stage responses.
func NewMock() *Mock {
	return &Mock{rules: defaultRules()}
}

// Respond registers a response for prompts containing keyword. Later
// registrations take precedence over earlier ones and over the defaults.
func (m *Mock) Respond(keyword, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append([]mockRule{{keyword: strings.ToLower(keyword), response: response}}, m.rules...)
}

// FailWith makes every subsequent call return err. Passing nil clears it.
func (m *Mock) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Calls returns a copy of the journal of served requests.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Complete routes by keyword and returns the canned response.
func (m *Mock) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{System: systemPrompt, User: userPrompt})
	if m.fail != nil {
		return "", m.fail
	}

	haystack := strings.ToLower(systemPrompt + "\n" + userPrompt)
	for _, rule := range m.rules {
		if strings.Contains(haystack, rule.keyword) {
			return rule.response, nil
		}
	}
	return mockFallback, nil
}

// CompleteStream delivers the canned response in a handful of chunks so sink
// plumbing gets exercised.
func (m *Mock) CompleteStream(ctx context.Context, systemPrompt, userPrompt string, chunk func(string) error) (string, error) {
	text, err := m.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	if chunk == nil {
		return text, nil
	}

	const pieces = 4
	size := (len(text) + pieces - 1) / pieces
	for i := 0; i < len(text); i += size {
		end := i + size
		if end > len(text) {
			end = len(text)
		}
		if err := chunk(text[i:end]); err != nil {
			return "", err
		}
	}
	return text, nil
}

const mockFallback = `The lamplighter counted her steps along the canal, the way she always did when the fog came in off the water, and stopped at forty-one because the forty-second lamp was already burning.`

func defaultRules() []mockRule {
	return []mockRule{
		{keyword: "story-bible analyst", response: mockBibleJSON},
		{keyword: "story architect", response: mockSkeletonJSON},
		{keyword: "continuity validator", response: mockValidationJSON},
		{keyword: "quality evaluator", response: mockReflectionJSON},
		{keyword: "revision editor", response: mockFallback},
		{keyword: "compress narrative chapters", response: mockSummaryJSON},
		{keyword: "novelist", response: mockDraftProse},
	}
}

const mockBibleJSON = `{
  "coreThemes": ["memory as cartography", "the cost of forgetting"],
  "terminologies": [
    {"term": "the Loom", "definition": "The semi-sentient archive beneath the city that reweaves what its users recall."},
    {"term": "thread-debt", "definition": "Memory owed to the Loom in exchange for a retrieval."}
  ],
  "toneGuidelines": "Melancholic but propulsive; close third person; concrete sensory anchors over abstraction.",
  "narrativeArc": "A municipal cartographer discovers her maps rewrite the districts they chart and must unmake her own masterpiece before the city forgets itself.",
  "motifs": ["unraveling thread", "ink that moves when unobserved"],
  "worldRules": ["A map alters what it charts within one tide cycle.", "The Loom never forgives a thread-debt; it collects."]
}`

const mockSkeletonJSON = `[
  {"id": "", "title": "The Forty-Second Lamp", "placeholder": "Iska notices the first discrepancy between her survey and the street.", "summary": "Iska, charting the canal district, finds a lamp her map says should not exist, and pockets the error instead of reporting it."},
  {"id": "", "title": "Thread-Debt", "placeholder": "The Loom names its price for an answer.", "summary": "Iska descends to the Loom to ask about the lamp and leaves owing it the memory of her sister's voice."},
  {"id": "", "title": "The Unmade District", "placeholder": "A charted district begins to fade.", "summary": "The district Iska surveyed last spring is blurring at its edges; she realizes her own maps are the instrument and resolves to redraw them wrong."}
]`

const mockValidationJSON = `[
  {"id": "", "validatorNotes": "Anchor the lamp count early; it pays off in the final unit.", "draftStatus": "validated"},
  {"id": "", "validatorNotes": "The Loom's price must be concrete and irreversible on the page.", "draftStatus": "validated"},
  {"id": "", "validatorNotes": "Keep the fading gradual; no wholesale disappearance yet.", "draftStatus": "validated"}
]`

const mockReflectionJSON = `{
  "traces": [
    {"dimension": "continuity", "score": 9, "evidence": ["the forty-second lamp recurs"], "failures": [], "successes": ["terminology used consistently"]}
  ],
  "overallScore": 9.1,
  "priorityFix": "",
  "mutations": []
}`

const mockSummaryJSON = `{"denseSummary": "Iska charts the canal district and finds a forty-second lamp her survey insists cannot exist. Rather than file the discrepancy she hides it, walking the row twice to be sure. The count holds: the city has grown a lamp overnight. She marks the error in private ink, aware that her employer burns corrected maps, and resolves to ask the Loom what her own hand has done. The unit closes with her at the archive stair, tally book against her chest, owing nothing yet."}`

const mockDraftProse = `Iska counted the lamps twice because the first count had to be wrong. Forty-two. Her survey sheet, inked and witnessed three weeks ago, said forty-one, and survey sheets did not lie; that was the whole of her profession resting on one clean principle. The forty-second lamp stood where the canal bent toward the fish market, iron-footed, salt-bitten, older-looking than its neighbors, as if it had always been there and the street had grown around it.

She did not report it. She stood in the fog with her tally book against her chest and understood, in the wordless way one understands a debt before seeing the ledger, that the error was hers in some manner she could not yet name. The ink on her master sheet had moved. Somewhere beneath the city, the Loom had taken up her lines and runstitched a lamp into the world.

Iska closed the book. Tomorrow she would go down the archive stair and ask. Tonight she walked the row a third time, touching each cold iron column as she passed, teaching her hand the count the city now insisted upon.`
