package rolling_test

import (
	"strings"
	"testing"

	"github.com/vampirenirmal/storyloom/internal/core"
	"github.com/vampirenirmal/storyloom/internal/rolling"
)

func fullState() core.StoryState {
	return core.StoryState{
		CoreThemes: []string{"debt", "memory"},
		Terminologies: []core.Terminology{
			{Term: "Thread-Debt", Definition: "obligation woven into cloth"},
		},
		ToneGuidelines: "wry, close third person",
		NarrativeArc:   "a courier unknots the city's oldest debt",
		Motifs:         []string{"lamplight"},
		WorldRules:     []string{"debts are visible as threads"},
	}
}

// findBlock returns the single block starting with prefix, failing the test
// when zero or several match.
func findBlock(t *testing.T, blocks []string, prefix string) string {
	t.Helper()
	var found string
	for _, b := range blocks {
		if !strings.HasPrefix(b, prefix) {
			continue
		}
		if found != "" {
			t.Fatalf("multiple blocks start with %q", prefix)
		}
		found = b
	}
	if found == "" {
		t.Fatalf("no block starts with %q; blocks: %q", prefix, blocks)
	}
	return found
}

func TestBuildBlocksOrdersAllSources(t *testing.T) {
	unit := core.ContentUnit{
		ID:             "u-2",
		Title:          "The Second Lamp",
		Placeholder:    "Iska follows the thread into the archive.",
		ValidatorNotes: "Name the archivist before the reveal.",
		Synopsis:       "Iska learns the debt predates the city.",
	}
	predecessor := &core.ContentUnit{ID: "u-1", DenseSummary: "Iska found the first lamp unlit."}
	participants := []core.Participant{{ID: "p-1", Name: "Iska", Role: "courier"}}

	blocks := rolling.BuildBlocks(unit, fullState(), predecessor, participants)

	wantPrefixes := []string{
		"STORY BIBLE:",
		"PREVIOUS UNIT RECAP:",
		"OUTLINE GUIDANCE:",
		"VALIDATOR NOTES:",
		"THIS UNIT'S INTENT:",
		"PARTICIPANTS:",
		"TERMINOLOGY:",
	}
	if len(blocks) != len(wantPrefixes)+1 {
		t.Fatalf("got %d blocks, want %d: %q", len(blocks), len(wantPrefixes)+1, blocks)
	}
	for i, prefix := range wantPrefixes {
		if !strings.HasPrefix(blocks[i], prefix) {
			t.Errorf("block %d = %q, want prefix %q", i, blocks[i], prefix)
		}
	}
	if last := blocks[len(blocks)-1]; !strings.HasPrefix(last, "Maintain continuity") {
		t.Errorf("last block = %q, want the continuity instruction", last)
	}
}

func TestBuildBlocksOmitsAbsentSources(t *testing.T) {
	blocks := rolling.BuildBlocks(core.ContentUnit{ID: "u-1"}, core.StoryState{}, nil, nil)

	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want only the continuity instruction: %q", len(blocks), blocks)
	}
	if !strings.HasPrefix(blocks[0], "Maintain continuity") {
		t.Errorf("block = %q, want the continuity instruction", blocks[0])
	}
}

func TestBuildBlocksRecapPrefersDenseSummary(t *testing.T) {
	predecessor := &core.ContentUnit{
		ID:           "u-1",
		Synopsis:     "plain synopsis of the opener",
		DenseSummary: "dense recap of the opener",
	}

	blocks := rolling.BuildBlocks(core.ContentUnit{ID: "u-2"}, core.StoryState{}, predecessor, nil)
	recap := findBlock(t, blocks, "PREVIOUS UNIT RECAP:")
	if !strings.Contains(recap, "dense recap of the opener") {
		t.Errorf("recap = %q, want the dense summary", recap)
	}
	if strings.Contains(recap, "plain synopsis") {
		t.Errorf("recap = %q, must not fall back to the synopsis when a dense summary exists", recap)
	}

	predecessor.DenseSummary = ""
	blocks = rolling.BuildBlocks(core.ContentUnit{ID: "u-2"}, core.StoryState{}, predecessor, nil)
	recap = findBlock(t, blocks, "PREVIOUS UNIT RECAP:")
	if !strings.Contains(recap, "plain synopsis of the opener") {
		t.Errorf("recap = %q, want the synopsis fallback", recap)
	}
}

func TestBuildBlocksScopesTerminology(t *testing.T) {
	state := core.StoryState{
		Terminologies: []core.Terminology{
			{Term: "Thread-Debt", Definition: "obligation woven into cloth"},
			{Term: "The Unmade District", Definition: "streets erased from record", ScopeUnitID: "u-2"},
			{Term: "Forty-Second Lamp", Definition: "the lamp that never lit", ScopeUnitID: "u-9"},
		},
	}

	blocks := rolling.BuildBlocks(core.ContentUnit{ID: "u-2"}, state, nil, nil)
	terms := findBlock(t, blocks, "TERMINOLOGY:")

	if !strings.Contains(terms, "Thread-Debt") {
		t.Errorf("terminology block %q missing the global term", terms)
	}
	if !strings.Contains(terms, "The Unmade District") {
		t.Errorf("terminology block %q missing the term scoped to this unit", terms)
	}
	if strings.Contains(terms, "Forty-Second Lamp") {
		t.Errorf("terminology block %q includes a term scoped to another unit", terms)
	}
	if !strings.Contains(terms, "verbatim") {
		t.Errorf("terminology block %q missing the verbatim directive", terms)
	}
}

func TestBuildBlocksMarksPointOfView(t *testing.T) {
	participants := []core.Participant{
		{ID: "p-1", Name: "Brann", Role: "rival"},
		{
			ID: "p-2", Name: "Iska", Role: "courier",
			IsPointOfView:      true,
			DictionRules:       []string{"short declarative sentences"},
			ForbiddenPhrases:   []string{"suddenly"},
			SignatureMetaphors: []string{"debt as thread"},
		},
	}

	blocks := rolling.BuildBlocks(core.ContentUnit{ID: "u-1"}, core.StoryState{}, nil, participants)
	sheet := findBlock(t, blocks, "PARTICIPANTS:")

	if n := strings.Count(sheet, "Point of view."); n != 1 {
		t.Fatalf("sheet marks point of view %d times, want 1:\n%s", n, sheet)
	}
	if strings.Index(sheet, "Iska") > strings.Index(sheet, "Point of view.") {
		t.Errorf("point-of-view marker does not follow the flagged participant:\n%s", sheet)
	}
	for _, want := range []string{
		"Diction rules: short declarative sentences",
		"Forbidden phrases: suddenly",
		"Signature metaphors: debt as thread",
	} {
		if !strings.Contains(sheet, want) {
			t.Errorf("sheet missing %q:\n%s", want, sheet)
		}
	}
}

func TestBuildBlocksDefaultsPointOfViewToFirst(t *testing.T) {
	participants := []core.Participant{
		{ID: "p-1", Name: "Brann", Role: "rival"},
		{ID: "p-2", Name: "Iska", Role: "courier"},
	}

	blocks := rolling.BuildBlocks(core.ContentUnit{ID: "u-1"}, core.StoryState{}, nil, participants)
	sheet := findBlock(t, blocks, "PARTICIPANTS:")

	if n := strings.Count(sheet, "Point of view."); n != 1 {
		t.Fatalf("sheet marks point of view %d times, want 1:\n%s", n, sheet)
	}
	if strings.Index(sheet, "Point of view.") > strings.Index(sheet, "- Iska") {
		t.Errorf("unflagged roster should mark the first participant:\n%s", sheet)
	}
}

func TestStateDigestSkipsEmptyFields(t *testing.T) {
	digest := rolling.StateDigest(core.StoryState{
		ToneGuidelines: "wry",
		Motifs:         []string{"lamplight", "knots"},
	})

	if !strings.Contains(digest, "TONE GUIDELINES: wry") {
		t.Errorf("digest %q missing tone guidelines", digest)
	}
	if !strings.Contains(digest, "MOTIFS: lamplight; knots") {
		t.Errorf("digest %q missing motifs", digest)
	}
	for _, absent := range []string{"CORE THEMES", "TERMINOLOGY", "NARRATIVE ARC", "WORLD RULES"} {
		if strings.Contains(digest, absent) {
			t.Errorf("digest %q carries label %q for an empty field", digest, absent)
		}
	}
}

func TestStateDigestZeroState(t *testing.T) {
	if digest := rolling.StateDigest(core.StoryState{}); digest != "" {
		t.Errorf("digest of zero state = %q, want empty", digest)
	}
}
