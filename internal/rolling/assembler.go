// Package rolling keeps generation input bounded as the narrative grows: it
// assembles the ordered context blocks for each drafting call, compresses
// drafted bodies into dense summaries for reuse by later units, and tracks
// when a unit's composed context has drifted from the hash recorded at its
// last generation.
package rolling

import (
	"fmt"
	"strings"

	"github.com/vampirenirmal/storyloom/internal/core"
)

// continuityInstruction closes every assembled context.
const continuityInstruction = "Maintain continuity with the previous unit and set up the next one naturally."

// terminologyDirective is appended whenever relevant terminology exists.
const terminologyDirective = "Use these exact terms verbatim; do not substitute synonyms or invent variants."

// BuildBlocks composes the ordered context blocks for drafting unit. A block
// whose source data is absent is omitted entirely, never emitted empty.
// predecessor is nil for the first unit in sequence; participants are the
// already-loaded entities named by unit.ParticipantIDs, in that order.
func BuildBlocks(unit core.ContentUnit, state core.StoryState, predecessor *core.ContentUnit, participants []core.Participant) []string {
	blocks := make([]string, 0, 8)

	if digest := StateDigest(state); digest != "" {
		blocks = append(blocks, "STORY BIBLE:\n"+digest)
	}

	if recap := predecessorRecap(predecessor); recap != "" {
		blocks = append(blocks, "PREVIOUS UNIT RECAP:\n"+recap)
	}

	if p := strings.TrimSpace(unit.Placeholder); p != "" {
		blocks = append(blocks, "OUTLINE GUIDANCE:\n"+p)
	}

	if n := strings.TrimSpace(unit.ValidatorNotes); n != "" {
		blocks = append(blocks, "VALIDATOR NOTES:\n"+n)
	}

	if s := strings.TrimSpace(unit.Synopsis); s != "" {
		blocks = append(blocks, "THIS UNIT'S INTENT:\n"+s)
	}

	if sheet := participantSheet(participants); sheet != "" {
		blocks = append(blocks, "PARTICIPANTS:\n"+sheet)
	}

	if terms := relevantTerminology(state.Terminologies, unit.ID); terms != "" {
		blocks = append(blocks, "TERMINOLOGY:\n"+terms+"\n"+terminologyDirective)
	}

	blocks = append(blocks, continuityInstruction)
	return blocks
}

// StateDigest renders the bible's six fields, each labeled, skipping fields
// that carry no content. It returns "" for a zero state.
func StateDigest(state core.StoryState) string {
	var b strings.Builder

	writeList := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s: %s\n", label, strings.Join(items, "; "))
	}
	writeText := func(label, text string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		fmt.Fprintf(&b, "%s: %s\n", label, strings.TrimSpace(text))
	}

	writeList("CORE THEMES", state.CoreThemes)
	if len(state.Terminologies) > 0 {
		pairs := make([]string, 0, len(state.Terminologies))
		for _, t := range state.Terminologies {
			pairs = append(pairs, t.Term+" = "+t.Definition)
		}
		writeList("TERMINOLOGY", pairs)
	}
	writeText("TONE GUIDELINES", state.ToneGuidelines)
	writeText("NARRATIVE ARC", state.NarrativeArc)
	writeList("MOTIFS", state.Motifs)
	writeList("WORLD RULES", state.WorldRules)

	return strings.TrimRight(b.String(), "\n")
}

// predecessorRecap prefers the predecessor's dense summary and falls back to
// its plain synopsis. It returns "" when there is no predecessor or the
// predecessor carries neither.
func predecessorRecap(predecessor *core.ContentUnit) string {
	if predecessor == nil {
		return ""
	}
	if s := strings.TrimSpace(predecessor.DenseSummary); s != "" {
		return s
	}
	return strings.TrimSpace(predecessor.Synopsis)
}

// participantSheet renders one line group per participant. The point-of-view
// participant, or the first listed when none is flagged, additionally
// contributes voice constraints.
func participantSheet(participants []core.Participant) string {
	if len(participants) == 0 {
		return ""
	}

	povIndex := 0
	for i, p := range participants {
		if p.IsPointOfView {
			povIndex = i
			break
		}
	}

	var b strings.Builder
	for i, p := range participants {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s", p.Name)
		if p.Role != "" {
			fmt.Fprintf(&b, " (%s)", p.Role)
		}
		if p.Bio != "" {
			b.WriteString(": " + p.Bio)
		}
		if len(p.Traits) > 0 {
			b.WriteString("\n  Traits: " + strings.Join(p.Traits, ", "))
		}
		if i != povIndex {
			continue
		}
		b.WriteString("\n  Point of view.")
		if len(p.DictionRules) > 0 {
			b.WriteString("\n  Diction rules: " + strings.Join(p.DictionRules, "; "))
		}
		if len(p.ForbiddenPhrases) > 0 {
			b.WriteString("\n  Forbidden phrases: " + strings.Join(p.ForbiddenPhrases, "; "))
		}
		if len(p.SignatureMetaphors) > 0 {
			b.WriteString("\n  Signature metaphors: " + strings.Join(p.SignatureMetaphors, "; "))
		}
	}
	return b.String()
}

// relevantTerminology lists global (unscoped) terms plus terms scoped to
// unitID, one per line.
func relevantTerminology(terms []core.Terminology, unitID string) string {
	var b strings.Builder
	for _, t := range terms {
		if t.ScopeUnitID != "" && t.ScopeUnitID != unitID {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s: %s", t.Term, t.Definition)
	}
	return b.String()
}

// predecessorOf returns the unit with the largest OrderIndex strictly below
// unit's, or nil when unit is first. units need not be sorted.
func predecessorOf(units []core.ContentUnit, unit core.ContentUnit) *core.ContentUnit {
	var best *core.ContentUnit
	for i := range units {
		candidate := &units[i]
		if candidate.ID == unit.ID || candidate.OrderIndex >= unit.OrderIndex {
			continue
		}
		if best == nil || candidate.OrderIndex > best.OrderIndex {
			best = candidate
		}
	}
	return best
}
