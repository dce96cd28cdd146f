package core_test

import (
	"testing"

	"github.com/vampirenirmal/storyloom/internal/core"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	type chapterPlan struct {
		Title string   `json:"title"`
		Beats []string `json:"beats"`
	}
	codec := core.JSONCodec[chapterPlan]()

	x := chapterPlan{Title: "The Archive", Beats: []string{"entry", "reveal", "flight"}}
	once := codec.Serialize(x)
	if once == "" {
		t.Fatal("Serialize returned empty for a marshalable value")
	}

	parsed, err := codec.Parse(once)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if twice := codec.Serialize(parsed); twice != once {
		t.Errorf("Serialize(Parse(Serialize(x))) = %q, want %q", twice, once)
	}
}

func TestJSONCodecArrayRoundTrip(t *testing.T) {
	codec := core.JSONCodec[[]int]()

	once := codec.Serialize([]int{1, 2, 3})
	parsed, err := codec.Parse(once)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if twice := codec.Serialize(parsed); twice != once {
		t.Errorf("Serialize(Parse(Serialize(x))) = %q, want %q", twice, once)
	}
}

func TestJSONCodecUnmarshalableValue(t *testing.T) {
	codec := core.JSONCodec[chan int]()
	if got := codec.Serialize(make(chan int)); got != "" {
		t.Errorf("Serialize(chan) = %q, want empty", got)
	}
}

func TestStringCodec(t *testing.T) {
	codec := core.StringCodec()

	if got := codec.Serialize("raw prose"); got != "raw prose" {
		t.Errorf("Serialize = %q, want identity", got)
	}
	got, err := codec.Parse("any text at all")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != "any text at all" {
		t.Errorf("Parse = %q, want identity", got)
	}
}

func TestWeightedScore(t *testing.T) {
	dims := []core.Dimension{
		{Name: "continuity", Weight: 2},
		{Name: "pacing", Weight: 1},
	}

	tests := []struct {
		name   string
		traces []core.Trace
		want   float64
	}{
		{
			name: "weighted across known dimensions",
			traces: []core.Trace{
				{Dimension: "continuity", Score: 8},
				{Dimension: "pacing", Score: 5},
			},
			want: (8*2 + 5*1) / 3.0,
		},
		{
			name: "unknown dimension counts with weight one",
			traces: []core.Trace{
				{Dimension: "continuity", Score: 8},
				{Dimension: "mystery axis", Score: 2},
			},
			want: (8*2 + 2*1) / 3.0,
		},
		{
			name:   "no traces",
			traces: nil,
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := core.Reflection{Traces: tt.traces}
			if got := r.WeightedScore(dims); got != tt.want {
				t.Errorf("WeightedScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeightedScoreZeroWeightFallsBackToOne(t *testing.T) {
	dims := []core.Dimension{{Name: "continuity", Weight: 0}}
	r := core.Reflection{Traces: []core.Trace{{Dimension: "continuity", Score: 6}}}

	if got := r.WeightedScore(dims); got != 6 {
		t.Errorf("WeightedScore = %v, want 6 (weight 0 treated as 1)", got)
	}
}

func TestDraftStatusValid(t *testing.T) {
	for _, s := range []core.DraftStatus{
		core.StatusIdea, core.StatusSkeleton, core.StatusValidated,
		core.StatusDraft, core.StatusComplete,
	} {
		if !s.Valid() {
			t.Errorf("Valid(%q) = false, want true", s)
		}
	}
	for _, s := range []core.DraftStatus{"", "published", "DRAFT"} {
		if s.Valid() {
			t.Errorf("Valid(%q) = true, want false", s)
		}
	}
}

func TestDraftStatusBefore(t *testing.T) {
	order := []core.DraftStatus{
		core.StatusIdea, core.StatusSkeleton, core.StatusValidated,
		core.StatusDraft, core.StatusComplete,
	}
	for i, earlier := range order {
		for j, later := range order {
			want := i < j
			if got := earlier.Before(later); got != want {
				t.Errorf("%q.Before(%q) = %v, want %v", earlier, later, got, want)
			}
		}
	}

	// An unrecognized status never blocks an advance.
	if !core.DraftStatus("bogus").Before(core.StatusIdea) {
		t.Error("unknown status should rank below every known one")
	}
	if core.StatusIdea.Before(core.DraftStatus("bogus")) {
		t.Error("known status should not rank below an unknown one")
	}
}

func TestStoryStateIsZero(t *testing.T) {
	if !(core.StoryState{}).IsZero() {
		t.Error("IsZero(zero state) = false, want true")
	}

	states := map[string]core.StoryState{
		"themes":      {CoreThemes: []string{"debt"}},
		"terminology": {Terminologies: []core.Terminology{{Term: "Thread-Debt"}}},
		"tone":        {ToneGuidelines: "wry"},
		"arc":         {NarrativeArc: "rise and unknot"},
		"motifs":      {Motifs: []string{"lamplight"}},
		"world rules": {WorldRules: []string{"debts are visible"}},
	}
	for name, s := range states {
		if s.IsZero() {
			t.Errorf("IsZero(state with %s) = true, want false", name)
		}
	}
}
