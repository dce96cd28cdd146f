package core

// ChapterQualityDimensions is the rubric used when drafting routes a unit
// body through reflective optimization. Weights are relative: continuity and
// character voice dominate because they are the errors a reader forgives
// least across unit boundaries.
func ChapterQualityDimensions() []Dimension {
	return []Dimension{
		{
			Name:        "continuity",
			Description: "Events, facts, and established canon agree with the story bible and the previous unit's summary; no contradicted details or resets.",
			Weight:      2,
		},
		{
			Name:        "character voice",
			Description: "Each participant speaks and acts within their established diction, traits, and role; the point-of-view voice stays consistent.",
			Weight:      2,
		},
		{
			Name:        "pacing",
			Description: "Scene rhythm alternates action and reflection without dead stretches or rushed turns; word count is spent where the stakes are.",
			Weight:      1.5,
		},
		{
			Name:        "tension",
			Description: "Conflict or unresolved pressure is present on every page; stakes escalate or complicate rather than repeat.",
			Weight:      1.5,
		},
		{
			Name:        "sensory detail",
			Description: "Concrete, specific imagery grounds each scene; abstractions are backed by at least one sensory anchor.",
			Weight:      1,
		},
		{
			Name:        "emotional arc",
			Description: "The unit moves its point-of-view participant through a discernible emotional change that sets up the next unit.",
			Weight:      1,
		},
	}
}

// PromptQualityDimensions is the rubric OptimizePrompt applies to an
// instruction template's sample output when improving the template itself.
func PromptQualityDimensions() []Dimension {
	return []Dimension{
		{
			Name:        "instruction coverage",
			Description: "The output suggests the template asked for everything the task needs; nothing important was left to the model's guesswork.",
			Weight:      2,
		},
		{
			Name:        "specificity",
			Description: "The output is concrete where the task demands it; vague or generic passages point at vague template language.",
			Weight:      1.5,
		},
		{
			Name:        "format discipline",
			Description: "The output respects the requested structure exactly; formatting drift points at weak or contradictory format instructions.",
			Weight:      1.5,
		},
		{
			Name:        "constraint adherence",
			Description: "Stated limits (length, vocabulary, scope) were honored; violations point at counterproductive or buried constraints.",
			Weight:      1,
		},
	}
}
