package engine

// Built-in template sources. Each can be overridden by dropping a file with
// the same name plus a .tmpl extension into the configured prompt directory.

const judgeSystemPrompt = `You are a meticulous quality evaluator for long-form narrative work. You score artifacts against a weighted rubric, quote exact passages as evidence, and propose small, surgical edits. You never pad scores and you never invent passages that are not in the artifact.`

const evaluateTemplateName = "evaluate"

const evaluateTemplate = `Score the candidate artifact below against each rubric dimension.

{{if .Context}}Context for this evaluation:
{{.Context}}

{{end}}Rubric dimensions (score each from 0 to 10):
{{range .Dimensions}}- {{.Name}} (weight {{.Weight}}): {{.Description}}
{{end}}
For every dimension, quote exact passages from the candidate: evidence supporting your score, passages where the dimension fails, and passages where it succeeds. Compute the overall score as the weighted average of the dimension scores. Name the single most impactful fix, then list atomic edit suggestions.

Return ONLY a valid JSON object with this exact structure (no markdown, no additional text):
{
  "traces": [
    {
      "dimension": "<dimension name>",
      "score": <0-10>,
      "evidence": ["<exact quote>"],
      "failures": ["<exact quote of a weak passage>"],
      "successes": ["<exact quote of a strong passage>"]
    }
  ],
  "overallScore": <weighted average, 0-10>,
  "priorityFix": "<the single most impactful change>",
  "mutations": [
    {
      "target": "<where to edit>",
      "issue": "<what is wrong there>",
      "suggestion": "<the specific edit to make>",
      "rationale": "<why the edit raises quality>"
    }
  ]
}

CANDIDATE:
{{.Candidate}}`

const improveSystemPrompt = `You are a precise revision editor. You apply targeted critique to an artifact without degrading the parts that already work, and you return only the revised artifact.`

const improveTemplateName = "improve"

const improveTemplate = `The candidate below scored {{printf "%.1f" .OverallScore}}/10 against its quality rubric.

Dimension results:
{{range .Traces}}- {{.Dimension}}: {{printf "%.1f" .Score}}/10 ({{len .Failures}} weak passages, {{len .Successes}} strong passages)
{{end}}
Priority fix: {{.PriorityFix}}

Apply each edit below:
{{range .Mutations}}- target: {{.Target}} -> issue: {{.Issue}} -> suggestion: {{.Suggestion}} -> rationale: {{.Rationale}}
{{end}}
Rewrite the candidate, applying the priority fix first and then every edit. Preserve everything that already works. Return ONLY the revised content, in exactly the same format as the original, with no commentary and no markdown fences.

CANDIDATE:
{{.Candidate}}`

const promptRewriteSystemPrompt = `You are an expert at writing instructions for language models. You diagnose why an instruction template produced a weak output and rewrite the template so the next execution produces a stronger one.`

const promptRewriteTemplateName = "prompt_rewrite"

const promptRewriteTemplate = `An instruction template was executed against a sample input. The output it produced scored {{printf "%.1f" .OverallScore}}/10 against a quality rubric.

Dimension results:
{{range .Traces}}- {{.Dimension}}: {{printf "%.1f" .Score}}/10
{{end}}
Priority fix: {{.PriorityFix}}

Edit suggestions derived from the output:
{{range .Mutations}}- target: {{.Target}} -> issue: {{.Issue}} -> suggestion: {{.Suggestion}} -> rationale: {{.Rationale}}
{{end}}
Identify the missing, vague, or counterproductive instructions in the template that allowed these weaknesses, then rewrite it. Keep placeholders and formatting directives intact. Return ONLY the revised instruction template, with no commentary and no markdown fences.

INSTRUCTION TEMPLATE:
{{.Template}}

SAMPLE INPUT:
{{.SampleInput}}

OUTPUT IT PRODUCED:
{{.SampleOutput}}`
