package rolling

const summarizeSystemPrompt = `You compress narrative chapters into dense, information-preserving summaries. Your summaries become the only memory later chapters have of this one, so nothing load-bearing may be dropped.`

const summarizeTemplateName = "summarize"

const summarizeTemplate = `Compress the unit below into one dense paragraph of 80 to 150 words.

Rules:
- Preserve every proper noun and every canonical term verbatim.
- Capture the causal beats: what happened, why, and what it set in motion.
- Capture the emotional throughline of the point-of-view character.
- State only what the text states; no commentary, no invented foreshadowing.

Return ONLY a valid JSON object with this exact structure (no markdown, no additional text):
{
  "denseSummary": "<the paragraph>"
}

{{if .Title}}UNIT TITLE: {{.Title}}

{{end}}UNIT BODY:
{{.Body}}`
