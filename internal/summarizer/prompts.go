package summarizer

import "fmt"

// buildChunkPrompt asks for a condensed version of one transcript chunk.
func buildChunkPrompt(chunk string) string {
	prompt := `You are an expert meeting and audio summarizer.

Summarize the transcript chunk below. Preserve decisions, commitments, names and numbers; drop filler and small talk.

RULES:
- Ground every statement in the chunk. NO outside knowledge.
- DO NOT invent names, dates or figures.
- DO NOT include commentary.
- DO NOT wrap the JSON in backticks.

SCHEMA (STRICT - RETURN ONLY JSON)
{
  "summary_text": ""
}

TRANSCRIPT CHUNK:
%s

Return ONLY valid JSON matching the schema.
`
	return fmt.Sprintf(prompt, chunk)
}

// buildFinalPrompt produces the job-level summary. For short transcripts the
// input is the transcript itself; for chunked ones it is the concatenation of
// the chunk summaries.
func buildFinalPrompt(input string) string {
	prompt := `You are an expert meeting and audio summarizer.

Write the final summary of the recording from the material below. Keep it to a few sentences, then list the key points worth remembering.

RULES:
- Ground every statement in the material. NO outside knowledge.
- DO NOT invent names, dates or figures.
- key_points entries are short, one fact each.
- If the material is thin, return fewer key points instead of padding.
- DO NOT include commentary.
- DO NOT wrap the JSON in backticks.

SCHEMA (STRICT - RETURN ONLY JSON)
{
  "summary_text": "",
  "key_points": []
}

MATERIAL:
%s

Return ONLY valid JSON matching the schema.
`
	return fmt.Sprintf(prompt, input)
}
