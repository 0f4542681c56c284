package gemini

import (
	"fmt"
	"strings"

	"interview-insights-go/internal/synthesis"
)

// BuildPrompt asks for a JSON verdict on one interview answer.
func BuildPrompt(req synthesis.Request) string {
	var b strings.Builder
	b.WriteString(`You are an experienced interview coach. Evaluate the candidate's recorded answer using ONLY the material below.

Return ONLY a JSON object with keys:
overall_score (0-10),
content_feedback (string),
delivery_feedback (string),
body_language_feedback (string),
strengths (list of strings),
improvements (list of strings).

`)
	fmt.Fprintf(&b, "Interview question:\n%s\n\n", req.Question)
	fmt.Fprintf(&b, "Transcript:\n\"\"\"%s\"\"\"\n", req.Transcript)
	if req.AudioText != "" {
		b.WriteString("\n")
		b.WriteString(req.AudioText)
	}
	if req.VideoText != "" {
		b.WriteString("\n")
		b.WriteString(req.VideoText)
	}
	return b.String()
}
