// Package prompt assembles the grounded generation prompt from ranked chunks.
package prompt

import (
	"strings"

	"github.com/kailas-cloud/siteqa/internal/domain/rank"
)

// UnknownSource replaces an empty primary source in the closing instruction.
const UnknownSource = "(unknown)"

// Intent is a guidance line added when the question matches the trigger.
type Intent struct {
	Name     string
	When     rank.Trigger
	Guidance string
}

// Intents are evaluated in order against the lower-cased question.
var Intents = []Intent{
	{
		Name:     "list",
		When:     rank.ContainsAny("list", "which programs", "what programs"),
		Guidance: "- If the question asks for a list, provide a complete bullet list using the exact titles/names found in CONTEXT.",
	},
	{
		Name:     "deadline",
		When:     rank.ContainsAny("deadline", "last date", "closing date"),
		Guidance: "- Give exact dates first (with semester labels if present), and specify the portal (e.g., uni-assist vs. university) if stated.",
	},
	{
		Name:     "contact",
		When:     rank.ContainsAny("who", "contact", "incharge", "in charge"),
		Guidance: "- Include full contact details if present: name, role, office/room, email/phone.",
	},
	{
		Name:     "requirements",
		When:     rank.ContainsAny("requirement", "eligibility", "admission", "uni-assist", "aps"),
		Guidance: "- If requirements are present, include a clear checklist (degree, language level, uni-assist/APS, documents).",
	},
}

const globalRules = `- Use ONLY the CONTEXT. Do NOT invent details.
- Quote exact numbers, dates, names and program titles.
- Prefer concise paragraphs and bullet points. Use short headings if helpful.
- Include short quotes only when needed to preserve exact wording.
- End with one source line:  Source: <URL>.`

// MatchIntents returns the names of the intents the question triggers.
func MatchIntents(question string) []string {
	lower := strings.ToLower(question)
	var names []string
	for _, in := range Intents {
		if in.When(lower) {
			names = append(names, in.Name)
		}
	}
	return names
}

// Build renders the prompt. The output depends only on its arguments.
func Build(question string, picks []rank.Scored, primary string) string {
	var ctx strings.Builder
	for _, p := range picks {
		ctx.WriteString("SOURCE: ")
		ctx.WriteString(p.Chunk.SourceID)
		ctx.WriteByte('\n')
		ctx.WriteString(p.Chunk.Text)
		ctx.WriteString("\n\n")
	}

	lower := strings.ToLower(question)
	var guidance strings.Builder
	for _, in := range Intents {
		if in.When(lower) {
			guidance.WriteString(in.Guidance)
			guidance.WriteByte('\n')
		}
	}
	extra := guidance.String()
	if extra == "" {
		extra = "(none)"
	}

	if primary == "" {
		primary = UnknownSource
	}

	var b strings.Builder
	b.WriteString("You are an expert university admissions/curriculum assistant.\n\n")
	b.WriteString(globalRules)
	b.WriteString("\n\nAdditional guidance:\n")
	b.WriteString(extra)
	b.WriteString("\n\nQUESTION:\n")
	b.WriteString(question)
	b.WriteString("\n\nCONTEXT:\n")
	b.WriteString(ctx.String())
	b.WriteString("\n\nWrite a comprehensive, precise answer strictly from the CONTEXT. ")
	b.WriteString("Be complete (not a 3-point summary). Use clear paragraphs and bullets where helpful. End with:\n")
	b.WriteString("Source: ")
	b.WriteString(primary)
	b.WriteByte('\n')
	return b.String()
}
