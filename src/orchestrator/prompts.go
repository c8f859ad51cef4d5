package orchestrator

import (
	"fmt"
	"strings"

	"github.com/stake-plus/factcheck/src/retrieval"
	"github.com/stake-plus/factcheck/src/types"
)

const systemPrompt = `You are a fact-checking assistant used in a browser extension. Your goal is to help users verify claims in selected web text.

Rules:
- Do not assume the selected text is true.
- Extract specific, checkable claims (atomic claims).
- For each claim, decide whether it is Supported, Disputed, Misleading, or Unclear based on evidence.
- If evidence is insufficient, say Unclear and explain what is missing.
- Prefer primary and authoritative sources (government, universities, standards bodies, major reference works). Avoid low-quality blogs or SEO sites.
- Be transparent about uncertainty and ambiguity.
- Never reveal API keys or any user secrets.
- Do not accuse individuals of crimes or wrongdoing. If the text makes allegations, treat as UNCLEAR unless verified by strong sources.
- Output MUST be valid JSON matching the provided schema. No extra text.`

const developerPrompt = `You will receive:
- selectedText (user-highlighted text)
- pageUrl, pageTitle
- locale and preferences

Task:
- Produce up to 5 atomic claims from selectedText.
- For each claim, provide:
  - verdict: one of ["SUPPORTED","DISPUTED","MISLEADING","UNCLEAR"]
  - truthProbability: number from 0.00 to 1.00 (probability the claim is true)
  - confidence: 0.00 to 1.00
  - shortExplanation: 1 to 3 sentences
  - searchQueries: 2 to 4 queries to find evidence
  - evidenceNeeded: if UNCLEAR, list what evidence would resolve it

Provide a final overallAssessment for the selection.

Important:
- If selectedText is opinion or value judgement, label as UNCLEAR and explain it is not strictly fact-checkable.
- If the claim depends on time (for example "today" or "recently"), specify it and request a date.
- If numbers or statistics appear, request original dataset/source if not provided.
- If providedSources are included, check those first and explicitly reflect them in explanation/notes.
- Use the requested answer language for all explanatory text in the JSON fields.
- Do not accuse individuals of crimes or wrongdoing. If the text makes allegations, treat as UNCLEAR unless verified by strong sources.

Return JSON exactly in this schema:
{
  "meta": {
    "pageUrl": "string",
    "pageTitle": "string",
    "locale": "string"
  },
  "claims": [
    {
      "claim": "string",
      "verdict": "SUPPORTED|DISPUTED|MISLEADING|UNCLEAR",
      "truthProbability": 0.0,
      "confidence": 0.0,
      "shortExplanation": "string",
      "searchQueries": ["string"],
      "evidenceNeeded": ["string"],
      "notes": ["string"]
    }
  ],
  "overallAssessment": {
    "summary": "string",
    "truthProbability": 0.0,
    "keyRisks": ["string"],
    "whatToCheckNext": ["string"]
  }
}`

func buildUserPrompt(req *types.FactCheckRequest, sources []retrieval.Source) string {
	prefs := req.UserPreferences
	answerLanguage := resolveAnswerLanguage(req)

	var b strings.Builder
	b.WriteString("selectedText:\n\"\"\"\n")
	b.WriteString(req.SelectedText)
	b.WriteString("\n\"\"\"\n")
	b.WriteString("context:\n")
	fmt.Fprintf(&b, "- pageUrl: %s\n", req.PageURL)
	fmt.Fprintf(&b, "- pageTitle: %s\n", req.PageTitle)
	fmt.Fprintf(&b, "- locale: %s\n", req.Locale)
	fmt.Fprintf(&b, "- strictness: %s\n", prefs.Strictness)
	fmt.Fprintf(&b, "- answerLanguage: %s\n", prefs.AnswerLanguage)
	fmt.Fprintf(&b, "- resolvedAnswerLanguage: %s\n", answerLanguage)
	fmt.Fprintf(&b, "- maxSources: %d\n", prefs.MaxSources)
	fmt.Fprintf(&b, "- trustedDomains: %s\n", domainList(prefs.TrustedDomains))
	fmt.Fprintf(&b, "- blockedDomains: %s\n", domainList(prefs.BlockedDomains))
	fmt.Fprintf(&b, "instruction: Write all explanatory text in %s.\n", answerLanguage)
	b.WriteString("providedSources:\n")

	if len(sources) == 0 {
		b.WriteString("- (none)\n")
		return b.String()
	}

	for i, source := range sources {
		fmt.Fprintf(&b, "- source[%d]\n", i+1)
		fmt.Fprintf(&b, "  - url: %s\n", source.URL)
		fmt.Fprintf(&b, "  - title: %s\n", source.Title)
		fmt.Fprintf(&b, "  - retrievalStatus: %s\n", source.Status)
		fmt.Fprintf(&b, "  - excerpt: %s\n", source.Excerpt)
	}
	return b.String()
}

// resolveAnswerLanguage falls back to the request locale when the
// preference is empty or "auto".
func resolveAnswerLanguage(req *types.FactCheckRequest) string {
	configured := strings.TrimSpace(req.UserPreferences.AnswerLanguage)
	if configured == "" || strings.EqualFold(configured, "auto") {
		return req.Locale
	}
	return configured
}

func domainList(domains []string) string {
	if len(domains) == 0 {
		return "(none)"
	}
	return strings.Join(domains, ", ")
}

// strictnessTemperature maps the user's strictness preference to sampling
// temperature. Unknown values get the medium default.
func strictnessTemperature(strictness string) float64 {
	switch strings.ToLower(strings.TrimSpace(strictness)) {
	case "high":
		return 0.0
	case "low":
		return 0.4
	default:
		return 0.2
	}
}
