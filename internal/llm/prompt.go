package llm

import (
	"strings"
)

const systemPrompt = "You are a careful fact-checking assistant. Always answer with valid JSON only."

const claimDetectionTemplate = `You are an expert fact-checker who specializes in identifying factual claims.

Analyze the following transcript and identify all verifiable factual claims. A factual claim is an assertion about the world that can be verified as true or false based on evidence.

Examples of factual claims:
- "The Earth is 4.5 billion years old"
- "The president signed the bill yesterday"
- "This technology reduces carbon emissions by 30%"

Do NOT include as claims:
- Opinions ("I think the movie was good")
- Subjective statements ("She is the best athlete")
- Questions ("Is the economy improving?")
- Hypotheticals ("If we invested more, we might see better results")

For each claim you identify:
1. Extract the exact statement as "text"
2. Rate your confidence in it being a factual claim (0.0-1.0) as "confidence"
3. Provide any context needed to understand the claim as "context"

Transcript:
{transcript}

Format your response as a JSON list of claims, or as {"claims": [...]}.`

const queryTemplate = `You are an expert fact-checker. Your task is to create search queries that will help verify the following claim:

Claim: {claim}

Context: {context}

Generate 3 concise search queries that would help verify this claim. These should be specific, focused, and diverse to maximize the chance of finding relevant information.

Return your queries in JSON format:
{"queries": ["query1", "query2", "query3"]}`

const analysisTemplate = `You are a meticulous fact-checker working to verify claims using evidence.

CLAIM TO VERIFY: {claim}

CONTEXT: {context}

EVIDENCE:
{evidence}

Your task is to analyze this evidence and determine:
1. Is the claim supported, contradicted, or neither based on the evidence?
2. How reliable is the evidence?
3. What specific parts of the evidence are most relevant to the claim?
4. Is more evidence needed to reach a confident conclusion?

Return your analysis in this JSON format:
{
  "verdict": "SUPPORTED" | "CONTRADICTED" | "INSUFFICIENT_EVIDENCE",
  "confidence": <float between 0.0 and 1.0>,
  "key_evidence": "specific quotes or information from the evidence that directly relates to the claim",
  "needs_more_evidence": <boolean>,
  "missing_information": "description of what additional information would help (if needs_more_evidence is true)"
}`

const verdictTemplate = `As a fact-checking expert, provide a final verdict on the following claim.

CLAIM: {claim}

CONTEXT: {context}

EVIDENCE ANALYSIS: {analysis}

Based on your analysis, provide a final fact-check verdict in this JSON format:
{
  "verdict": "TRUE" | "FALSE" | "PARTLY_TRUE" | "UNVERIFIABLE" | "MISLEADING" | "OUTDATED",
  "confidence": <float between 0.0 and 1.0>,
  "explanation": "clear explanation of why this verdict was reached",
  "sources": ["source1", "source2"]
}

Your explanation should be clear, concise, and directly tied to the evidence. Cite specific sources.`

// Markers KindOf looks for. Each appears in exactly one template above.
const (
	markerClaims   = "Transcript:"
	markerVerdict  = "final verdict"
	markerAnalysis = "analyze this evidence"
	markerQueries  = "search queries"
)

// PromptKind tells which template a prompt was built from
type PromptKind int

const (
	PromptUnknown PromptKind = iota
	PromptClaims
	PromptQueries
	PromptAnalysis
	PromptVerdict
)

// KindOf classifies a prompt by its marker, checking claims first
func KindOf(prompt string) PromptKind {
	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(prompt, markerClaims):
		return PromptClaims
	case strings.Contains(lower, markerVerdict):
		return PromptVerdict
	case strings.Contains(lower, markerAnalysis):
		return PromptAnalysis
	case strings.Contains(lower, markerQueries):
		return PromptQueries
	default:
		return PromptUnknown
	}
}

func fill(template string, kv ...string) string {
	return strings.NewReplacer(kv...).Replace(template)
}

// ClaimDetectionPrompt asks for the factual claims in a transcript
func ClaimDetectionPrompt(transcript string) string {
	return fill(claimDetectionTemplate, "{transcript}", transcript)
}

// QueryPrompt asks for search queries that would verify a claim
func QueryPrompt(claim, context string) string {
	return fill(queryTemplate, "{claim}", claim, "{context}", context)
}

// AnalysisPrompt asks whether the gathered evidence supports the claim
func AnalysisPrompt(claim, context, evidence string) string {
	return fill(analysisTemplate, "{claim}", claim, "{context}", context, "{evidence}", evidence)
}

// VerdictPrompt asks for the final verdict given the latest analysis
func VerdictPrompt(claim, context, analysis string) string {
	return fill(verdictTemplate, "{claim}", claim, "{context}", context, "{analysis}", analysis)
}
