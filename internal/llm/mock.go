package llm

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// MockResponder answers prompts from a fixed script keyed on prompt
// contents. It lets the whole pipeline run without any provider key.
type MockResponder struct {
	mu    sync.Mutex
	calls int
}

func NewMockResponder() *MockResponder {
	return &MockResponder{}
}

// Calls returns how many completions were served
func (m *MockResponder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockTopic struct {
	query        string
	queryKeys    []string
	analysisKeys []string
	verdictKeys  []string
	analysis     mockAnalysis
	verdict      mockVerdict
}

type mockAnalysis struct {
	Verdict            string  `json:"verdict"`
	Confidence         float64 `json:"confidence"`
	KeyEvidence        string  `json:"key_evidence"`
	NeedsMoreEvidence  bool    `json:"needs_more_evidence"`
	MissingInformation string  `json:"missing_information,omitempty"`
}

type mockVerdict struct {
	Verdict     string   `json:"verdict"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation"`
	Sources     []string `json:"sources"`
}

type mockClaim struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
}

var mockClaims = []mockClaim{
	{"The Earth is 4.54 billion years old", 0.95, "Statement about Earth's age"},
	{"Water boils at exactly 100 degrees Celsius at all elevations", 0.98, "Statement about water boiling point"},
	{"Climate change is primarily caused by natural cycles rather than human activities", 0.9, "Statement about climate change causes"},
	{"The speed of light in a vacuum is 299,792,458 meters per second", 0.99, "Statement about light speed"},
	{"The tallest mountain in the world is K2", 0.97, "Statement about tallest mountain"},
	{"Vaccines cause autism", 0.92, "Statement about vaccines and autism"},
}

var mockTopics = []mockTopic{
	{
		query:        "Earth age scientific consensus",
		queryKeys:    []string{"earth is 4.54 billion"},
		analysisKeys: []string{"earth is 4.54 billion"},
		verdictKeys:  []string{"earth is 4.54 billion"},
		analysis: mockAnalysis{"SUPPORTED", 0.95,
			"Multiple scientific studies using radiometric dating have consistently shown the Earth to be approximately 4.54 billion years old.", false, ""},
		verdict: mockVerdict{"TRUE", 0.95,
			"This claim is accurate. The scientific consensus based on radiometric dating of meteorites and Earth's oldest rocks establishes the Earth's age at approximately 4.54 billion years, with an error margin of about 50 million years.",
			[]string{"Scientific consensus", "Radiometric dating studies"}},
	},
	{
		query:        "water boiling point elevation",
		queryKeys:    []string{"boils at"},
		analysisKeys: []string{"boils at", "elevation"},
		verdictKeys:  []string{"boils at", "all elevations"},
		analysis: mockAnalysis{"CONTRADICTED", 0.98,
			"Scientific evidence clearly shows that water boils at different temperatures depending on atmospheric pressure, which varies with elevation.", false, ""},
		verdict: mockVerdict{"FALSE", 0.98,
			"This claim is false. While water boils at 100°C (212°F) at standard atmospheric pressure (1 atmosphere or sea level), the boiling point decreases at higher elevations due to lower atmospheric pressure. For example, at the top of Mount Everest, water boils at approximately 68°C (154°F).",
			[]string{"Basic physics", "Atmospheric pressure studies"}},
	},
	{
		query:        "climate change human vs natural causes",
		queryKeys:    []string{"climate change"},
		analysisKeys: []string{"climate change", "natural cycles"},
		verdictKeys:  []string{"climate change", "natural cycles"},
		analysis: mockAnalysis{"CONTRADICTED", 0.97,
			"The IPCC and scientific consensus indicate that current climate change is primarily caused by human activities, particularly greenhouse gas emissions.", false, ""},
		verdict: mockVerdict{"FALSE", 0.97,
			"This claim is false. The scientific consensus, supported by multiple independent lines of evidence, confirms that human activities are the primary drivers of current climate change, primarily through greenhouse gas emissions from burning fossil fuels.",
			[]string{"IPCC reports", "Scientific consensus studies", "Climate research data"}},
	},
	{
		query:        "speed of light vacuum",
		queryKeys:    []string{"speed of light"},
		analysisKeys: []string{"speed of light"},
		verdictKeys:  []string{"speed of light"},
		analysis: mockAnalysis{"SUPPORTED", 0.99,
			"The defined speed of light in a vacuum is exactly 299,792,458 meters per second according to the International System of Units.", false, ""},
		verdict: mockVerdict{"TRUE", 0.99,
			"This claim is accurate. The speed of light in a vacuum is precisely 299,792,458 meters per second, as defined by the International System of Units (SI).",
			[]string{"International Bureau of Weights and Measures", "Physics textbooks"}},
	},
	{
		query:        "tallest mountain world Everest K2",
		queryKeys:    []string{"tallest mountain"},
		analysisKeys: []string{"tallest mountain", "k2"},
		verdictKeys:  []string{"tallest mountain", "k2"},
		analysis: mockAnalysis{"CONTRADICTED", 0.98,
			"Mount Everest is recognized as the tallest mountain in the world at 8,849 meters, while K2 is the second-tallest at 8,611 meters.", false, ""},
		verdict: mockVerdict{"FALSE", 0.98,
			"This claim is false. Mount Everest is the tallest mountain in the world, with a height of 29,032 feet (8,849 meters) above sea level. K2 is the second-tallest at 28,251 feet (8,611 meters).",
			[]string{"Geographical surveys", "National Geographic"}},
	},
	{
		query:        "vaccines autism connection study",
		queryKeys:    []string{"vaccines", "autism"},
		analysisKeys: []string{"vaccines", "autism"},
		verdictKeys:  []string{"vaccines", "autism"},
		analysis: mockAnalysis{"CONTRADICTED", 0.99,
			"Numerous large-scale studies have found no link between vaccines and autism. The original study suggesting this link was retracted due to methodological flaws and ethical concerns.", false, ""},
		verdict: mockVerdict{"FALSE", 0.99,
			"This claim is false. Extensive scientific research has found no link between vaccines and autism. The original study suggesting this connection was retracted due to serious procedural errors, undisclosed financial conflicts of interest, and ethical violations.",
			[]string{"Multiple large-scale epidemiological studies", "Centers for Disease Control", "World Health Organization"}},
	},
}

var (
	defaultAnalysis = mockAnalysis{"INSUFFICIENT_EVIDENCE", 0.5,
		"The available evidence does not clearly support or contradict the claim.", true,
		"More specific scientific studies on this topic would be helpful."}
	defaultVerdict = mockVerdict{"UNVERIFIABLE", 0.5,
		"This claim cannot be verified with the available evidence.",
		[]string{"Insufficient information"}}
)

const defaultMockResponse = `{"result": "This is a mock response for testing purposes."}`

func (m *MockResponder) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	claim := claimLine(prompt)
	switch KindOf(prompt) {
	case PromptClaims:
		return encode(mockClaims), nil
	case PromptVerdict:
		if t, ok := findTopic(claim, func(t mockTopic) []string { return t.verdictKeys }); ok {
			return encode(t.verdict), nil
		}
		return encode(defaultVerdict), nil
	case PromptAnalysis:
		if t, ok := findTopic(claim, func(t mockTopic) []string { return t.analysisKeys }); ok {
			return encode(t.analysis), nil
		}
		return encode(defaultAnalysis), nil
	case PromptQueries:
		query := "factual information"
		if t, ok := findTopic(claim, func(t mockTopic) []string { return t.queryKeys }); ok {
			query = t.query
		}
		return encode(map[string][]string{"queries": {
			query,
			"scientific evidence related to the claim",
			"expert consensus on the subject",
		}}), nil
	default:
		return defaultMockResponse, nil
	}
}

var claimLabels = []string{"CLAIM TO VERIFY:", "CLAIM:", "Claim:"}

// claimLine returns the lowercased claim a prompt is about
func claimLine(prompt string) string {
	for _, label := range claimLabels {
		i := strings.Index(prompt, label)
		if i < 0 {
			continue
		}
		rest := prompt[i+len(label):]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[:nl]
		}
		return strings.ToLower(rest)
	}
	return strings.ToLower(prompt)
}

func findTopic(lower string, keys func(mockTopic) []string) (mockTopic, bool) {
	for _, t := range mockTopics {
		if containsAll(lower, keys(t)) {
			return t, true
		}
	}
	return mockTopic{}, false
}

func containsAll(s string, keys []string) bool {
	for _, k := range keys {
		if !strings.Contains(s, k) {
			return false
		}
	}
	return true
}

func encode(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
