package models

// GenerateContent is the capability a model must advertise to be a candidate.
const GenerateContent = "generateContent"

type ModelCandidate struct {
	Identifier   string   `json:"identifier"`
	Capabilities []string `json:"capabilities,omitempty"`
}

func (m ModelCandidate) Supports(method string) bool {
	for _, c := range m.Capabilities {
		if c == method {
			return true
		}
	}
	return false
}

// AnalysisResult is always complete: both fields are set or no result exists.
type AnalysisResult struct {
	ModelUsed string `json:"model_used"`
	Text      string `json:"text"`
}

// AttemptKind classifies one generation request.
type AttemptKind string

const (
	AttemptSuccess  AttemptKind = "success"
	AttemptSoftFail AttemptKind = "soft_fail"
	AttemptHardFail AttemptKind = "hard_fail"
)

// Attempt is the uniform outcome of asking one candidate.
type Attempt struct {
	Model string
	Kind  AttemptKind
	Text  string
	Err   error
}

// PromptData is everything the prompt template can see.
type PromptData struct {
	Date      string
	Time      string
	Language  string
	Snapshot  MarketSnapshot
	Headlines []Headline
}
