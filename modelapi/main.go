package modelapi

// Model tiers. Plain-text stages run on the flash tier; anything
// multimodal (uploaded audio) routes to the pro tier.
const (
	ModelFlash = "gemini-2.5-flash"
	ModelPro   = "gemini-2.5-pro"
)

// ModelFor selects the model tier for an analysis call.
func ModelFor(isAudio bool) string {
	if isAudio {
		return ModelPro
	}
	return ModelFlash
}

// Usage is the token bookkeeping reported by the provider for one call.
type Usage struct {
	Model        string `json:"model"`
	InputTokens  int32  `json:"input_tokens"`
	OutputTokens int32  `json:"output_tokens"`
	TotalTokens  int32  `json:"total_tokens"`
}

// Result is the raw outcome of one generation call. Text is expected to
// be JSON but the provider may still wrap it in markdown code fences.
type Result struct {
	Text  string
	Usage Usage
}

// MediaHandle references media previously uploaded to the provider.
type MediaHandle struct {
	Name     string
	URI      string
	MIMEType string
}
