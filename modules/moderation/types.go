package moderation

// Service names registered by the moderation module.
const (
	ServiceCheck = "check"
)

// CheckRequest asks for a moderation verdict on a text.
type CheckRequest struct {
	Text string `json:"text"`
}

// CheckResponse carries the verdict.
type CheckResponse struct {
	Verdict Verdict `json:"verdict"`
}
