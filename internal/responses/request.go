// Package responses models the subset of the OpenAI Responses API used to
// probe a provider: the streaming request body and the reconstruction of
// the answer text from the streamed events.
package responses

// DefaultPrompt asks the model for a short, checkable reply.
const DefaultPrompt = `Please respond with "Success" in your reply.`

// DefaultInstructions is the system instruction sent with every probe.
const DefaultInstructions = "You are a connectivity check. Answer in one short sentence."

// Request is the JSON body of POST {base_url}/responses.
type Request struct {
	Model        string    `json:"model"`
	Instructions string    `json:"instructions"`
	Input        []Message `json:"input"`
	Reasoning    Reasoning `json:"reasoning"`
	Store        bool      `json:"store"`
	Stream       bool      `json:"stream"`
	Include      []string  `json:"include"`
}

// Message is one input item.
type Message struct {
	Type    string         `json:"type"`
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is one part of a message.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Reasoning controls reasoning effort and summaries.
type Reasoning struct {
	Effort  string `json:"effort"`
	Summary string `json:"summary"`
}

// NewProbeRequest builds a streaming, non-stored request that sends prompt
// as a single user message.
func NewProbeRequest(model, instructions, prompt string) Request {
	return Request{
		Model:        model,
		Instructions: instructions,
		Input: []Message{{
			Type: "message",
			Role: "user",
			Content: []ContentBlock{{
				Type: "input_text",
				Text: prompt,
			}},
		}},
		Reasoning: Reasoning{Effort: "low", Summary: "auto"},
		Store:     false,
		Stream:    true,
		Include:   []string{"reasoning.encrypted_content"},
	}
}
