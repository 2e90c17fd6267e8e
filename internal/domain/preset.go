package domain

// Preset binds a user-facing generation style to a concrete provider,
// model and default parameter set.
type Preset struct {
	ID             string
	Title          string
	Provider       Provider
	ModelRef       string
	PromptTemplate string
	NegativePrompt string
	Defaults       map[string]any
	Cost           int64
}
