package model

type QueryResult struct {
	Results   []map[string]any `json:"results,omitempty"`
	Count     int              `json:"count"`
	Truncated bool             `json:"truncated,omitempty"`
	Note      string           `json:"note,omitempty"`
	Error     string           `json:"error,omitempty"`
}
