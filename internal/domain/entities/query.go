package entities

// Citation identifies a source document backing part of an answer.
type Citation struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
}

// QueryAnswer is a retrieval-augmented answer with its supporting citations.
type QueryAnswer struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Provider  string     `json:"provider"`
	Model     string     `json:"model,omitempty"`
}
