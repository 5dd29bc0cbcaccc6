package model

type FileEntry struct {
	Path        string `json:"path,omitempty"`
	Name        string `json:"name,omitempty"`
	Type        string `json:"type"`
	Size        *int64 `json:"size,omitempty"`
	NumChildren *int   `json:"num_children,omitempty"`
}

type DirectoryListing struct {
	Entries []FileEntry `json:"entries"`
	Warning string      `json:"warning,omitempty"`
}

type GrepMatch struct {
	File       string `json:"file"`
	LineNumber int    `json:"line_number"`
	Content    string `json:"content"`
}

type NixHash struct {
	Hash   string `json:"hash"`
	Format string `json:"format"`
	URL    string `json:"url,omitempty"`
	Note   string `json:"note,omitempty"`
}
