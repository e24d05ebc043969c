package searchdb

import "time"

// Document mirrors one file record. ID is the file path.
type Document struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Extension string    `json:"extension"`
	Size      uint64    `json:"size"`
	ModTime   time.Time `json:"mod_time"`
}

type Result struct {
	ID        string  `json:"id"`
	Path      string  `json:"file_path"`
	Name      string  `json:"name"`
	Extension string  `json:"extension"`
	Score     float64 `json:"score"`
	Size      uint64  `json:"size"`
	ModTime   string  `json:"mod_time"`
}

type Response struct {
	Results    []Result `json:"results"`
	Total      uint64   `json:"total"`
	MaxScore   float64  `json:"max_score"`
	SearchTime string   `json:"search_time"`
}
