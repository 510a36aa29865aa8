package model

import "time"

// Artifact is a generated shapefile archive kept for download
type Artifact struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Mode      Mode      `json:"mode"`
	Tiles     []string  `json:"tiles"`
	Path      string    `json:"-"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// DownloadPath is the URL path the artifact is served under
func (a Artifact) DownloadPath() string {
	return "/download/" + a.ID + "/" + a.Filename
}
