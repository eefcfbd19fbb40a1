package api

// SubmitVideoRequest is the body of POST /api/v1/videos.
type SubmitVideoRequest struct {
	URL      string `json:"url" binding:"required"`
	Priority string `json:"priority"` // low, normal, high, urgent
	Mode     string `json:"mode"`     // deep, ultra
	Force    bool   `json:"force"`
}

// ConfirmRequest is the body of POST /api/v1/tasks/:id/confirm. Override
// keys (content_type, audience, style, notes) are merged over the
// pre-analysis profile; an empty body confirms the profile as proposed.
type ConfirmRequest struct {
	Overrides map[string]any `json:"overrides"`
}

// ReprocessRequest is the body of POST /api/v1/documents/:hash/reprocess.
type ReprocessRequest struct {
	Priority string `json:"priority"`
	Force    bool   `json:"force"`
}
