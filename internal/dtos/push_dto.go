package dtos

// PushRequest injects a frame into the dev server's push feed.
type PushRequest struct {
	Type string         `json:"type" binding:"required"`
	Data map[string]any `json:"data"`
}
