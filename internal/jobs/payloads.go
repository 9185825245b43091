package jobs

// MediaDeletePayload names an image to remove from the media host.
type MediaDeletePayload struct {
	URL       string `json:"url"`
	Reason    string `json:"reason,omitempty"` // e.g. event.delete, user.update
	RequestID string `json:"requestId,omitempty"`
}
