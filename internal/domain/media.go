package domain

// MediaType categorizes generated artifacts.
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeImage MediaType = "image"
	MediaTypeAudio MediaType = "audio"
)

// MediaOutput is the normalized result unit every completed job produces.
// URL always references durable storage or a stable provider CDN location;
// inline payloads are uploaded before a MediaOutput is recorded.
type MediaOutput struct {
	Type     MediaType `json:"type"`
	URL      string    `json:"url"`
	MimeType string    `json:"mimeType,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Width    int       `json:"width,omitempty"`
	Height   int       `json:"height,omitempty"`
}
