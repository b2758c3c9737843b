package domain

// SynthesisRequest asks the external API for exactly one image.
type SynthesisRequest struct {
	Model     string
	Prompt    string
	Images    []string // data URIs or URLs of the reference images
	Size      string
	Watermark bool
}

// SynthesizedImage is one generated image, delivered either by URL or inline.
type SynthesizedImage struct {
	URL    string
	Base64 string
	Size   string
}
