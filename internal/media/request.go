package media

import "fmt"

// DimensionStep is the granularity required by the 32vid encoder.
const DimensionStep = 8

// Request is one resolution request. Supplying both Width and Height selects video
// mode; otherwise only audio is produced.
type Request struct {
	URL    string `json:"url"`
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`
}

// NewRequest builds an audio-only request.
func NewRequest(url string) Request {
	return Request{URL: url}
}

// WithDimensions returns a copy of r in video mode.
func (r Request) WithDimensions(width, height int) Request {
	r.Width = &width
	r.Height = &height
	return r
}

// IsVideo reports whether the request asks for video as well as audio.
func (r Request) IsVideo() bool {
	return r.Width != nil && r.Height != nil
}

// Dimensions returns the requested raster, or the zero value in audio mode.
func (r Request) Dimensions() Dimensions {
	if !r.IsVideo() {
		return Dimensions{}
	}
	return Dimensions{Width: *r.Width, Height: *r.Height}
}

// Dimensions is a video raster size.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Cap limits each axis to the matching axis of limit and floors it to a multiple of
// DimensionStep, never below DimensionStep. Cap is idempotent for a fixed limit.
func (d Dimensions) Cap(limit Dimensions) Dimensions {
	return Dimensions{
		Width:  capAxis(d.Width, limit.Width),
		Height: capAxis(d.Height, limit.Height),
	}
}

func capAxis(v, limit int) int {
	if limit > 0 && v > limit {
		v = limit
	}
	v -= v % DimensionStep
	if v < DimensionStep {
		v = DimensionStep
	}
	return v
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}
