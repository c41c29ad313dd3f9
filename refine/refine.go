package refine

import "context"

// Refiner rewrites subtitle text, keeping cue structure and timing intact.
type Refiner interface {
	Refine(ctx context.Context, srtText string) (*Output, error)
}

// Output carries the refined subtitles in SRT form.
type Output struct {
	Text      string
	ModelName string
}
