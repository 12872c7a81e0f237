package core

import "pkt.systems/capturebadge/schema"

// Progress is a quantized capture progress.
type Progress struct {
	// Progress counts 5% steps in [0, 20].
	Progress int
	// BarProgress selects an animated icon frame in [0, 8].
	BarProgress int
}

// Percent returns the read-out percentage.
func (p Progress) Percent() int {
	return p.Progress * 100 / schema.ProgressSteps
}

// Quantize maps index of maxIndex onto the text and icon scales.
// maxIndex must be positive.
func Quantize(index, maxIndex int) Progress {
	return Progress{
		Progress:    clamp(index*schema.ProgressSteps/maxIndex, 0, schema.ProgressSteps),
		BarProgress: clamp(index*schema.BarFrames/maxIndex, 0, schema.BarFrames),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
