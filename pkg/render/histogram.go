package render

import "math"

// Bin is one histogram bucket covering [Low, High)
type Bin struct {
	Low   float64
	High  float64
	Count int
}

// Histogram buckets samples into n equal-width bins. The last bin is closed so
// the maximum lands in it. A constant series yields a single bin.
func Histogram(samples []float64, n int) []Bin {
	if len(samples) == 0 || n <= 0 {
		return nil
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range samples {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	if lo == hi {
		return []Bin{{Low: lo, High: hi, Count: len(samples)}}
	}

	width := (hi - lo) / float64(n)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Low = lo + float64(i)*width
		bins[i].High = lo + float64(i+1)*width
	}
	bins[n-1].High = hi
	for _, s := range samples {
		i := int((s - lo) / width)
		if i >= n {
			i = n - 1
		}
		bins[i].Count++
	}
	return bins
}
