package util

import "math"

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// sizeBoundaries are the inclusive upper bounds of the histogram buckets,
// growing by a factor of 4 from 16 bytes to 1 GiB. One extra bucket
// collects everything larger.
var sizeBoundaries = func() []int {
	bounds := make([]int, 0, 14)
	for b := 16; ; b *= 4 {
		bounds = append(bounds, b)
		if b >= 1<<30 {
			break
		}
	}
	return bounds
}()

// SizeHistogram counts byte sizes in exponentially growing buckets. It is
// used to summarize value sizes without keeping every sample.
//
// Thread-safety: SizeHistogram is not thread-safe, callers that share an
// instance must synchronize access themselves.
type SizeHistogram struct {
	buckets []int64
	count   int64
	sum     int64
}

// NewSizeHistogram creates an empty histogram
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{
		buckets: make([]int64, len(sizeBoundaries)+1),
	}
}

// AddSample records one size
func (h *SizeHistogram) AddSample(size int) {
	idx := len(sizeBoundaries)
	for i, bound := range sizeBoundaries {
		if size <= bound {
			idx = i
			break
		}
	}
	h.buckets[idx]++
	h.count++
	h.sum += int64(size)
}

// GetCount returns the number of samples
func (h *SizeHistogram) GetCount() int64 {
	return h.count
}

// AverageSize returns the exact mean of all samples (0 without samples)
func (h *SizeHistogram) AverageSize() int {
	if h.count == 0 {
		return 0
	}
	return int(h.sum / h.count)
}

// MedianEstimate is GetPercentileEstimate(50)
func (h *SizeHistogram) MedianEstimate() int {
	return h.GetPercentileEstimate(50)
}

// GetPercentileEstimate estimates the given percentile (0-100) as the
// midpoint of the bucket that contains it. Out of range percentiles and an
// empty histogram yield 0.
func (h *SizeHistogram) GetPercentileEstimate(percentile int) int {
	if h.count == 0 || percentile < 0 || percentile > 100 {
		return 0
	}

	target := int64(math.Ceil(float64(h.count) * float64(percentile) / 100.0))
	if target == 0 {
		target = 1
	}

	var seen int64
	for i, n := range h.buckets {
		seen += n
		if seen < target {
			continue
		}
		switch {
		case i == 0:
			return sizeBoundaries[0] / 2
		case i < len(sizeBoundaries):
			return (sizeBoundaries[i-1] + sizeBoundaries[i]) / 2
		default:
			return sizeBoundaries[len(sizeBoundaries)-1] * 2
		}
	}
	return h.AverageSize()
}
