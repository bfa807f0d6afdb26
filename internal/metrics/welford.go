package metrics

import "math"

// WelfordState holds running statistics using Welford's online algorithm.
// Mean and standard deviation are updated in O(1) time and space without
// keeping the observations.
type WelfordState struct {
	Count int     // number of observations
	Mean  float64 // running mean
	M2    float64 // sum of squared differences from the mean
}

// NewWelfordState resumes a state from saved mean, stddev and count
func NewWelfordState(mean, stddev float64, count int) *WelfordState {
	if count == 0 {
		return &WelfordState{}
	}
	// stddev = sqrt(M2 / n), so M2 = stddev^2 * n
	return &WelfordState{
		Count: count,
		Mean:  mean,
		M2:    stddev * stddev * float64(count),
	}
}

// Update adds one observation.
// Reference: https://en.wikipedia.org/wiki/Algorithms_for_calculating_variance#Welford's_online_algorithm
func (w *WelfordState) Update(value float64) {
	w.Count++
	delta := value - w.Mean
	w.Mean += delta / float64(w.Count)
	w.M2 += delta * (value - w.Mean)
}

// GetMean returns the current mean
func (w *WelfordState) GetMean() float64 {
	return w.Mean
}

// GetStdDev returns the population standard deviation, or 0 with fewer
// than 2 observations.
func (w *WelfordState) GetStdDev() float64 {
	if w.Count < 2 {
		return 0
	}
	return math.Sqrt(w.M2 / float64(w.Count))
}

// GetCount returns the number of observations
func (w *WelfordState) GetCount() int {
	return w.Count
}

// ZScore returns how many standard deviations value lies from the mean.
// It is 0 while the deviation is still undefined.
func (w *WelfordState) ZScore(value float64) float64 {
	sd := w.GetStdDev()
	if sd == 0 {
		return 0
	}
	return (value - w.Mean) / sd
}
