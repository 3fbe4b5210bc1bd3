package calculator

// EMA computes the exponential moving average of values with the given span.
// The first output equals the first input; after that
// ema[i] = α·v[i] + (1-α)·ema[i-1] with α = 2/(span+1) and no bias correction.
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 || span <= 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		// Same recurrence written as a step toward v[i]; a constant input stays exact.
		out[i] = out[i-1] + alpha*(values[i]-out[i-1])
	}
	return out
}
