package rl

// Reward is the sum of positive per-score-type improvements of observed
// over prev. A page that beats the domain's best known score for a type
// earns the delta; a weaker page earns nothing for that type, so the
// result is never negative.
func Reward(prev, observed map[string]float64) float64 {
	var r float64
	for k, v := range observed {
		if delta := v - prev[k]; delta > 0 {
			r += delta
		}
	}
	return r
}
