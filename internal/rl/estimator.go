package rl

// EstimatorParams configures the TD learner. Zero LearnRate and
// ActionDims fall back to defaults; Gamma is used as given since zero is
// a legal discount.
type EstimatorParams struct {
	Gamma      float64
	LearnRate  float64
	ActionDims int
}

const (
	defaultLearnRate  = 0.1
	defaultActionDims = 1024
)

// TDEstimator approximates Q(state, action), the expected discounted
// future reward of following a link while its domain is in a given state,
// with a linear model trained by single-sample gradient steps.
//
// Until the first Update the model predicts exactly 0.0 for every input,
// which keeps unexplored domains level with trained ones in the queue
// ordering.
type TDEstimator struct {
	gamma float64
	lr    float64

	vec  *vectorizer
	w    []float64
	bias float64

	trained bool
	updates int

	buf []float64
}

// NewTDEstimator builds an estimator over the given score types. The
// score-type set fixes the state layout for the model's lifetime.
func NewTDEstimator(scoreTypes []string, p EstimatorParams) *TDEstimator {
	if p.LearnRate == 0 {
		p.LearnRate = defaultLearnRate
	}
	if p.ActionDims == 0 {
		p.ActionDims = defaultActionDims
	}
	vec := newVectorizer(scoreTypes, p.ActionDims)
	return &TDEstimator{
		gamma: p.Gamma,
		lr:    p.LearnRate,
		vec:   vec,
		w:     make([]float64, vec.dims()),
		buf:   make([]float64, vec.dims()),
	}
}

// Predict evaluates the model on (state, action). Before any Update it
// returns 0.0 and never errors.
func (e *TDEstimator) Predict(state, action map[string]float64) float64 {
	if !e.trained {
		return 0.0
	}
	x := e.vec.vector(state, action, e.buf)
	return e.dot(x)
}

// Update consumes one transition. The target is r plus the discounted
// prediction for the next (state, action); the future term is dropped
// when there is no next action or the model has never been trained. One
// gradient step moves the model toward the target.
func (e *TDEstimator) Update(st, at map[string]float64, r float64, st1, at1 map[string]float64) {
	target := r
	if at1 != nil && e.trained {
		target += e.gamma * e.Predict(st1, at1)
	}

	x := e.vec.vector(st, at, e.buf)
	var pred float64
	if e.trained {
		pred = e.dot(x)
	}

	diff := pred - target
	for i, xi := range x {
		if xi != 0 {
			e.w[i] -= e.lr * diff * xi
		}
	}
	e.bias -= e.lr * diff

	e.trained = true
	e.updates++
}

// Trained reports whether at least one Update has been applied.
func (e *TDEstimator) Trained() bool { return e.trained }

// Updates returns the number of transitions consumed.
func (e *TDEstimator) Updates() int { return e.updates }

func (e *TDEstimator) dot(x []float64) float64 {
	sum := e.bias
	for i, xi := range x {
		if xi != 0 {
			sum += e.w[i] * xi
		}
	}
	return sum
}
