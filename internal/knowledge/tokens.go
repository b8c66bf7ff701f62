package knowledge

// Token estimation for budget accounting. The heuristic is a coarse
// bytes-per-token ratio; it does not track any real tokenizer. It only has to
// be applied consistently on both sides of every budget comparison so that
// relative ordering is stable.

// defaultBytesPerToken approximates common LLM tokenizers (~4 bytes/token).
const defaultBytesPerToken = 4

// Estimator converts content into an approximate token count.
type Estimator struct {
	bytesPerToken int
}

// NewEstimator creates an estimator with the default calibration.
func NewEstimator() *Estimator {
	return &Estimator{bytesPerToken: defaultBytesPerToken}
}

// Estimate returns the approximate token count for content. Deterministic,
// never less than 1: even an empty or one-byte payload occupies context.
func (e *Estimator) Estimate(content string) int {
	per := e.bytesPerToken
	if per <= 0 {
		per = defaultBytesPerToken
	}
	tokens := len(content) / per
	if tokens < 1 {
		return 1
	}
	return tokens
}

// EntryCost returns the budget cost of an entry: the precomputed count when
// the ingestion side supplied one, otherwise an estimate from the content.
func (e *Estimator) EntryCost(entry Entry) int {
	if entry.ContentTokens > 0 {
		return entry.ContentTokens
	}
	return e.Estimate(entry.Content)
}

// EstimateTokens is a convenience wrapper using the default calibration.
func EstimateTokens(content string) int {
	return NewEstimator().Estimate(content)
}
