package port

// EncoderState is the lifecycle state of a feature encoder.
type EncoderState int

const (
	// EncoderUnfit accepts only FitTransform.
	EncoderUnfit EncoderState = iota
	// EncoderFit accepts only Transform.
	EncoderFit
)

func (s EncoderState) String() string {
	switch s {
	case EncoderUnfit:
		return "unfit"
	case EncoderFit:
		return "fit"
	default:
		return "unknown"
	}
}

// Encoder maps feature texts to fixed-width vectors.
type Encoder interface {
	// FitTransform builds the vocabulary from texts and returns their vectors.
	// It is valid only in the EncoderUnfit state.
	FitTransform(texts []string) ([][]float32, error)

	// Transform encodes texts with the fitted vocabulary.
	// It is valid only in the EncoderFit state.
	Transform(texts []string) ([][]float32, error)

	// Reset discards the vocabulary and returns to EncoderUnfit.
	Reset()

	State() EncoderState

	// Dimension returns the width of every produced vector.
	Dimension() int
}
