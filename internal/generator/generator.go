package generator

import (
	"context"

	"github.com/aeroprep/examd/internal/model"
)

// Generator produces exam questions for a subject. The lifecycle controller
// treats any error as a single terminal failure for the loading state; retry
// policy lives behind this interface, not in the engine.
type Generator interface {
	Generate(ctx context.Context, subject model.Subject, count int, language model.Language) ([]model.Question, error)
}
