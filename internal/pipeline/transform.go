package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/delhiflow-client/internal/domain"
)

// Assessor runs one assessment request.
type Assessor interface {
	AssessRequest(ctx context.Context, req domain.AssessmentRequest) (domain.Assessment, error)
}

// AssessmentTransformer implements Transformer by parsing an assessment
// request, assessing it and serializing the result.
type AssessmentTransformer struct {
	assessor Assessor
	logger   *slog.Logger
}

// NewTransformer creates an AssessmentTransformer.
func NewTransformer(assessor Assessor, logger *slog.Logger) *AssessmentTransformer {
	return &AssessmentTransformer{
		assessor: assessor,
		logger:   logger,
	}
}

func (t *AssessmentTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	req, err := domain.ParseAssessmentRequest(raw)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	a, err := t.assessor.AssessRequest(ctx, req)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	return domain.SerializeAssessment(a)
}
