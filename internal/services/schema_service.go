package services

import (
	"context"

	"github.com/paulexconde/questflow/internal/models"
	"github.com/paulexconde/questflow/internal/pkg/logger"
	"github.com/paulexconde/questflow/internal/pkg/paginator"
	"github.com/paulexconde/questflow/pkg/fault"
)

// QuestionnaireService serves the rendering client: the type catalogue and
// the assembled schema for one type code.
type QuestionnaireService interface {
	ListTypes(ctx context.Context, page, limit int) (*paginator.PaginatedResponse[models.TypeDTO], error)
	// Schema assembles the nested rendering schema for a type code, or a
	// not-found fault if the code is unregistered.
	Schema(ctx context.Context, typeCode string) (*models.SchemaDTO, error)
}

type questionnaireServiceImpl struct {
	store FlowStore
	types paginator.Paginator[models.TypeDTO]
	log   *logger.Logger
}

// NewQuestionnaireService instantiates the QuestionnaireService.
func NewQuestionnaireService(store FlowStore, types paginator.Paginator[models.TypeDTO], log *logger.Logger) QuestionnaireService {
	return &questionnaireServiceImpl{
		store: store,
		types: types,
		log:   log.With("service", "questionnaire"),
	}
}

func (s *questionnaireServiceImpl) ListTypes(ctx context.Context, page, limit int) (*paginator.PaginatedResponse[models.TypeDTO], error) {
	return s.types.PaginateQuery(ctx, "SELECT id, name, code FROM questionnaire_types ORDER BY id", nil, page, limit)
}

func (s *questionnaireServiceImpl) Schema(ctx context.Context, typeCode string) (*models.SchemaDTO, error) {
	t, err := s.store.TypeByCode(ctx, typeCode)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fault.NewNotFoundError("questionnaire type '" + typeCode + "' not found")
	}

	return s.assembleSchema(ctx, t)
}
