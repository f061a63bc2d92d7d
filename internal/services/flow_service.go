package services

import (
	"context"

	"github.com/paulexconde/questflow/internal/models"
	"github.com/paulexconde/questflow/internal/pkg/logger"
	"github.com/paulexconde/questflow/pkg/fault"
)

// FlowService owns the editor-facing flow lifecycle: compiling a submitted
// graph into relational state, decompiling it back, and destroying it.
type FlowService interface {
	// SaveFlow compiles the submitted graph. Row-level problems (e.g. an
	// answer with no incoming edge) are collected into the response and do
	// not abort the save; structural validation and storage failures do.
	//
	// Concurrent saves of the same type are not guarded against; the model
	// assumes one admin editor session per type at a time.
	SaveFlow(ctx context.Context, req models.SaveFlowRequest) (*models.SaveFlowResponse, error)
	// LoadFlow rebuilds the editor graph from layout rows and the domain
	// rows they reference.
	LoadFlow(ctx context.Context, typeID int) (*models.FlowGraph, error)
	// DeleteFlow removes a type and all of its data.
	DeleteFlow(ctx context.Context, typeID int) error

	ReferenceTables(ctx context.Context, typeID int) ([]string, error)
	ReferenceTableMetadata(ctx context.Context, typeID int) ([]models.ReferenceTableMetadata, error)
}

type flowServiceImpl struct {
	store  FlowStore
	reaper *Reaper
	log    *logger.Logger
}

// NewFlowService instantiates the FlowService.
func NewFlowService(store FlowStore, reaper *Reaper, log *logger.Logger) FlowService {
	return &flowServiceImpl{
		store:  store,
		reaper: reaper,
		log:    log.With("service", "flow"),
	}
}

func (s *flowServiceImpl) SaveFlow(ctx context.Context, req models.SaveFlowRequest) (*models.SaveFlowResponse, error) {
	resp, err := s.compile(ctx, req)
	if err != nil {
		return nil, err
	}

	// A failed reap does not fail the save.
	s.reaper.ReapAfterSave(ctx)

	return resp, nil
}

func (s *flowServiceImpl) DeleteFlow(ctx context.Context, typeID int) error {
	t, err := s.store.TypeByID(ctx, typeID)
	if err != nil {
		return err
	}
	if t == nil {
		return fault.NewNotFoundError("questionnaire type not found")
	}

	if err := s.reaper.PurgeType(ctx, typeID); err != nil {
		return fault.NewInternalError("deleting questionnaire type data", err)
	}

	if err := s.store.DeleteType(ctx, typeID); err != nil {
		return fault.NewInternalError("deleting questionnaire type", err)
	}

	s.log.Info("questionnaire type deleted", "type_id", typeID, "name", t.Name)
	return nil
}

func (s *flowServiceImpl) ReferenceTables(ctx context.Context, typeID int) ([]string, error) {
	tables, err := s.store.ReferenceTablesForType(ctx, typeID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.TableName)
	}
	return names, nil
}

func (s *flowServiceImpl) ReferenceTableMetadata(ctx context.Context, typeID int) ([]models.ReferenceTableMetadata, error) {
	return s.store.ReferenceTableMetadata(ctx, typeID)
}
