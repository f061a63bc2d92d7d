package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulexconde/questflow/internal/models"
	"github.com/paulexconde/questflow/pkg/fault"
)

// edgeMetadata is the opaque handle payload serialized into edge layout rows
// and round-tripped back by the loader.
type edgeMetadata struct {
	SourceHandle *string `json:"sourceHandle"`
	TargetHandle *string `json:"targetHandle"`
}

// compile materializes the submitted graph into relational state. It is a
// full rebuild: every node mints a fresh persistent id, and the two remap
// maps (ephemeral node id to question id / answer id) are local to the call.
func (s *flowServiceImpl) compile(ctx context.Context, req models.SaveFlowRequest) (*models.SaveFlowResponse, error) {
	resp := &models.SaveFlowResponse{Errors: []string{}}

	questionNodes := make([]models.FlowNode, 0, len(req.Nodes))
	answerNodes := make([]models.FlowNode, 0)
	for _, node := range req.Nodes {
		switch node.Type {
		case models.NodeTypeQuestion:
			questionNodes = append(questionNodes, node)
		case models.NodeTypeAnswer:
			answerNodes = append(answerNodes, node)
		}
	}

	if len(questionNodes) == 0 {
		return nil, fault.NewValidationError("flow must contain at least one question")
	}

	typeID, err := s.resolveType(ctx, req)
	if err != nil {
		return nil, err
	}
	resp.QuestionnaireTypeID = typeID

	if _, err := s.resolveIdentificatorType(ctx, req); err != nil {
		return nil, err
	}

	nodeToQuestion := make(map[string]int, len(questionNodes))
	for _, node := range questionNodes {
		qid, err := s.compileQuestion(ctx, typeID, node)
		if err != nil {
			return nil, fault.NewInternalError("saving question node "+node.ID, err)
		}
		nodeToQuestion[node.ID] = qid
	}

	nodeToAnswer := make(map[string]int, len(answerNodes))
	for _, node := range answerNodes {
		parentID, ok := s.answerParent(req.Edges, node.ID, nodeToQuestion)
		if !ok {
			resp.Errors = append(resp.Errors, fmt.Sprintf("Answer '%s' must be connected to a question", node.Data.Label))
			continue
		}

		aid, err := s.compileAnswer(ctx, typeID, parentID, node)
		if err != nil {
			return nil, fault.NewInternalError("saving answer node "+node.ID, err)
		}
		nodeToAnswer[node.ID] = aid
	}

	// Reset relationships for everything just compiled so nothing stale
	// survives the rebuild.
	if err := s.resetRelationships(ctx, nodeToQuestion, nodeToAnswer); err != nil {
		return nil, fault.NewInternalError("resetting relationships", err)
	}

	for _, edge := range req.Edges {
		if err := s.compileEdge(ctx, typeID, edge, nodeToQuestion, nodeToAnswer); err != nil {
			return nil, fault.NewInternalError("saving edge "+edge.ID, err)
		}
	}

	// Every compiled question with no incoming edge becomes a root mapping.
	for _, node := range questionNodes {
		if hasIncomingEdge(req.Edges, node.ID) {
			continue
		}
		if err := s.store.InsertRoot(ctx, typeID, nodeToQuestion[node.ID]); err != nil {
			return nil, fault.NewInternalError("registering root question", err)
		}
	}

	resp.Success = true
	resp.Message = "Flow saved successfully"
	s.log.Info("flow saved", "type_id", typeID,
		"questions", len(nodeToQuestion), "answers", len(nodeToAnswer), "errors", len(resp.Errors))
	return resp, nil
}

// resolveType returns the questionnaire type to compile into, clearing prior
// state according to the save mode. Updates rebuild the whole type; a fresh
// attach only clears root mappings and layouts, preserving unrelated trees.
func (s *flowServiceImpl) resolveType(ctx context.Context, req models.SaveFlowRequest) (int, error) {
	if req.ExistingQuestionnaireTypeID != nil {
		typeID := *req.ExistingQuestionnaireTypeID

		if req.IsUpdate {
			if err := s.reaper.PurgeType(ctx, typeID); err != nil {
				return 0, fault.NewInternalError("purging questionnaire type data", err)
			}
			return typeID, nil
		}

		if err := s.store.DeleteRoots(ctx, typeID); err != nil {
			return 0, fault.NewInternalError("clearing root mappings", err)
		}
		if err := s.store.DeleteLayouts(ctx, typeID); err != nil {
			return 0, fault.NewInternalError("clearing layouts", err)
		}
		return typeID, nil
	}

	code := req.QuestionnaireTypeCode
	if code == "" {
		code = strings.ReplaceAll(strings.ToUpper(req.QuestionnaireTypeName), " ", "_")
	}

	typeID, err := s.store.CreateType(ctx, req.QuestionnaireTypeName, code)
	if err != nil {
		return 0, fault.NewInternalError("creating questionnaire type", err)
	}
	return typeID, nil
}

func (s *flowServiceImpl) resolveIdentificatorType(ctx context.Context, req models.SaveFlowRequest) (int, error) {
	if req.ExistingIdentificatorTypeID != nil {
		return *req.ExistingIdentificatorTypeID, nil
	}

	id, err := s.store.CreateIdentificatorType(ctx, req.IdentificatorTypeName)
	if err != nil {
		return 0, fault.NewInternalError("creating identificator type", err)
	}
	return id, nil
}

func (s *flowServiceImpl) compileQuestion(ctx context.Context, typeID int, node models.FlowNode) (int, error) {
	data := node.Data

	text := data.QuestionText
	if text == "" {
		text = "Untitled Question"
	}

	qid, err := s.store.InsertQuestion(ctx, models.Question{
		QuestionText:      text,
		QuestionLabel:     data.QuestionLabel,
		QuestionOrder:     data.QuestionOrder,
		QuestionFormatID:  data.QuestionFormatID,
		FormatCode:        data.FormatCode,
		SpecificTypeID:    data.SpecificTypeID,
		ReadOnly:          data.ReadOnly,
		IsRequired:        data.IsRequired,
		ValidationPattern: data.ValidationPattern,
	})
	if err != nil {
		return 0, err
	}

	if err := s.store.InsertLayout(ctx, models.FlowLayout{
		QuestionnaireTypeID: typeID,
		ElementType:         models.ElementQuestion,
		ElementID:           fmt.Sprintf("q-%d", qid),
		PositionX:           positionX(node.Position),
		PositionY:           positionY(node.Position),
	}); err != nil {
		return 0, err
	}

	if data.IsComputed {
		if _, err := s.store.InsertComputedConfig(ctx, models.QuestionComputedConfig{
			QuestionID:             qid,
			ComputeMethodID:        intOr(data.ComputeMethodID, models.ComputeMethodMatrixLookup),
			RuleName:               strOr(data.RuleName, "Default Rule"),
			RuleDescription:        data.RuleDescription,
			MatrixObjectName:       data.MatrixObjectName,
			OutputMode:             intOr(data.OutputMode, 0),
			OutputTarget:           data.OutputTarget,
			MatrixOutputColumnName: data.MatrixOutputColumnName,
			FormulaExpression:      data.FormulaExpression,
			Priority:               intOr(data.Priority, 1),
			IsActive:               boolOr(data.IsActive, true),
		}); err != nil {
			return 0, err
		}
	}

	if data.ReferenceTable != "" {
		tableID, err := s.store.GetOrCreateReferenceTable(ctx, typeID, data.ReferenceTable)
		if err != nil {
			return 0, err
		}
		if err := s.store.InsertReferenceColumn(ctx, models.ReferenceColumn{
			QuestionID:          qid,
			ReferenceTableID:    tableID,
			ReferenceColumnName: data.ReferenceColumn,
		}); err != nil {
			return 0, err
		}
	}

	return qid, nil
}

func (s *flowServiceImpl) compileAnswer(ctx context.Context, typeID, parentQuestionID int, node models.FlowNode) (int, error) {
	data := node.Data

	text := data.AnswerText
	if text == "" {
		text = "Untitled Answer"
	}

	aid, err := s.store.InsertAnswer(ctx, models.PredefinedAnswer{
		QuestionID:        parentQuestionID,
		Answer:            text,
		Code:              data.Code,
		PreSelected:       data.IsPreSelected,
		StatisticalWeight: data.StatisticalWeight,
		DisplayOrder:      intOr(data.DisplayOrder, 0),
	})
	if err != nil {
		return 0, err
	}

	if err := s.store.InsertLayout(ctx, models.FlowLayout{
		QuestionnaireTypeID: typeID,
		ElementType:         models.ElementAnswer,
		ElementID:           fmt.Sprintf("a-%d", aid),
		PositionX:           positionX(node.Position),
		PositionY:           positionY(node.Position),
	}); err != nil {
		return 0, err
	}

	return aid, nil
}

// answerParent locates the unique incoming edge of an answer node and
// resolves its source to a compiled question.
func (s *flowServiceImpl) answerParent(edges []models.FlowEdge, answerNodeID string, nodeToQuestion map[string]int) (int, bool) {
	for _, edge := range edges {
		if edge.Target != answerNodeID {
			continue
		}
		qid, ok := nodeToQuestion[edge.Source]
		return qid, ok
	}
	return 0, false
}

func (s *flowServiceImpl) resetRelationships(ctx context.Context, nodeToQuestion, nodeToAnswer map[string]int) error {
	if len(nodeToQuestion) > 0 {
		qids := make([]int, 0, len(nodeToQuestion))
		for _, id := range nodeToQuestion {
			qids = append(qids, id)
		}
		if err := s.store.ClearParentQuestions(ctx, qids); err != nil {
			return err
		}
	}

	if len(nodeToAnswer) > 0 {
		aids := make([]int, 0, len(nodeToAnswer))
		for _, id := range nodeToAnswer {
			aids = append(aids, id)
		}
		if err := s.store.DeleteBranchLinksForAnswers(ctx, aids); err != nil {
			return err
		}
	}

	return nil
}

// compileEdge classifies one edge by its endpoint kinds, persists the
// resulting relationship, and emits the edge's layout row under its
// remapped id. Edges touching unresolved node ids pass through for layout
// purposes only.
func (s *flowServiceImpl) compileEdge(ctx context.Context, typeID int, edge models.FlowEdge, nodeToQuestion, nodeToAnswer map[string]int) error {
	sourceQ, sourceIsQuestion := nodeToQuestion[edge.Source]
	targetQ, targetIsQuestion := nodeToQuestion[edge.Target]
	sourceA, sourceIsAnswer := nodeToAnswer[edge.Source]

	switch {
	case sourceIsAnswer && targetIsQuestion:
		if err := s.store.InsertBranchLink(ctx, sourceA, targetQ); err != nil {
			return err
		}
	case sourceIsQuestion && targetIsQuestion:
		// Always-visible grouping edge.
		if err := s.store.SetParentQuestion(ctx, targetQ, sourceQ); err != nil {
			return err
		}
	}

	newSource := remapElementID(edge.Source, nodeToQuestion, nodeToAnswer)
	newTarget := remapElementID(edge.Target, nodeToQuestion, nodeToAnswer)

	edgeID := fmt.Sprintf("e-%s-%s", newSource, newTarget)
	if sourceIsQuestion && targetIsQuestion {
		edgeID = fmt.Sprintf("e-group-%s-%s", newSource, newTarget)
	}

	meta, err := json.Marshal(edgeMetadata{
		SourceHandle: edge.SourceHandle,
		TargetHandle: edge.TargetHandle,
	})
	if err != nil {
		return err
	}
	metadata := string(meta)

	return s.store.InsertLayout(ctx, models.FlowLayout{
		QuestionnaireTypeID: typeID,
		ElementType:         models.ElementEdge,
		ElementID:           edgeID,
		Metadata:            &metadata,
	})
}

func remapElementID(nodeID string, nodeToQuestion, nodeToAnswer map[string]int) string {
	if qid, ok := nodeToQuestion[nodeID]; ok {
		return fmt.Sprintf("q-%d", qid)
	}
	if aid, ok := nodeToAnswer[nodeID]; ok {
		return fmt.Sprintf("a-%d", aid)
	}
	return nodeID
}

func hasIncomingEdge(edges []models.FlowEdge, nodeID string) bool {
	for _, edge := range edges {
		if edge.Target == nodeID {
			return true
		}
	}
	return false
}

func positionX(p *models.Position) float64 {
	if p == nil {
		return 0
	}
	return p.X
}

func positionY(p *models.Position) float64 {
	if p == nil {
		return 0
	}
	return p.Y
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func strOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
