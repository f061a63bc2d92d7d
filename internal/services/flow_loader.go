package services

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"

	"github.com/paulexconde/questflow/internal/models"
	"github.com/paulexconde/questflow/pkg/fault"
)

// Edge layout ids: e-<src>-<tgt>, or e-group-<src>-<tgt> for grouping edges.
// Synthesized endpoints look like q-12 / a-34; anything else was passed
// through from the client unchanged.
var (
	edgeIDPattern     = regexp.MustCompile(`^e-(?:group-)?([qa]-\d+)-([qa]-\d+)$`)
	edgeSourcePattern = regexp.MustCompile(`^e-(?:group-)?([qa]-\d+)-(.+)$`)
	edgeTargetPattern = regexp.MustCompile(`^e-(?:group-)?(.+)-([qa]-\d+)$`)
	elementIDPattern  = regexp.MustCompile(`^[qa]-(\d+)$`)
)

// LoadFlow is the inverse of compile: the graph is assembled purely from the
// layout rows of a type plus the domain rows they reference. Positions and
// edge handle metadata reproduce exactly what was stored.
func (s *flowServiceImpl) LoadFlow(ctx context.Context, typeID int) (*models.FlowGraph, error) {
	t, err := s.store.TypeByID(ctx, typeID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fault.NewNotFoundError("questionnaire type not found")
	}

	layouts, err := s.store.LayoutsForType(ctx, typeID)
	if err != nil {
		return nil, err
	}

	var questionLayouts, answerLayouts, edgeLayouts []models.FlowLayout
	for _, l := range layouts {
		switch l.ElementType {
		case models.ElementQuestion:
			questionLayouts = append(questionLayouts, l)
		case models.ElementAnswer:
			answerLayouts = append(answerLayouts, l)
		case models.ElementEdge:
			edgeLayouts = append(edgeLayouts, l)
		}
	}

	questions, err := s.loadQuestionRows(ctx, questionLayouts)
	if err != nil {
		return nil, err
	}
	answers, err := s.loadAnswerRows(ctx, answerLayouts)
	if err != nil {
		return nil, err
	}

	qids := make([]int, 0, len(questions))
	for id := range questions {
		qids = append(qids, id)
	}

	configs, err := s.store.ConfigsForQuestions(ctx, qids)
	if err != nil {
		return nil, err
	}
	configByQuestion := make(map[int]models.QuestionComputedConfig, len(configs))
	for _, c := range configs {
		configByQuestion[c.QuestionID] = c
	}

	refBindings, err := s.loadReferenceBindings(ctx, typeID, qids)
	if err != nil {
		return nil, err
	}

	graph := &models.FlowGraph{Nodes: []models.FlowNode{}, Edges: []models.FlowEdge{}}

	for _, l := range questionLayouts {
		id, ok := parseElementID(l.ElementID)
		if !ok {
			continue
		}
		q, ok := questions[id]
		if !ok {
			// Layout row outlived its question; skip rather than emit a hollow node.
			s.log.Warn("layout references missing question", "element_id", l.ElementID)
			continue
		}
		graph.Nodes = append(graph.Nodes, questionNode(l, q, configByQuestion, refBindings))
	}

	for _, l := range answerLayouts {
		id, ok := parseElementID(l.ElementID)
		if !ok {
			continue
		}
		a, ok := answers[id]
		if !ok {
			s.log.Warn("layout references missing answer", "element_id", l.ElementID)
			continue
		}
		graph.Nodes = append(graph.Nodes, answerNode(l, a))
	}

	for _, l := range edgeLayouts {
		edge, ok := decodeEdge(l)
		if !ok {
			s.log.Warn("unparseable edge layout", "element_id", l.ElementID)
			continue
		}
		graph.Edges = append(graph.Edges, edge)
	}

	return graph, nil
}

func (s *flowServiceImpl) loadQuestionRows(ctx context.Context, layouts []models.FlowLayout) (map[int]models.Question, error) {
	ids := elementIDs(layouts)
	if len(ids) == 0 {
		return map[int]models.Question{}, nil
	}

	rows, err := s.store.QuestionsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[int]models.Question, len(rows))
	for _, q := range rows {
		out[q.ID] = q
	}
	return out, nil
}

func (s *flowServiceImpl) loadAnswerRows(ctx context.Context, layouts []models.FlowLayout) (map[int]models.PredefinedAnswer, error) {
	ids := elementIDs(layouts)
	if len(ids) == 0 {
		return map[int]models.PredefinedAnswer{}, nil
	}

	rows, err := s.store.AnswersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[int]models.PredefinedAnswer, len(rows))
	for _, a := range rows {
		out[a.ID] = a
	}
	return out, nil
}

type referenceBinding struct {
	table  string
	column string
}

func (s *flowServiceImpl) loadReferenceBindings(ctx context.Context, typeID int, questionIDs []int) (map[int]referenceBinding, error) {
	out := make(map[int]referenceBinding)
	if len(questionIDs) == 0 {
		return out, nil
	}

	cols, err := s.store.ReferenceColumnsForQuestions(ctx, questionIDs)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return out, nil
	}

	tables, err := s.store.ReferenceTablesForType(ctx, typeID)
	if err != nil {
		return nil, err
	}
	tableNames := make(map[int]string, len(tables))
	for _, t := range tables {
		tableNames[t.ID] = t.TableName
	}

	for _, c := range cols {
		out[c.QuestionID] = referenceBinding{
			table:  tableNames[c.ReferenceTableID],
			column: c.ReferenceColumnName,
		}
	}
	return out, nil
}

func questionNode(l models.FlowLayout, q models.Question, configs map[int]models.QuestionComputedConfig, refs map[int]referenceBinding) models.FlowNode {
	data := models.NodeData{
		QuestionText:      q.QuestionText,
		QuestionLabel:     q.QuestionLabel,
		QuestionOrder:     q.QuestionOrder,
		QuestionFormatID:  q.QuestionFormatID,
		FormatCode:        q.FormatCode,
		SpecificTypeID:    q.SpecificTypeID,
		ReadOnly:          q.ReadOnly,
		IsRequired:        q.IsRequired,
		ValidationPattern: q.ValidationPattern,
	}

	if cfg, ok := configs[q.ID]; ok {
		data.IsComputed = true
		data.ComputeMethodID = &cfg.ComputeMethodID
		data.RuleName = &cfg.RuleName
		data.RuleDescription = cfg.RuleDescription
		data.MatrixObjectName = cfg.MatrixObjectName
		data.OutputMode = &cfg.OutputMode
		data.OutputTarget = cfg.OutputTarget
		data.MatrixOutputColumnName = cfg.MatrixOutputColumnName
		data.FormulaExpression = cfg.FormulaExpression
		data.Priority = &cfg.Priority
		data.IsActive = &cfg.IsActive
	}

	if ref, ok := refs[q.ID]; ok {
		data.ReferenceTable = ref.table
		data.ReferenceColumn = ref.column
	}

	return models.FlowNode{
		ID:       l.ElementID,
		Type:     models.NodeTypeQuestion,
		Data:     data,
		Position: &models.Position{X: l.PositionX, Y: l.PositionY},
	}
}

func answerNode(l models.FlowLayout, a models.PredefinedAnswer) models.FlowNode {
	displayOrder := a.DisplayOrder
	return models.FlowNode{
		ID:   l.ElementID,
		Type: models.NodeTypeAnswer,
		Data: models.NodeData{
			Label:             a.Answer,
			AnswerText:        a.Answer,
			Code:              a.Code,
			IsPreSelected:     a.PreSelected,
			StatisticalWeight: a.StatisticalWeight,
			DisplayOrder:      &displayOrder,
		},
		Position: &models.Position{X: l.PositionX, Y: l.PositionY},
	}
}

func decodeEdge(l models.FlowLayout) (models.FlowEdge, bool) {
	source, target, ok := parseEdgeEndpoints(l.ElementID)
	if !ok {
		return models.FlowEdge{}, false
	}

	edge := models.FlowEdge{ID: l.ElementID, Source: source, Target: target}

	if l.Metadata != nil && *l.Metadata != "" {
		var meta edgeMetadata
		if err := json.Unmarshal([]byte(*l.Metadata), &meta); err == nil {
			edge.SourceHandle = meta.SourceHandle
			edge.TargetHandle = meta.TargetHandle
		}
	}

	return edge, true
}

func parseEdgeEndpoints(edgeID string) (string, string, bool) {
	if m := edgeIDPattern.FindStringSubmatch(edgeID); m != nil {
		return m[1], m[2], true
	}
	// One endpoint passed through from the client unchanged.
	if m := edgeSourcePattern.FindStringSubmatch(edgeID); m != nil {
		return m[1], m[2], true
	}
	if m := edgeTargetPattern.FindStringSubmatch(edgeID); m != nil {
		return m[1], m[2], true
	}
	return "", "", false
}

func parseElementID(elementID string) (int, bool) {
	m := elementIDPattern.FindStringSubmatch(elementID)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

func elementIDs(layouts []models.FlowLayout) []int {
	ids := make([]int, 0, len(layouts))
	for _, l := range layouts {
		if id, ok := parseElementID(l.ElementID); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
