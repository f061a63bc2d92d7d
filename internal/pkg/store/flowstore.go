package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/paulexconde/questflow/internal/models"
)

// flowStore is the Postgres-backed implementation of services.FlowStore.
// Each method commits independently; the compile sequence is deliberately
// not one transaction (see the flow service docs). The reap and the scoped
// purge are the two places where atomicity matters, and both run as single
// query-level operations.
type flowStore struct {
	db *sqlx.DB
}

func NewFlowStore(db *sqlx.DB) *flowStore {
	return &flowStore{db: db}
}

const questionColumns = `id, question_text, question_label, question_order, question_format_id,
	format_code, specific_type_id, read_only, is_required, validation_pattern, parent_question_id`

const answerColumns = `id, question_id, answer, code, pre_selected, statistical_weight, display_order`

func (s *flowStore) TypeByID(ctx context.Context, id int) (*models.QuestionnaireType, error) {
	var t models.QuestionnaireType
	err := s.db.GetContext(ctx, &t, "SELECT id, name, code FROM questionnaire_types WHERE id=$1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *flowStore) TypeByCode(ctx context.Context, code string) (*models.QuestionnaireType, error) {
	var t models.QuestionnaireType
	err := s.db.GetContext(ctx, &t, "SELECT id, name, code FROM questionnaire_types WHERE code=$1", code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *flowStore) CreateType(ctx context.Context, name, code string) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO questionnaire_types (name, code) VALUES ($1, $2) RETURNING id", name, code).Scan(&id)
	return id, err
}

func (s *flowStore) DeleteType(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM questionnaire_types WHERE id=$1", id)
	return err
}

func (s *flowStore) CreateIdentificatorType(ctx context.Context, name string) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO questionnaire_identificator_types (name) VALUES ($1) RETURNING id", name).Scan(&id)
	return id, err
}

func (s *flowStore) InsertQuestion(ctx context.Context, q models.Question) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO questions (question_text, question_label, question_order, question_format_id,
			format_code, specific_type_id, read_only, is_required, validation_pattern)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		q.QuestionText, q.QuestionLabel, q.QuestionOrder, q.QuestionFormatID,
		q.FormatCode, q.SpecificTypeID, q.ReadOnly, q.IsRequired, q.ValidationPattern).Scan(&id)
	return id, err
}

func (s *flowStore) InsertAnswer(ctx context.Context, a models.PredefinedAnswer) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO predefined_answers (question_id, answer, code, pre_selected, statistical_weight, display_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		a.QuestionID, a.Answer, a.Code, a.PreSelected, a.StatisticalWeight, a.DisplayOrder).Scan(&id)
	return id, err
}

func (s *flowStore) InsertBranchLink(ctx context.Context, answerID, subQuestionID int) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO predefined_answer_sub_questions (predefined_answer_id, sub_question_id) VALUES ($1, $2)",
		answerID, subQuestionID)
	return err
}

func (s *flowStore) InsertComputedConfig(ctx context.Context, cfg models.QuestionComputedConfig) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO question_computed_configs (question_id, compute_method_id, rule_name, rule_description,
			matrix_object_name, output_mode, output_target, matrix_output_column_name, formula_expression,
			priority, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		cfg.QuestionID, cfg.ComputeMethodID, cfg.RuleName, cfg.RuleDescription,
		cfg.MatrixObjectName, cfg.OutputMode, cfg.OutputTarget, cfg.MatrixOutputColumnName,
		cfg.FormulaExpression, cfg.Priority, cfg.IsActive).Scan(&id)
	return id, err
}

func (s *flowStore) GetOrCreateReferenceTable(ctx context.Context, typeID int, tableName string) (int, error) {
	var id int
	err := s.db.GetContext(ctx, &id,
		"SELECT id FROM questionnaire_type_reference_tables WHERE questionnaire_type_id=$1 AND table_name=$2",
		typeID, tableName)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	err = s.db.QueryRowContext(ctx,
		"INSERT INTO questionnaire_type_reference_tables (questionnaire_type_id, table_name) VALUES ($1, $2) RETURNING id",
		typeID, tableName).Scan(&id)
	return id, err
}

func (s *flowStore) InsertReferenceColumn(ctx context.Context, col models.ReferenceColumn) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO question_reference_columns (question_id, reference_table_id, reference_column_name)
		VALUES ($1, $2, $3)`,
		col.QuestionID, col.ReferenceTableID, col.ReferenceColumnName)
	return err
}

func (s *flowStore) InsertRoot(ctx context.Context, typeID, questionID int) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO questionnaires (questionnaire_type_id, question_id) VALUES ($1, $2)", typeID, questionID)
	return err
}

func (s *flowStore) InsertLayout(ctx context.Context, layout models.FlowLayout) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flow_layouts (questionnaire_type_id, element_type, element_id, position_x, position_y, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		layout.QuestionnaireTypeID, layout.ElementType, layout.ElementID,
		layout.PositionX, layout.PositionY, layout.Metadata)
	return err
}

func (s *flowStore) ClearParentQuestions(ctx context.Context, questionIDs []int) error {
	if len(questionIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In("UPDATE questions SET parent_question_id=NULL WHERE id IN (?)", questionIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	return err
}

func (s *flowStore) SetParentQuestion(ctx context.Context, childID, parentID int) error {
	_, err := s.db.ExecContext(ctx, "UPDATE questions SET parent_question_id=$1 WHERE id=$2", parentID, childID)
	return err
}

func (s *flowStore) DeleteBranchLinksForAnswers(ctx context.Context, answerIDs []int) error {
	if len(answerIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM predefined_answer_sub_questions WHERE predefined_answer_id IN (?)", answerIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	return err
}

func (s *flowStore) DeleteRoots(ctx context.Context, typeID int) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM questionnaires WHERE questionnaire_type_id=$1", typeID)
	return err
}

func (s *flowStore) DeleteLayouts(ctx context.Context, typeID int) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM flow_layouts WHERE questionnaire_type_id=$1", typeID)
	return err
}

// ReapOrphans deletes every question not reachable from a registered root
// through parent links or answer branch links. One statement, so concurrent
// saves of other types never observe a half-swept state. Answer, config,
// link and reference-column rows go with their question via FK cascades.
func (s *flowStore) ReapOrphans(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		WITH RECURSIVE tree(question_id) AS (
			SELECT question_id FROM questionnaires
			UNION
			SELECT n.id
			FROM tree t
			JOIN LATERAL (
				SELECT q.id FROM questions q WHERE q.parent_question_id = t.question_id
				UNION
				SELECT l.sub_question_id AS id
				FROM predefined_answers pa
				JOIN predefined_answer_sub_questions l ON l.predefined_answer_id = pa.id
				WHERE pa.question_id = t.question_id
			) n ON TRUE
		)
		DELETE FROM questions WHERE id NOT IN (SELECT question_id FROM tree)`)
	return err
}

// PurgeTypeData removes every row tied to one questionnaire type inside a
// single transaction: submissions, identificator combinations, layouts,
// root mappings, reference bindings, and the reachable question tree. The
// type row itself stays.
func (s *flowStore) PurgeTypeData(ctx context.Context, typeID int) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		CREATE TEMPORARY TABLE valid_questions ON COMMIT DROP AS
		WITH RECURSIVE tree(question_id) AS (
			SELECT question_id FROM questionnaires WHERE questionnaire_type_id = $1
			UNION
			SELECT n.id
			FROM tree t
			JOIN LATERAL (
				SELECT q.id FROM questions q WHERE q.parent_question_id = t.question_id
				UNION
				SELECT l.sub_question_id AS id
				FROM predefined_answers pa
				JOIN predefined_answer_sub_questions l ON l.predefined_answer_id = pa.id
				WHERE pa.question_id = t.question_id
			) n ON TRUE
		)
		SELECT DISTINCT question_id FROM tree`, typeID)
	if err != nil {
		return err
	}

	statements := []string{
		`DELETE FROM questionnaire_answers WHERE combination_id IN (
			SELECT id FROM questionnaire_by_questionnaire_identificators WHERE questionnaire_type_id = $1)`,
		`DELETE FROM questionnaire_by_questionnaire_identificators WHERE questionnaire_type_id = $1`,
		`DELETE FROM flow_layouts WHERE questionnaire_type_id = $1`,
		`DELETE FROM questionnaires WHERE questionnaire_type_id = $1`,
		`DELETE FROM question_reference_columns WHERE question_id IN (SELECT question_id FROM valid_questions)`,
		`DELETE FROM question_computed_configs WHERE question_id IN (SELECT question_id FROM valid_questions)`,
		`DELETE FROM predefined_answer_sub_questions WHERE predefined_answer_id IN (
			SELECT id FROM predefined_answers WHERE question_id IN (SELECT question_id FROM valid_questions))`,
		`DELETE FROM predefined_answer_sub_questions WHERE sub_question_id IN (SELECT question_id FROM valid_questions)`,
		`DELETE FROM predefined_answers WHERE question_id IN (SELECT question_id FROM valid_questions)`,
		`DELETE FROM questions WHERE id IN (SELECT question_id FROM valid_questions)`,
		`DELETE FROM question_reference_columns WHERE reference_table_id IN (
			SELECT id FROM questionnaire_type_reference_tables WHERE questionnaire_type_id = $1)`,
		`DELETE FROM questionnaire_type_reference_tables WHERE questionnaire_type_id = $1`,
	}

	for _, stmt := range statements {
		args := []any{}
		if strings.Contains(stmt, "$1") {
			args = append(args, typeID)
		}
		if _, err = tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("purging type %d: %w", typeID, err)
		}
	}

	return tx.Commit()
}

func (s *flowStore) LayoutsForType(ctx context.Context, typeID int) ([]models.FlowLayout, error) {
	var layouts []models.FlowLayout
	err := s.db.SelectContext(ctx, &layouts, `
		SELECT id, questionnaire_type_id, element_type, element_id, position_x, position_y, metadata
		FROM flow_layouts WHERE questionnaire_type_id=$1 ORDER BY id`, typeID)
	return layouts, err
}

func (s *flowStore) QuestionsByIDs(ctx context.Context, ids []int) ([]models.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT "+questionColumns+" FROM questions WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	var questions []models.Question
	err = s.db.SelectContext(ctx, &questions, s.db.Rebind(query), args...)
	return questions, err
}

func (s *flowStore) QuestionsByParentIDs(ctx context.Context, parentIDs []int) ([]models.Question, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT "+questionColumns+" FROM questions WHERE parent_question_id IN (?)", parentIDs)
	if err != nil {
		return nil, err
	}
	var questions []models.Question
	err = s.db.SelectContext(ctx, &questions, s.db.Rebind(query), args...)
	return questions, err
}

func (s *flowStore) AnswersByIDs(ctx context.Context, ids []int) ([]models.PredefinedAnswer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT "+answerColumns+" FROM predefined_answers WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	var answers []models.PredefinedAnswer
	err = s.db.SelectContext(ctx, &answers, s.db.Rebind(query), args...)
	return answers, err
}

func (s *flowStore) AnswersForQuestions(ctx context.Context, questionIDs []int) ([]models.PredefinedAnswer, error) {
	if len(questionIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT "+answerColumns+" FROM predefined_answers WHERE question_id IN (?)", questionIDs)
	if err != nil {
		return nil, err
	}
	var answers []models.PredefinedAnswer
	err = s.db.SelectContext(ctx, &answers, s.db.Rebind(query), args...)
	return answers, err
}

func (s *flowStore) BranchLinksForAnswers(ctx context.Context, answerIDs []int) ([]models.AnswerSubQuestion, error) {
	if len(answerIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		SELECT predefined_answer_id, sub_question_id
		FROM predefined_answer_sub_questions WHERE predefined_answer_id IN (?)`, answerIDs)
	if err != nil {
		return nil, err
	}
	var links []models.AnswerSubQuestion
	err = s.db.SelectContext(ctx, &links, s.db.Rebind(query), args...)
	return links, err
}

func (s *flowStore) AllBranchTargetIDs(ctx context.Context) ([]int, error) {
	var ids []int
	err := s.db.SelectContext(ctx, &ids, "SELECT DISTINCT sub_question_id FROM predefined_answer_sub_questions")
	return ids, err
}

func (s *flowStore) RootQuestionIDs(ctx context.Context, typeID int) ([]int, error) {
	var ids []int
	err := s.db.SelectContext(ctx, &ids,
		"SELECT DISTINCT question_id FROM questionnaires WHERE questionnaire_type_id=$1", typeID)
	return ids, err
}

const configColumns = `id, question_id, compute_method_id, rule_name, rule_description, matrix_object_name,
	output_mode, output_target, matrix_output_column_name, formula_expression, priority, is_active`

func (s *flowStore) ActiveConfigsForQuestions(ctx context.Context, questionIDs []int) ([]models.QuestionComputedConfig, error) {
	if len(questionIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		"SELECT "+configColumns+" FROM question_computed_configs WHERE is_active AND question_id IN (?) ORDER BY priority",
		questionIDs)
	if err != nil {
		return nil, err
	}
	var configs []models.QuestionComputedConfig
	err = s.db.SelectContext(ctx, &configs, s.db.Rebind(query), args...)
	return configs, err
}

func (s *flowStore) ConfigsForQuestions(ctx context.Context, questionIDs []int) ([]models.QuestionComputedConfig, error) {
	if len(questionIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		"SELECT "+configColumns+" FROM question_computed_configs WHERE question_id IN (?)", questionIDs)
	if err != nil {
		return nil, err
	}
	var configs []models.QuestionComputedConfig
	err = s.db.SelectContext(ctx, &configs, s.db.Rebind(query), args...)
	return configs, err
}

func (s *flowStore) ReferenceTablesForType(ctx context.Context, typeID int) ([]models.ReferenceTable, error) {
	var tables []models.ReferenceTable
	err := s.db.SelectContext(ctx, &tables, `
		SELECT id, questionnaire_type_id, table_name
		FROM questionnaire_type_reference_tables WHERE questionnaire_type_id=$1`, typeID)
	return tables, err
}

func (s *flowStore) ReferenceColumnsForQuestions(ctx context.Context, questionIDs []int) ([]models.ReferenceColumn, error) {
	if len(questionIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		SELECT id, question_id, reference_table_id, reference_column_name
		FROM question_reference_columns WHERE question_id IN (?)`, questionIDs)
	if err != nil {
		return nil, err
	}
	var cols []models.ReferenceColumn
	err = s.db.SelectContext(ctx, &cols, s.db.Rebind(query), args...)
	return cols, err
}

func (s *flowStore) ReferenceTableMetadata(ctx context.Context, typeID int) ([]models.ReferenceTableMetadata, error) {
	var meta []models.ReferenceTableMetadata
	err := s.db.SelectContext(ctx, &meta, `
		SELECT rt.table_name,
			(SELECT qrc.reference_column_name
			 FROM question_reference_columns qrc
			 WHERE qrc.reference_table_id = rt.id
			 ORDER BY qrc.id LIMIT 1) AS preferred_column_name
		FROM questionnaire_type_reference_tables rt
		WHERE rt.questionnaire_type_id = $1`, typeID)
	return meta, err
}
