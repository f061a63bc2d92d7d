package models

// QuestionnaireType is the top-level grouping for a flow. Code is the unique
// human-readable key the rendering client resolves schemas by.
type QuestionnaireType struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Code string `db:"code" json:"code"`
}

// QuestionnaireIdentificatorType names the identifier scheme end users are
// keyed by when submitting answers for a type.
type QuestionnaireIdentificatorType struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Question is a single questionnaire item. ParentQuestionID encodes the
// always-visible grouping hierarchy, which is independent of answer-triggered
// branching.
type Question struct {
	ID                int     `db:"id" json:"id"`
	QuestionText      string  `db:"question_text" json:"question_text"`
	QuestionLabel     *string `db:"question_label" json:"question_label"`
	QuestionOrder     *int    `db:"question_order" json:"question_order"`
	QuestionFormatID  *int    `db:"question_format_id" json:"question_format_id"`
	FormatCode        *string `db:"format_code" json:"format_code"`
	SpecificTypeID    *int    `db:"specific_type_id" json:"specific_type_id"`
	ReadOnly          bool    `db:"read_only" json:"read_only"`
	IsRequired        bool    `db:"is_required" json:"is_required"`
	ValidationPattern *string `db:"validation_pattern" json:"validation_pattern"`
	ParentQuestionID  *int    `db:"parent_question_id" json:"parent_question_id"`
}

// PredefinedAnswer belongs to exactly one question and is deleted with it.
type PredefinedAnswer struct {
	ID                int      `db:"id" json:"id"`
	QuestionID        int      `db:"question_id" json:"question_id"`
	Answer            string   `db:"answer" json:"answer"`
	Code              *string  `db:"code" json:"code"`
	PreSelected       bool     `db:"pre_selected" json:"pre_selected"`
	StatisticalWeight *float64 `db:"statistical_weight" json:"statistical_weight"`
	DisplayOrder      int      `db:"display_order" json:"display_order"`
}

// AnswerSubQuestion links an answer to the question it reveals when selected.
type AnswerSubQuestion struct {
	PredefinedAnswerID int `db:"predefined_answer_id" json:"predefined_answer_id"`
	SubQuestionID      int `db:"sub_question_id" json:"sub_question_id"`
}

// QuestionComputedConfig declares that a question's value is derived rather
// than entered. ComputeMethodID selects the interpretation.
type QuestionComputedConfig struct {
	ID                     int     `db:"id" json:"id"`
	QuestionID             int     `db:"question_id" json:"question_id"`
	ComputeMethodID        int     `db:"compute_method_id" json:"compute_method_id"`
	RuleName               string  `db:"rule_name" json:"rule_name"`
	RuleDescription        *string `db:"rule_description" json:"rule_description"`
	MatrixObjectName       *string `db:"matrix_object_name" json:"matrix_object_name"`
	OutputMode             int     `db:"output_mode" json:"output_mode"`
	OutputTarget           *string `db:"output_target" json:"output_target"`
	MatrixOutputColumnName *string `db:"matrix_output_column_name" json:"matrix_output_column_name"`
	FormulaExpression      *string `db:"formula_expression" json:"formula_expression"`
	Priority               int     `db:"priority" json:"priority"`
	IsActive               bool    `db:"is_active" json:"is_active"`
}

// ReferenceTable binds a questionnaire type to an externally defined lookup
// table. Created on demand, keyed by (type, table name).
type ReferenceTable struct {
	ID                  int    `db:"id" json:"id"`
	QuestionnaireTypeID int    `db:"questionnaire_type_id" json:"questionnaire_type_id"`
	TableName           string `db:"table_name" json:"table_name"`
}

// ReferenceColumn binds a question to one column of a reference table.
type ReferenceColumn struct {
	ID                  int    `db:"id" json:"id"`
	QuestionID          int    `db:"question_id" json:"question_id"`
	ReferenceTableID    int    `db:"reference_table_id" json:"reference_table_id"`
	ReferenceColumnName string `db:"reference_column_name" json:"reference_column_name"`
}

// QuestionnaireRoot registers a question as an entry point for a type.
// A type may have several roots.
type QuestionnaireRoot struct {
	QuestionnaireTypeID int `db:"questionnaire_type_id" json:"questionnaire_type_id"`
	QuestionID          int `db:"question_id" json:"question_id"`
}

// Element types stored in flow layout rows.
const (
	ElementQuestion = "Question"
	ElementAnswer   = "Answer"
	ElementEdge     = "Edge"
)

// FlowLayout is purely presentational state for the editor. ElementID is a
// synthesized key (q-<id>, a-<id>, edge ids) so the graph can be rebuilt
// without touching domain logic. Rows are regenerated wholesale on save.
type FlowLayout struct {
	ID                  int     `db:"id" json:"id"`
	QuestionnaireTypeID int     `db:"questionnaire_type_id" json:"questionnaire_type_id"`
	ElementType         string  `db:"element_type" json:"element_type"`
	ElementID           string  `db:"element_id" json:"element_id"`
	PositionX           float64 `db:"position_x" json:"position_x"`
	PositionY           float64 `db:"position_y" json:"position_y"`
	Metadata            *string `db:"metadata" json:"metadata"`
}

// ReferenceTableMetadata is what the editor's binding UI consumes: the table
// name plus the first column any question bound to it uses.
type ReferenceTableMetadata struct {
	TableName           string  `db:"table_name" json:"table_name"`
	PreferredColumnName *string `db:"preferred_column_name" json:"preferred_column_name"`
}
