package models

// Rule kinds exposed to the rendering client.
const (
	RuleKindMatrixLookup = "MATRIX_LOOKUP"
	RuleKindBMICalc      = "BMI_CALC"
	RuleKindFormula      = "FORMULA"
	RuleKindUnknown      = "UNKNOWN"
)

// Compute method ids as persisted in computed configs.
const (
	ComputeMethodMatrixLookup = 1
	ComputeMethodBMICalc      = 2
	ComputeMethodFormula      = 3
)

// TypeDTO is one entry of the questionnaire-type listing.
type TypeDTO struct {
	QuestionnaireTypeID int    `db:"id" json:"questionnaireTypeId"`
	Name                string `db:"name" json:"name"`
	Code                string `db:"code" json:"code"`
}

// QuestionnaireMeta identifies the type a schema belongs to.
type QuestionnaireMeta struct {
	TypeID   int    `json:"typeId"`
	TypeName string `json:"typeName"`
}

// AnswerDTO is one predefined answer with the questions it branches into.
type AnswerDTO struct {
	PredefinedAnswerID int           `json:"predefinedAnswerId"`
	Answer             string        `json:"answer"`
	Code               string        `json:"code"`
	PreSelected        bool          `json:"preSelected"`
	SubQuestions       []QuestionDTO `json:"subQuestions,omitempty"`
}

// QuestionDTO is one node of the nested rendering schema. Children are the
// always-visible sub-items; branching lives under each answer.
type QuestionDTO struct {
	QuestionID        int           `json:"questionId"`
	QuestionText      string        `json:"questionText"`
	QuestionLabel     *string       `json:"questionLabel"`
	QuestionOrder     int           `json:"questionOrder"`
	UIControl         string        `json:"uiControl"`
	SpecificTypeID    *int          `json:"specificTypeId"`
	ParentQuestionID  *int          `json:"parentQuestionId"`
	ReadOnly          bool          `json:"readOnly"`
	IsRequired        bool          `json:"isRequired"`
	ValidationPattern *string       `json:"validationPattern"`
	Answers           []AnswerDTO   `json:"answers,omitempty"`
	Children          []QuestionDTO `json:"children,omitempty"`
}

// RuleDTO is one active computed rule attached to the schema.
//
// InputQuestionIDs is positional: index 0 is the primary input and index 1 the
// secondary (height then weight for BMI rules). The evaluator trusts array
// position, not named roles, so the order must match the owning question's
// children sorted by question_order.
type RuleDTO struct {
	RuleID            int    `json:"ruleId"`
	QuestionID        int    `json:"questionId"`
	Kind              string `json:"kind"`
	RuleName          string `json:"ruleName"`
	MatrixName        string `json:"matrixName"`
	ResultCodeColumn  string `json:"resultCodeColumn"`
	FormulaExpression string `json:"formulaExpression,omitempty"`
	InputQuestionIDs  []int  `json:"inputQuestionIds"`
}

// SchemaDTO is the full rendering schema for one questionnaire type.
type SchemaDTO struct {
	Questionnaire QuestionnaireMeta `json:"questionnaire"`
	Questions     []QuestionDTO     `json:"questions"`
	Rules         []RuleDTO         `json:"rules"`
}

// RuleKind maps a persisted compute method id to its client-facing kind.
func RuleKind(computeMethodID int) string {
	switch computeMethodID {
	case ComputeMethodMatrixLookup:
		return RuleKindMatrixLookup
	case ComputeMethodBMICalc:
		return RuleKindBMICalc
	case ComputeMethodFormula:
		return RuleKindFormula
	default:
		return RuleKindUnknown
	}
}
