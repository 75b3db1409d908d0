package tool

import (
	"testing"

	"github.com/parlant-engine/convengine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amountParam() model.ToolParam {
	return model.ToolParam{
		Name:     "amount",
		Required: true,
		JSONSchema: map[string]any{
			"type":    "integer",
			"minimum": 1,
			"maximum": 10000,
		},
	}
}

func TestValidateArgumentAcceptsInRangeInteger(t *testing.T) {
	val, err := validateArgument(amountParam(), "250")
	require.NoError(t, err)
	assert.EqualValues(t, 250, val)
}

func TestValidateArgumentRejectsOutOfRangeInteger(t *testing.T) {
	_, err := validateArgument(amountParam(), "999999")
	assert.Error(t, err)
}

func TestValidateArgumentRejectsNonNumericForIntegerSchema(t *testing.T) {
	_, err := validateArgument(amountParam(), "not-a-number")
	assert.Error(t, err)
}

func TestValidateArgumentPassesThroughWhenNoSchemaDeclared(t *testing.T) {
	p := model.ToolParam{Name: "reason"}
	val, err := validateArgument(p, "anything goes")
	require.NoError(t, err)
	assert.Equal(t, "anything goes", val)
}

func TestValidateArgumentEnforcesStringPattern(t *testing.T) {
	p := model.ToolParam{
		Name: "order_id",
		JSONSchema: map[string]any{
			"type":    "string",
			"pattern": "^o-[0-9]+$",
		},
	}

	_, err := validateArgument(p, "o-42")
	assert.NoError(t, err)

	_, err = validateArgument(p, "bogus")
	assert.Error(t, err)
}

func TestEvaluateArgumentsDemotesModelMarkedValidToInvalidOnSchemaFailure(t *testing.T) {
	tl := model.Tool{
		ID:     model.ToolID{Service: "billing", Name: "refund"},
		Params: []model.ToolParam{amountParam()},
	}
	d := inferenceDecision{ArgumentEvaluations: []argEval{
		{ParamName: "amount", Validity: "valid", Value: "999999"},
	}}

	args, blocked, insights := evaluateArguments(tl, d)

	assert.True(t, blocked)
	assert.Empty(t, args)
	require.Len(t, insights.InvalidData, 1)
	assert.Equal(t, "amount", insights.InvalidData[0].ParamName)
}

func TestEvaluateArgumentsCoercesValidIntegerArgument(t *testing.T) {
	tl := model.Tool{
		ID:     model.ToolID{Service: "billing", Name: "refund"},
		Params: []model.ToolParam{amountParam()},
	}
	d := inferenceDecision{ArgumentEvaluations: []argEval{
		{ParamName: "amount", Validity: "valid", Value: "250"},
	}}

	args, blocked, _ := evaluateArguments(tl, d)

	assert.False(t, blocked)
	assert.EqualValues(t, 250, args["amount"])
}
