package tool

import (
	"testing"

	"github.com/parlant-engine/convengine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refundTool() model.Tool {
	return model.Tool{
		ID: model.ToolID{Service: "billing", Name: "refund"},
		Params: []model.ToolParam{
			{Name: "order_id", Required: true},
			{Name: "reason", Required: false},
		},
	}
}

func TestEvaluateArgumentsAllValidIsNotBlocked(t *testing.T) {
	tl := refundTool()
	d := inferenceDecision{ArgumentEvaluations: []argEval{
		{ParamName: "order_id", Validity: "valid", Value: "o-1"},
	}}

	args, blocked, insights := evaluateArguments(tl, d)

	assert.False(t, blocked)
	assert.Equal(t, "o-1", args["order_id"])
	assert.Empty(t, insights.MissingData)
	assert.Empty(t, insights.InvalidData)
}

func TestEvaluateArgumentsMissingRequiredParamIsBlocked(t *testing.T) {
	tl := refundTool()
	d := inferenceDecision{}

	args, blocked, insights := evaluateArguments(tl, d)

	assert.True(t, blocked)
	assert.Empty(t, args)
	require.Len(t, insights.MissingData, 1)
	assert.Equal(t, "order_id", insights.MissingData[0].ParamName)
}

func TestEvaluateArgumentsMissingOptionalParamIsNotBlocked(t *testing.T) {
	tl := refundTool()
	d := inferenceDecision{ArgumentEvaluations: []argEval{
		{ParamName: "order_id", Validity: "valid", Value: "o-1"},
	}}

	_, blocked, insights := evaluateArguments(tl, d)

	assert.False(t, blocked)
	assert.Empty(t, insights.MissingData)
}

func TestEvaluateArgumentsInvalidParamIsBlocked(t *testing.T) {
	tl := refundTool()
	d := inferenceDecision{ArgumentEvaluations: []argEval{
		{ParamName: "order_id", Validity: "invalid", Value: "bogus"},
	}}

	_, blocked, insights := evaluateArguments(tl, d)

	assert.True(t, blocked)
	require.Len(t, insights.InvalidData, 1)
	assert.Equal(t, "order_id", insights.InvalidData[0].ParamName)
}

func TestEvaluateArgumentsExplicitMissingRequiredIsBlocked(t *testing.T) {
	tl := refundTool()
	d := inferenceDecision{ArgumentEvaluations: []argEval{
		{ParamName: "order_id", Validity: "missing"},
	}}

	_, blocked, insights := evaluateArguments(tl, d)

	assert.True(t, blocked)
	require.Len(t, insights.MissingData, 1)
}

func TestDedupeInsightsMissingTakesPrecedenceOverInvalid(t *testing.T) {
	tid := model.ToolID{Service: "s", Name: "t"}
	in := model.ToolInsights{
		MissingData: []model.ToolParamInsight{{ToolID: tid, ParamName: "x", Precedence: 1}},
		InvalidData: []model.ToolParamInsight{{ToolID: tid, ParamName: "x", Precedence: 0}},
	}

	out := dedupeInsights(in)

	assert.Len(t, out.MissingData, 1)
	assert.Empty(t, out.InvalidData)
}

func TestDedupeInsightsKeepsLowestPrecedenceOnDuplicateKey(t *testing.T) {
	tid := model.ToolID{Service: "s", Name: "t"}
	in := model.ToolInsights{
		MissingData: []model.ToolParamInsight{
			{ToolID: tid, ParamName: "x", Precedence: 3},
			{ToolID: tid, ParamName: "x", Precedence: 1},
		},
	}

	out := dedupeInsights(in)

	require.Len(t, out.MissingData, 1)
	assert.Equal(t, 1, out.MissingData[0].Precedence)
}

func TestDedupeInsightsDistinctToolsKeepBothEntries(t *testing.T) {
	in := model.ToolInsights{
		MissingData: []model.ToolParamInsight{
			{ToolID: model.ToolID{Service: "a", Name: "x"}, ParamName: "p"},
			{ToolID: model.ToolID{Service: "b", Name: "y"}, ParamName: "p"},
		},
	}

	out := dedupeInsights(in)

	assert.Len(t, out.MissingData, 2)
}

func TestFilterInsightsIsDedupe(t *testing.T) {
	tid := model.ToolID{Service: "s", Name: "t"}
	in := model.ToolInsights{
		MissingData: []model.ToolParamInsight{{ToolID: tid, ParamName: "x"}},
		InvalidData: []model.ToolParamInsight{{ToolID: tid, ParamName: "x"}},
	}

	out := FilterInsights(in)

	assert.Len(t, out.MissingData, 1)
	assert.Empty(t, out.InvalidData)
}
