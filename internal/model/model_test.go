package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolIDString(t *testing.T) {
	id := ToolID{Service: "billing", Name: "lookup_invoice"}
	assert.Equal(t, "billing:lookup_invoice", id.String())
}

func TestToolRequiredParams(t *testing.T) {
	tool := Tool{
		Params: []ToolParam{
			{Name: "account_id", Required: true},
			{Name: "locale", Required: false},
			{Name: "order_id", Required: true},
		},
	}

	required := tool.RequiredParams()

	assert.Len(t, required, 2)
	assert.Equal(t, "account_id", required[0].Name)
	assert.Equal(t, "order_id", required[1].Name)
}

func TestToolRequiredParamsEmpty(t *testing.T) {
	tool := Tool{Params: []ToolParam{{Name: "x", Required: false}}}
	assert.Empty(t, tool.RequiredParams())
}

func TestGuidelineIsObservational(t *testing.T) {
	assert.True(t, Guideline{Action: ""}.IsObservational())
	assert.False(t, Guideline{Action: "say hello"}.IsObservational())
}

func TestGuidelineIsJourneyNode(t *testing.T) {
	ordinary := Guideline{}
	assert.False(t, ordinary.IsJourneyNode())

	projected := Guideline{Metadata: GuidelineMetadata{JourneyNodeJourneyID: "journey-1"}}
	assert.True(t, projected.IsJourneyNode())
}

func TestJourneyNodeGuidelineID(t *testing.T) {
	assert.Equal(t, "journey_node:n1", JourneyNodeGuidelineID("n1", ""))
	assert.Equal(t, "journey_node:n1:e1", JourneyNodeGuidelineID("n1", "e1"))
}

func TestCannedResponseHasTag(t *testing.T) {
	cr := CannedResponse{Tags: []string{"billing", "no_match"}}
	assert.True(t, cr.HasTag("no_match"))
	assert.False(t, cr.HasTag("shipping"))
}

func TestNewAgentStateIsEmptyButInitialized(t *testing.T) {
	state := NewAgentState()
	assert.NotNil(t, state.AppliedGuidelineIDs)
	assert.NotNil(t, state.JourneyPathIndexes)
	assert.Empty(t, state.AppliedGuidelineIDs)
}

func TestAgentStateCloneIsIndependent(t *testing.T) {
	orig := NewAgentState()
	orig.AppliedGuidelineIDs["g1"] = struct{}{}
	orig.JourneyPathIndexes["j1"] = 2

	clone := orig.Clone()
	clone.AppliedGuidelineIDs["g2"] = struct{}{}
	clone.JourneyPathIndexes["j1"] = 5

	_, origHasG2 := orig.AppliedGuidelineIDs["g2"]
	assert.False(t, origHasG2)
	assert.Equal(t, 2, orig.JourneyPathIndexes["j1"])
	assert.Equal(t, 5, clone.JourneyPathIndexes["j1"])
}

func TestSessionLastAgentStateEmptyWhenNoHistory(t *testing.T) {
	sess := Session{}
	state := sess.LastAgentState()
	assert.Empty(t, state.AppliedGuidelineIDs)
}

func TestSessionLastAgentStateReturnsMostRecent(t *testing.T) {
	first := NewAgentState()
	first.AppliedGuidelineIDs["g1"] = struct{}{}
	second := NewAgentState()
	second.AppliedGuidelineIDs["g2"] = struct{}{}

	sess := Session{AgentStates: []AgentState{first, second}}

	_, hasG2 := sess.LastAgentState().AppliedGuidelineIDs["g2"]
	assert.True(t, hasG2)
}
