package inmem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFixtureYAML = `
agents:
  - id: a1
    name: Agent One
    composition: fluid
    max_engine_iterations: 3
    tags: [alpha]

guidelines:
  - id: g1
    condition: cond
    action: act
    enabled: true
    tags: [t1]

journeys:
  - id: j1
    title: Journey One
    nodes:
      - id: n1
        action: do thing
    edges:
      - id: e1
        from_node: n1
        to_node: n1
        condition: loop

canned_responses:
  - id: cr1
    template: "hello"
    tags: [preamble]
`

func TestParseFixturesPopulatesEveryStore(t *testing.T) {
	f, err := ParseFixtures([]byte(sampleFixtureYAML))
	require.NoError(t, err)

	ctx := context.Background()

	agents := f.AgentStore()
	a, err := agents.Read(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Agent One", a.Name)
	assert.Equal(t, 3, a.MaxEngineIterations)

	guidelines := f.GuidelineStore()
	gs, err := guidelines.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, gs, 1)
	assert.Equal(t, "g1", gs[0].ID)

	journeys := f.JourneyStore()
	j, err := journeys.Read(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "Journey One", j.Title)
	assert.Contains(t, j.Nodes, "n1")
	require.Len(t, j.Edges, 1)

	canned := f.CannedResponseStore()
	crs, err := canned.FindByTag(ctx, "preamble")
	require.NoError(t, err)
	require.Len(t, crs, 1)
	assert.Equal(t, "hello", crs[0].Template)
}

func TestParseFixturesRejectsMalformedYAML(t *testing.T) {
	_, err := ParseFixtures([]byte("agents: [not: a: list"))
	assert.Error(t, err)
}

func TestLoadFixtureFileReadsFromDisk(t *testing.T) {
	f, err := LoadFixtureFile("testdata/fixtures.yaml")
	require.NoError(t, err)

	agents := f.AgentStore()
	a, err := agents.Read(context.Background(), "support-agent")
	require.NoError(t, err)
	assert.Equal(t, "Support Agent", a.Name)

	guidelines := f.GuidelineStore()
	gs, err := guidelines.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, gs, 2)
}

func TestLoadFixtureFileMissingFileReturnsError(t *testing.T) {
	_, err := LoadFixtureFile("testdata/does-not-exist.yaml")
	assert.Error(t, err)
}
