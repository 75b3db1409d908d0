package inmem

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/parlant-engine/convengine/internal/model"
)

// Fixtures is the shape LoadFixtureFile/ParseFixtures parse YAML into:
// agents, guidelines, journeys, and canned responses for test harnesses and
// local development, authored as data instead of hand-assembled Go
// literals.
type Fixtures struct {
	Agents          []agentFixture          `yaml:"agents"`
	Guidelines      []guidelineFixture      `yaml:"guidelines"`
	Journeys        []journeyFixture        `yaml:"journeys"`
	CannedResponses []cannedResponseFixture `yaml:"canned_responses"`
}

type agentFixture struct {
	ID                  string   `yaml:"id"`
	Name                string   `yaml:"name"`
	Description         string   `yaml:"description"`
	Composition         string   `yaml:"composition"`
	MaxEngineIterations int      `yaml:"max_engine_iterations"`
	Tags                []string `yaml:"tags"`
}

type guidelineFixture struct {
	ID        string   `yaml:"id"`
	Condition string   `yaml:"condition"`
	Action    string   `yaml:"action"`
	Enabled   bool     `yaml:"enabled"`
	Tags      []string `yaml:"tags"`
}

type journeyNodeFixture struct {
	ID     string `yaml:"id"`
	Action string `yaml:"action"`
}

type journeyEdgeFixture struct {
	ID        string `yaml:"id"`
	FromNode  string `yaml:"from_node"`
	ToNode    string `yaml:"to_node"`
	Condition string `yaml:"condition"`
}

type journeyFixture struct {
	ID    string               `yaml:"id"`
	Title string               `yaml:"title"`
	Nodes []journeyNodeFixture `yaml:"nodes"`
	Edges []journeyEdgeFixture `yaml:"edges"`
}

type cannedResponseFixture struct {
	ID       string   `yaml:"id"`
	Template string   `yaml:"template"`
	Fields   []string `yaml:"fields"`
	Signals  []string `yaml:"signals"`
	Tags     []string `yaml:"tags"`
}

// LoadFixtureFile reads and parses a YAML fixture file describing agents,
// guidelines, journeys, and canned responses, for seeding the in-memory
// stores in tests and local development without hand-assembling Go structs.
func LoadFixtureFile(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("inmem: read fixture file: %w", err)
	}
	return ParseFixtures(data)
}

// ParseFixtures parses raw YAML fixture data.
func ParseFixtures(data []byte) (Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixtures{}, fmt.Errorf("inmem: parse fixtures: %w", err)
	}
	return f, nil
}

// AgentStore builds an AgentStore from the fixture's agent definitions.
func (f Fixtures) AgentStore() *AgentStore {
	agents := make([]model.Agent, 0, len(f.Agents))
	for _, a := range f.Agents {
		agents = append(agents, model.Agent{
			ID:                  a.ID,
			Name:                a.Name,
			Description:         a.Description,
			Composition:         model.CompositionMode(a.Composition),
			MaxEngineIterations: a.MaxEngineIterations,
			Tags:                a.Tags,
		})
	}
	return NewAgentStore(agents...)
}

// GuidelineStore builds a GuidelineStore from the fixture's guideline
// definitions.
func (f Fixtures) GuidelineStore() *GuidelineStore {
	guidelines := make([]model.Guideline, 0, len(f.Guidelines))
	for _, g := range f.Guidelines {
		guidelines = append(guidelines, model.Guideline{
			ID:        g.ID,
			Condition: g.Condition,
			Action:    g.Action,
			Enabled:   g.Enabled,
			Tags:      g.Tags,
		})
	}
	return NewGuidelineStore(guidelines...)
}

// JourneyStore builds a JourneyStore from the fixture's journey definitions.
func (f Fixtures) JourneyStore() *JourneyStore {
	journeys := make([]model.Journey, 0, len(f.Journeys))
	for _, j := range f.Journeys {
		nodes := make(map[string]model.JourneyNode, len(j.Nodes))
		for _, n := range j.Nodes {
			nodes[n.ID] = model.JourneyNode{ID: n.ID, Action: n.Action}
		}
		edges := make([]model.JourneyEdge, 0, len(j.Edges))
		for _, e := range j.Edges {
			edges = append(edges, model.JourneyEdge{ID: e.ID, FromNode: e.FromNode, ToNode: e.ToNode, Condition: e.Condition})
		}
		journeys = append(journeys, model.Journey{ID: j.ID, Title: j.Title, Nodes: nodes, Edges: edges})
	}
	return NewJourneyStore(journeys...)
}

// CannedResponseStore builds a CannedResponseStore from the fixture's canned
// response definitions.
func (f Fixtures) CannedResponseStore() *CannedResponseStore {
	responses := make([]model.CannedResponse, 0, len(f.CannedResponses))
	for _, r := range f.CannedResponses {
		responses = append(responses, model.CannedResponse{
			ID: r.ID, Template: r.Template, Fields: r.Fields, Signals: r.Signals, Tags: r.Tags,
		})
	}
	return NewCannedResponseStore(responses...)
}
