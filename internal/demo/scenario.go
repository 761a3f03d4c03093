// Package demo ships scripted research projects: transcripts with the
// analysis an analyst would return for them, and the scripts a designer
// would write. They drive the demo command and end-to-end tests without any
// model calls.
package demo

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"interviewlab/internal/analyst"
	"interviewlab/internal/designer"
	"interviewlab/internal/knowledge"
	"interviewlab/internal/orchestrate"
	"interviewlab/internal/payload"
)

//go:embed scenarios/*.yaml
var scenarioFS embed.FS

// Interview is one scripted transcript.
type Interview struct {
	ConversationID string         `yaml:"conversation_id"`
	Language       string         `yaml:"language,omitempty"`
	Transcript     string         `yaml:"transcript"`
	Analysis       map[string]any `yaml:"analysis"`
	Script         map[string]any `yaml:"script,omitempty"`
}

// Initial is the designer output for the project start.
type Initial struct {
	Propositions []map[string]any `yaml:"propositions"`
	Script       map[string]any   `yaml:"script"`
}

// Scenario is a complete scripted project.
type Scenario struct {
	Name             string      `yaml:"name"`
	Description      string      `yaml:"description"`
	ProjectID        string      `yaml:"project_id"`
	ResearchQuestion string      `yaml:"research_question"`
	Language         string      `yaml:"language"`
	InitialAngles    []string    `yaml:"initial_angles"`
	Initial          Initial     `yaml:"initial"`
	Interviews       []Interview `yaml:"interviews"`
}

// Names lists the embedded scenarios.
func Names() ([]string, error) {
	entries, err := fs.ReadDir(scenarioFS, "scenarios")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(out)
	return out, nil
}

// Load returns the embedded scenario called name.
func Load(name string) (*Scenario, error) {
	data, err := scenarioFS.ReadFile(path.Join("scenarios", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("scenario %q not found", name)
	}
	return Parse(data)
}

// Parse decodes and checks a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario yaml: %w", err)
	}
	if s.ProjectID == "" || s.ResearchQuestion == "" {
		return nil, fmt.Errorf("scenario %q: project_id and research_question are required", s.Name)
	}
	if len(s.Interviews) == 0 {
		return nil, fmt.Errorf("scenario %q: no interviews", s.Name)
	}
	seen := map[string]bool{}
	for i, in := range s.Interviews {
		if in.ConversationID == "" {
			return nil, fmt.Errorf("scenario %q: interview %d has no conversation_id", s.Name, i+1)
		}
		if seen[in.ConversationID] {
			return nil, fmt.Errorf("scenario %q: duplicate conversation_id %q", s.Name, in.ConversationID)
		}
		seen[in.ConversationID] = true
		if in.Analysis == nil {
			return nil, fmt.Errorf("scenario %q: interview %s has no analysis", s.Name, in.ConversationID)
		}
	}
	return &s, nil
}

// NewProject describes the scenario's project.
func (s *Scenario) NewProject() orchestrate.NewProject {
	return orchestrate.NewProject{
		ID:               s.ProjectID,
		ResearchQuestion: s.ResearchQuestion,
		Language:         s.Language,
		InitialAngles:    s.InitialAngles,
	}
}

// Jobs returns one processing job per interview, each replaying its
// scripted analysis.
func (s *Scenario) Jobs() []orchestrate.Job {
	jobs := make([]orchestrate.Job, 0, len(s.Interviews))
	for _, in := range s.Interviews {
		jobs = append(jobs, orchestrate.Job{
			Request: orchestrate.Request{
				ProjectID:      s.ProjectID,
				ConversationID: in.ConversationID,
				Transcript:     in.Transcript,
				Language:       in.Language,
				Metadata:       map[string]any{"source": "demo", "scenario": s.Name},
			},
			Analyst: analyst.Static{Payload: in.Analysis},
		})
	}
	return jobs
}

// Designer returns a designer that answers with the scenario's scripts.
func (s *Scenario) Designer() *Designer { return &Designer{s: s} }

// Designer serves scripted designs. Script version n is the script written
// after interview n-1; versions without one get the minimal script.
type Designer struct {
	s *Scenario
}

func (d *Designer) InitialScript(_ context.Context, req knowledge.DesignRequest) ([]knowledge.Proposition, *knowledge.InterviewScript, error) {
	items := make([]payload.Object, 0, len(d.s.Initial.Propositions))
	for _, p := range d.s.Initial.Propositions {
		items = append(items, payload.Object(p))
	}
	props := analyst.Propositions(items, 0)
	return props, designer.ParseScript(payload.Object(d.s.Initial.Script), req.ResearchQuestion, 1, req.MaxSections), nil
}

func (d *Designer) UpdateScript(_ context.Context, req knowledge.DesignRequest) (*knowledge.InterviewScript, error) {
	if i := req.Version - 2; i >= 0 && i < len(d.s.Interviews) && d.s.Interviews[i].Script != nil {
		return designer.ParseScript(payload.Object(d.s.Interviews[i].Script), req.ResearchQuestion, req.Version, req.MaxSections), nil
	}
	script := knowledge.MinimalScript(req.ResearchQuestion, req.Propositions, req.Metrics, req.Version, req.MaxSections)
	script.ChangesSummary = "Scenario script"
	return script, nil
}
