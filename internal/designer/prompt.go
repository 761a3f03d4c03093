package designer

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"interviewlab/internal/knowledge"
)

//go:embed interviewer.tmpl
var interviewerTemplate string

var interviewer = template.Must(template.New("interviewer").Parse(interviewerTemplate))

var languageNames = map[string]string{
	knowledge.LangEnglish: "English",
	knowledge.LangRussian: "Russian",
}

type topicView struct {
	PropositionID string
	Instruction   knowledge.Instruction
	Priority      string
	PriorityLower knowledge.Priority
	MainQuestion  string
	Probes        string
	Context       string
}

type promptView struct {
	ResearchQuestion string
	LanguageName     string
	Opening          string
	Closing          string
	Wildcard         string
	Topics           []topicView
}

// RenderPrompt renders the interviewer system prompt for script. At most
// limit sections are included; limit <= 0 means DefaultMaxSections.
func RenderPrompt(script *knowledge.InterviewScript, language string, limit int) (string, error) {
	if script == nil {
		return "", fmt.Errorf("render prompt: no script")
	}
	name, ok := languageNames[knowledge.NormalizeLanguage(language)]
	if !ok {
		name = languageNames[knowledge.LangEnglish]
	}
	v := promptView{
		ResearchQuestion: script.ResearchQuestion,
		LanguageName:     name,
		Opening:          script.OpeningQuestion,
		Closing:          script.ClosingQuestion,
		Wildcard:         script.Wildcard,
	}
	sections := script.Sections
	if l := maxSections(limit); len(sections) > l {
		sections = sections[:l]
	}
	for _, s := range sections {
		v.Topics = append(v.Topics, topicView{
			PropositionID: s.PropositionID,
			Instruction:   s.Instruction,
			Priority:      strings.ToUpper(string(s.Priority)),
			PriorityLower: s.Priority,
			MainQuestion:  s.MainQuestion,
			Probes:        strings.Join(s.Probes, " / "),
			Context:       s.Context,
		})
	}
	var b strings.Builder
	if err := interviewer.Execute(&b, v); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}
