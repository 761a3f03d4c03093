package knowledge

// EvidenceMapping is an analyst proposal to link evidence to a proposition.
type EvidenceMapping struct {
	EvidenceID    string       `json:"evidence_id" yaml:"evidence_id"`
	PropositionID string       `json:"proposition_id" yaml:"proposition_id"`
	Relationship  Relationship `json:"relationship" yaml:"relationship"`
}

// PropositionUpdate overwrites confidence and status of an existing proposition.
type PropositionUpdate struct {
	ID            string            `json:"id" yaml:"id"`
	NewConfidence float64           `json:"new_confidence" yaml:"new_confidence"`
	NewStatus     PropositionStatus `json:"new_status" yaml:"new_status"`
}

// MergeProposal folds SourceIDs into Merged.
type MergeProposal struct {
	SourceIDs []string     `json:"source_ids" yaml:"source_ids"`
	Merged    *Proposition `json:"merged_proposition,omitempty" yaml:"merged_proposition,omitempty"`
}

// AnalysisResult is the structured output of the analyst for one interview.
type AnalysisResult struct {
	NewEvidence         []Evidence          `json:"new_evidence"`
	EvidenceMappings    []EvidenceMapping   `json:"evidence_mappings"`
	NewPropositions     []Proposition       `json:"new_propositions"`
	RetroactiveMappings []EvidenceMapping   `json:"retroactive_mappings"`
	PropositionUpdates  []PropositionUpdate `json:"proposition_updates"`
	Merges              []MergeProposal     `json:"merges"`
	Prunes              []string            `json:"prunes"`
	Metrics             Metrics             `json:"metrics"`
}

// AnalysisRequest is what the analyst sees of the project for one transcript.
type AnalysisRequest struct {
	ProjectID        string
	ResearchQuestion string
	Language         string
	Transcript       string
	InterviewID      string
	InterviewIndex   int
	Evidence         []Evidence
	Propositions     []Proposition
}

// DesignRequest is what the designer sees when producing a script.
// Previous is nil when the project has no script yet.
type DesignRequest struct {
	ProjectID        string
	ResearchQuestion string
	Language         string
	InitialAngles    []string
	Propositions     []Proposition
	Evidence         []Evidence
	Previous         *InterviewScript
	Metrics          Metrics
	Version          int
	MaxSections      int
}
