package agents

import "time"

// RepoStructure summarizes the files discovered in a cloned repository.
type RepoStructure struct {
	Files         []string `json:"files"`
	Directories   []string `json:"directories"`
	Languages     []string `json:"languages"`
	ConfigFiles   []string `json:"config_files"`
	SecurityFiles []string `json:"security_files"`
	RouteFiles    []string `json:"route_files"`
}

// Endpoint is a route discovered in a repository's route definition files.
type Endpoint struct {
	Path string `json:"path"`
	File string `json:"file"`
	Type string `json:"type"`
}

// CloneResult is the Cloner agent's output.
type CloneResult struct {
	RepoURL   string        `json:"repo_url"`
	RepoPath  string        `json:"repo_path"`
	Structure RepoStructure `json:"structure"`
	Endpoints []Endpoint    `json:"endpoints"`
}

// SecurityAnalysis is the SecurityAnalyst agent's output.
type SecurityAnalysis struct {
	Vulnerabilities []string `json:"vulnerabilities"`
	Recommendations []string `json:"recommendations"`
	RiskLevel       string   `json:"risk_level"`
	Confidence      float64  `json:"confidence"`
}

// CodeReview is the CodeReviewer agent's output.
type CodeReview struct {
	Violations           []string `json:"best_practices_violations"`
	QualityIssues        []string `json:"code_quality_issues"`
	ArchitectureRecs     []string `json:"architecture_recommendations"`
	DocumentationGaps    []string `json:"documentation_gaps"`
	MaintainabilityScore float64  `json:"maintainability_score"`
}

// Recommendation is a prioritized action item in the final report.
type Recommendation struct {
	Category string `json:"category"`
	Priority string `json:"priority"`
	Action   string `json:"action"`
}

// PriorityMatrix buckets findings by urgency.
type PriorityMatrix struct {
	ImmediateAction []string `json:"immediate_action"`
	ShortTerm       []string `json:"short_term"`
	LongTerm        []string `json:"long_term"`
}

// Report is the Reporter agent's aggregate output.
type Report struct {
	GeneratedAt      time.Time        `json:"generated_at"`
	Repository       string           `json:"repository"`
	OverallRisk      string           `json:"overall_risk_level"`
	QualityScore     float64          `json:"code_quality_score"`
	FilesAnalyzed    int              `json:"total_files_analyzed"`
	Languages        []string         `json:"languages_detected"`
	CriticalFindings []string         `json:"critical_findings"`
	Security         SecurityAnalysis `json:"security_analysis"`
	SecurityRan      bool             `json:"security_analysis_ran"`
	Review           CodeReview       `json:"code_review"`
	ReviewRan        bool             `json:"code_review_ran"`
	Recommendations  []Recommendation `json:"actionable_recommendations"`
	Priorities       PriorityMatrix   `json:"priority_matrix"`
}
