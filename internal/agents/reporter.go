package agents

import (
	"context"
	"time"

	"github.com/ShayCichocki/skout/internal/orchestrator"
)

// Reporter aggregates the outputs of the analysis agents into a final
// report under <run>/report. Missing analyses degrade the report rather
// than failing it, so a partially failed run still yields a summary.
type Reporter struct{}

// Run collates the run's context subtree into a Report.
func (r *Reporter) Run(ctx context.Context, tc *orchestrator.TaskContext) (any, error) {
	repoURL, _ := tc.Store.GetValue(tc.RunID + "/repo/url").(string)
	structure, _ := tc.Store.GetValue(tc.RunID + "/repo/structure").(RepoStructure)
	security, securityRan := tc.Store.GetValue(tc.RunID + "/security_analysis").(SecurityAnalysis)
	review, reviewRan := tc.Store.GetValue(tc.RunID + "/code_review").(CodeReview)

	report := Report{
		GeneratedAt:      time.Now(),
		Repository:       repoURL,
		OverallRisk:      overallRisk(security, securityRan, review, reviewRan),
		QualityScore:     overallQuality(security, securityRan, review, reviewRan),
		FilesAnalyzed:    len(structure.Files),
		Languages:        structure.Languages,
		CriticalFindings: criticalFindings(security, review),
		Security:         security,
		SecurityRan:      securityRan,
		Review:           review,
		ReviewRan:        reviewRan,
		Recommendations:  actionableRecommendations(security, review),
		Priorities:       priorityMatrix(security, review),
	}

	tc.Store.Set(tc.RunID+"/report", report, tc.Agent)

	return report, nil
}

var riskRank = map[string]int{"CRITICAL": 4, "HIGH": 3, "MEDIUM": 2, "LOW": 1}
var rankRisk = map[int]string{4: "CRITICAL", 3: "HIGH", 2: "MEDIUM", 1: "LOW"}

// overallRisk combines the security risk level with code quality. Poor
// maintainability bumps the risk one level.
func overallRisk(security SecurityAnalysis, securityRan bool, review CodeReview, reviewRan bool) string {
	if !securityRan {
		return "UNKNOWN"
	}

	rank, ok := riskRank[security.RiskLevel]
	if !ok {
		rank = 2
	}
	if reviewRan && review.MaintainabilityScore < 3 {
		rank = min(rank+1, 4)
	}

	return rankRisk[rank]
}

// overallQuality starts from the maintainability score and discounts it
// for severe security findings.
func overallQuality(security SecurityAnalysis, securityRan bool, review CodeReview, reviewRan bool) float64 {
	if !reviewRan {
		return 5.0
	}

	score := review.MaintainabilityScore
	if securityRan {
		switch security.RiskLevel {
		case "CRITICAL":
			score = max(score-2, 0)
		case "HIGH":
			score = max(score-1, 0)
		}
	}

	return score
}

// criticalFindings picks the top findings across both analyses, capped
// at five.
func criticalFindings(security SecurityAnalysis, review CodeReview) []string {
	findings := append([]string{}, firstN(security.Vulnerabilities, 3)...)
	findings = append(findings, firstN(review.Violations, 3)...)
	return firstN(findings, 5)
}

func actionableRecommendations(security SecurityAnalysis, review CodeReview) []Recommendation {
	var recs []Recommendation

	for _, rec := range firstN(security.Recommendations, 3) {
		recs = append(recs, Recommendation{Category: "Security", Priority: "HIGH", Action: rec})
	}
	for _, rec := range firstN(review.ArchitectureRecs, 3) {
		recs = append(recs, Recommendation{Category: "Code Quality", Priority: "MEDIUM", Action: rec})
	}

	return recs
}

func priorityMatrix(security SecurityAnalysis, review CodeReview) PriorityMatrix {
	matrix := PriorityMatrix{}

	if security.RiskLevel == "CRITICAL" || security.RiskLevel == "HIGH" {
		matrix.ImmediateAction = firstN(security.Vulnerabilities, 2)
	}
	if review.MaintainabilityScore > 0 && review.MaintainabilityScore < 4 {
		matrix.ShortTerm = firstN(review.Violations, 2)
	}
	matrix.LongTerm = firstN(review.ArchitectureRecs, 2)

	return matrix
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
