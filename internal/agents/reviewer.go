package agents

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ShayCichocki/skout/internal/llm"
	"github.com/ShayCichocki/skout/internal/orchestrator"
)

const (
	maxReviewFiles    = 15
	maxReviewFileSize = 1500
)

// CodeReviewer evaluates code quality and best practices using the
// configured LLM provider and publishes its findings under
// <run>/code_review.
type CodeReviewer struct {
	Provider llm.Provider
}

// Run samples code files from the cloned repository and asks the provider
// for a structured review.
func (r *CodeReviewer) Run(ctx context.Context, tc *orchestrator.TaskContext) (any, error) {
	prefix := tc.RunID + "/repo"

	repoPath, ok := tc.Store.GetValue(prefix + "/path").(string)
	if !ok || repoPath == "" {
		return nil, fmt.Errorf("repository path not found in context")
	}
	structure, ok := tc.Store.GetValue(prefix + "/structure").(RepoStructure)
	if !ok {
		return nil, fmt.Errorf("repository structure not found in context")
	}
	endpoints, _ := tc.Store.GetValue(prefix + "/endpoints").([]Endpoint)

	var codeFiles []string
	for _, file := range structure.Files {
		if _, ok := codeExtensions[strings.ToLower(fileExt(file))]; ok {
			codeFiles = append(codeFiles, file)
		}
	}
	samples := sampleFiles(repoPath, codeFiles, maxReviewFiles, maxReviewFileSize)

	var routes []string
	for _, ep := range endpoints {
		routes = append(routes, ep.Path)
	}

	prompt := fmt.Sprintf(`Languages: %s
File structure: %d files in %d directories
Endpoints: %s

Code samples:
%s

Review this code and report under these headings:

BEST_PRACTICES_VIOLATIONS:

CODE_QUALITY_ISSUES:

ARCHITECTURE_CONCERNS:

DOCUMENTATION_GAPS:

MAINTAINABILITY_SCORE:
A score from 0 to 10.`,
		strings.Join(structure.Languages, ", "), len(structure.Files), len(structure.Directories),
		strings.Join(routes, ", "), samples)

	resp, err := r.Provider.Complete(ctx, llm.Request{
		System: "You are a senior engineer reviewing code for quality and best practices.",
		Prompt: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("code review: %w", err)
	}

	review := parseCodeReview(resp.Text)
	tc.Store.Set(tc.RunID+"/code_review", review, tc.Agent)

	return review, nil
}

func fileExt(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i:]
	}
	return ""
}

// parseCodeReview turns the provider's sectioned text into a structured
// review.
func parseCodeReview(text string) CodeReview {
	review := CodeReview{MaintainabilityScore: 5.0}

	section := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)

		switch {
		case strings.Contains(upper, "BEST_PRACTICES_VIOLATIONS"):
			section = "violations"
		case strings.Contains(upper, "CODE_QUALITY_ISSUES"):
			section = "quality"
		case strings.Contains(upper, "ARCHITECTURE_CONCERNS"):
			section = "architecture"
		case strings.Contains(upper, "DOCUMENTATION_GAPS"):
			section = "documentation"
		case strings.Contains(upper, "MAINTAINABILITY_SCORE"):
			section = "score"
			if m := scoreRe.FindString(line); m != "" {
				if score, err := strconv.ParseFloat(m, 64); err == nil {
					review.MaintainabilityScore = score
				}
			}
		case line == "" || section == "":
		case section == "violations":
			review.Violations = append(review.Violations, line)
		case section == "quality":
			review.QualityIssues = append(review.QualityIssues, line)
		case section == "architecture":
			review.ArchitectureRecs = append(review.ArchitectureRecs, line)
		case section == "documentation":
			review.DocumentationGaps = append(review.DocumentationGaps, line)
		case section == "score":
			if m := scoreRe.FindString(line); m != "" {
				if score, err := strconv.ParseFloat(m, 64); err == nil {
					review.MaintainabilityScore = score
				}
			}
		}
	}

	return review
}
