package agents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ShayCichocki/skout/internal/llm"
	"github.com/ShayCichocki/skout/internal/orchestrator"
)

const (
	maxSecurityFiles    = 10
	maxSecurityFileSize = 2000
)

// SecurityAnalyst inspects the cloned repository for vulnerabilities using
// the configured LLM provider and publishes its findings under
// <run>/security_analysis.
type SecurityAnalyst struct {
	Provider llm.Provider
	// Deep doubles the number of security files sampled.
	Deep bool
}

// Run reads the repository structure from the shared context, samples the
// security-relevant files, and asks the provider for an assessment.
func (a *SecurityAnalyst) Run(ctx context.Context, tc *orchestrator.TaskContext) (any, error) {
	prefix := tc.RunID + "/repo"

	repoPath, ok := tc.Store.GetValue(prefix + "/path").(string)
	if !ok || repoPath == "" {
		return nil, fmt.Errorf("repository path not found in context")
	}
	structure, ok := tc.Store.GetValue(prefix + "/structure").(RepoStructure)
	if !ok {
		return nil, fmt.Errorf("repository structure not found in context")
	}
	repoURL, _ := tc.Store.GetValue(prefix + "/url").(string)
	endpoints, _ := tc.Store.GetValue(prefix + "/endpoints").([]Endpoint)

	limit := maxSecurityFiles
	if a.Deep {
		limit *= 2
	}
	contents := sampleFiles(repoPath, structure.SecurityFiles, limit, maxSecurityFileSize)

	prompt := fmt.Sprintf(`Repository Information:
- URL: %s
- Files: %d files analyzed
- Languages: %s
- API Endpoints: %d endpoints found

Security-related file contents:
%s

Based on this information, identify:

CRITICAL_VULNERABILITIES:

HIGH_RISK_ISSUES:

MEDIUM_RISK_ISSUES:

SECURITY_RECOMMENDATIONS:

RISK_ASSESSMENT:
Overall risk level (CRITICAL, HIGH, MEDIUM, LOW) and confidence score (0-1)`,
		repoURL, len(structure.Files), strings.Join(structure.Languages, ", "), len(endpoints), contents)

	resp, err := a.Provider.Complete(ctx, llm.Request{
		System: "You are a security expert analyzing a codebase for vulnerabilities.",
		Prompt: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("security analysis: %w", err)
	}

	analysis := parseSecurityAnalysis(resp.Text)
	tc.Store.Set(tc.RunID+"/security_analysis", analysis, tc.Agent)

	return analysis, nil
}

// sampleFiles concatenates truncated contents of up to limit files,
// each section headed by its relative path. Unreadable files are skipped.
func sampleFiles(repoPath string, files []string, limit, maxSize int) string {
	var b strings.Builder

	for _, file := range files {
		if limit == 0 {
			break
		}
		content, err := os.ReadFile(filepath.Join(repoPath, file))
		if err != nil {
			continue
		}
		if len(content) > maxSize {
			content = content[:maxSize]
		}
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", file, content)
		limit--
	}

	return b.String()
}

var scoreRe = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

// parseSecurityAnalysis turns the provider's sectioned text into a
// structured result. Unknown lines outside a section are ignored.
func parseSecurityAnalysis(text string) SecurityAnalysis {
	analysis := SecurityAnalysis{
		RiskLevel:  "MEDIUM",
		Confidence: 0.7,
	}

	section := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)

		switch {
		case strings.Contains(upper, "CRITICAL_VULNERABILITIES"),
			strings.Contains(upper, "HIGH_RISK_ISSUES"),
			strings.Contains(upper, "MEDIUM_RISK_ISSUES"):
			section = "vulnerabilities"
		case strings.Contains(upper, "SECURITY_RECOMMENDATIONS"):
			section = "recommendations"
		case strings.Contains(upper, "RISK_ASSESSMENT"):
			section = "risk"
		case line == "" || section == "":
		case section == "vulnerabilities":
			analysis.Vulnerabilities = append(analysis.Vulnerabilities, line)
		case section == "recommendations":
			analysis.Recommendations = append(analysis.Recommendations, line)
		case section == "risk":
			switch {
			case strings.Contains(upper, "CRITICAL"):
				analysis.RiskLevel = "CRITICAL"
			case strings.Contains(upper, "HIGH"):
				analysis.RiskLevel = "HIGH"
			case strings.Contains(upper, "LOW"):
				analysis.RiskLevel = "LOW"
			}
			if strings.Contains(strings.ToLower(line), "confidence") {
				if m := scoreRe.FindString(line); m != "" {
					if score, err := strconv.ParseFloat(m, 64); err == nil {
						if score > 1 {
							score /= 100
						}
						analysis.Confidence = score
					}
				}
			}
		}
	}

	return analysis
}
