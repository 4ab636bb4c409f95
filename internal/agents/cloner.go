package agents

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ShayCichocki/skout/internal/orchestrator"
)

const cloneTimeout = 5 * time.Minute

// Filename fragments that mark a file as security-relevant.
var securityPatterns = []string{
	".env", "secret", "secrets", "credential", "password", "token",
	"auth", "cert", "private_key", "id_rsa", "keystore",
	"dockerfile", "docker-compose", "security", "oauth", "jwt",
	"permissions", "policy",
}

// Filenames that commonly define routes or URL mappings.
var routePatterns = []string{
	"routes", "urls", "views", "handlers", "controllers", "api",
	"app.py", "main.py", "server", "router", "endpoints", "middleware",
}

// Dependency manifests, classified as security-relevant when dependency
// auditing is enabled.
var dependencyPatterns = []string{
	"requirements.txt", "package.json", "package-lock.json", "yarn.lock",
	"pipfile", "poetry.lock", "pyproject.toml", "gemfile", "composer.json",
	"go.mod", "go.sum", "cargo.toml", "pom.xml", "build.gradle",
}

// Filenames that indicate configuration.
var configPatterns = []string{
	"config", "settings", ".yml", ".yaml", ".toml", ".ini",
	"appsettings", "application.properties",
}

var codeExtensions = map[string]string{
	".py": "python", ".js": "javascript", ".ts": "typescript",
	".java": "java", ".php": "php", ".rb": "ruby", ".go": "go",
	".rs": "rust", ".cpp": "cpp", ".c": "c", ".cs": "csharp",
	".kt": "kotlin", ".swift": "swift", ".scala": "scala",
	".ex": "elixir", ".sh": "shell", ".sql": "sql",
	".html": "html", ".css": "css", ".jsx": "javascript", ".tsx": "typescript",
}

var skipDirs = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
}

// Route declaration patterns for common web frameworks.
var endpointPatterns = []*regexp.Regexp{
	regexp.MustCompile(`@app\.route\(['"]([^'"]+)`),
	regexp.MustCompile(`@(?:app|router)\.(?:get|post|put|delete|patch)\(['"]([^'"]+)`),
	regexp.MustCompile(`(?:app|router)\.(?:get|post|put|delete|patch|all)\(['"]([^'"]+)`),
	regexp.MustCompile(`(?:re_)?path\(['"]([^'"]+)`),
	regexp.MustCompile(`HandleFunc\(['"]([^'"]+)`),
	regexp.MustCompile(`\.(?:GET|POST|PUT|DELETE|PATCH)\(['"]([^'"]+)`),
}

// Cloner fetches the repository under audit and publishes its structure
// to the shared context under <run>/repo.
type Cloner struct {
	// RepoURL is the clone source. An existing local directory is
	// analyzed in place.
	RepoURL string
	// WorkDir is the parent directory for clones.
	WorkDir string
	// IncludeDeps treats dependency manifests as security-relevant so
	// they reach the security analysis sample.
	IncludeDeps bool
}

// Run clones the repository, walks its structure, and extracts endpoints.
func (c *Cloner) Run(ctx context.Context, tc *orchestrator.TaskContext) (any, error) {
	repoPath, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	structure, err := c.analyzeStructure(repoPath)
	if err != nil {
		return nil, fmt.Errorf("analyze structure: %w", err)
	}

	endpoints := extractEndpoints(repoPath, structure.RouteFiles)

	prefix := tc.RunID + "/repo"
	tc.Store.Set(prefix+"/url", c.RepoURL, tc.Agent)
	tc.Store.Set(prefix+"/path", repoPath, tc.Agent)
	tc.Store.Set(prefix+"/structure", structure, tc.Agent)
	tc.Store.Set(prefix+"/endpoints", endpoints, tc.Agent)

	return CloneResult{
		RepoURL:   c.RepoURL,
		RepoPath:  repoPath,
		Structure: structure,
		Endpoints: endpoints,
	}, nil
}

// fetch resolves the repository to a local directory, cloning if needed.
func (c *Cloner) fetch(ctx context.Context) (string, error) {
	if info, err := os.Stat(c.RepoURL); err == nil && info.IsDir() {
		return c.RepoURL, nil
	}

	name := repoName(c.RepoURL)
	if name == "" {
		return "", fmt.Errorf("cannot derive repository name from %q", c.RepoURL)
	}

	dest := filepath.Join(c.WorkDir, name)
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("clean clone target: %w", err)
	}
	if err := os.MkdirAll(c.WorkDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, cloneTimeout)
	defer cancel()

	cmd := exec.CommandContext(cloneCtx, "git", "clone", "--depth", "1", c.RepoURL, dest)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git clone %s: %w\n%s", c.RepoURL, err, strings.TrimSpace(string(out)))
	}

	return dest, nil
}

// repoName derives the repository directory name from a clone URL.
func repoName(url string) string {
	trimmed := strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	return path.Base(trimmed)
}

// analyzeStructure walks the repository and classifies its files.
func (c *Cloner) analyzeStructure(repoPath string) (RepoStructure, error) {
	structure := RepoStructure{}
	languages := map[string]bool{}

	err := filepath.WalkDir(repoPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if p == repoPath {
				return nil
			}
			if strings.HasPrefix(name, ".") || skipDirs[name] {
				return filepath.SkipDir
			}
			rel, _ := filepath.Rel(repoPath, p)
			structure.Directories = append(structure.Directories, filepath.ToSlash(rel))
			return nil
		}

		if strings.HasPrefix(name, ".") && !strings.HasPrefix(name, ".env") {
			return nil
		}

		rel, _ := filepath.Rel(repoPath, p)
		rel = filepath.ToSlash(rel)
		structure.Files = append(structure.Files, rel)

		if lang, ok := codeExtensions[strings.ToLower(filepath.Ext(name))]; ok {
			languages[lang] = true
		}

		lower := strings.ToLower(name)
		if matchesAny(lower, securityPatterns) || (c.IncludeDeps && matchesAny(lower, dependencyPatterns)) {
			structure.SecurityFiles = append(structure.SecurityFiles, rel)
		}
		if matchesAny(lower, routePatterns) {
			structure.RouteFiles = append(structure.RouteFiles, rel)
		}
		if matchesAny(lower, configPatterns) {
			structure.ConfigFiles = append(structure.ConfigFiles, rel)
		}

		return nil
	})
	if err != nil {
		return RepoStructure{}, err
	}

	for lang := range languages {
		structure.Languages = append(structure.Languages, lang)
	}
	sort.Strings(structure.Languages)

	return structure, nil
}

func matchesAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(name, pattern) {
			return true
		}
	}
	return false
}

// extractEndpoints scans route files for route declarations. Unreadable
// files are skipped.
func extractEndpoints(repoPath string, routeFiles []string) []Endpoint {
	var endpoints []Endpoint

	for _, file := range routeFiles {
		content, err := os.ReadFile(filepath.Join(repoPath, file))
		if err != nil {
			continue
		}

		for _, pattern := range endpointPatterns {
			for _, match := range pattern.FindAllStringSubmatch(string(content), -1) {
				endpoints = append(endpoints, Endpoint{
					Path: match[len(match)-1],
					File: file,
					Type: "route",
				})
			}
		}
	}

	return endpoints
}
