// Package delegate implements skill extraction and agent scoring (spec
// §4.K) used to match a task to the best-qualified available agent.
//
// Grounded on the teacher's internal/refinery/engineer.go weighted-scoring
// idiom (queue-anomaly and readiness checks computed as weighted sums over
// named signals) generalized from merge-queue health scoring to
// skill-importance scoring.
package delegate

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Importance weights assigned by each extraction source, per spec §4.K.
const (
	ImportanceExtension = 0.8
	ImportanceKeyword   = 0.7
	ImportanceExplicit  = 1.0
)

// DefaultMinimumProficiency is used for a requirement that does not specify
// its own threshold.
const DefaultMinimumProficiency = 0.3

// Requirement is one skill a task needs, with its importance weight and the
// minimum agent proficiency below which it contributes nothing to a score.
type Requirement struct {
	Skill              string  `json:"skill"`
	Importance         float64 `json:"importance"`
	MinimumProficiency float64 `json:"minimum_proficiency,omitempty"`
}

// extensionSkills maps a file extension to the skill it implies.
var extensionSkills = map[string]string{
	".py":    "python",
	".go":    "go",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".rb":    "ruby",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".sql":   "database",
	".html":  "frontend",
	".css":   "frontend",
	".scss":  "frontend",
	".sh":    "devops",
	".yaml":  "devops",
	".yml":   "devops",
	".tf":    "devops",
	".dockerfile": "devops",
	".md":    "documentation",
}

// keywordSkills maps a whole-word keyword found in the objective/constraints
// text to the skill(s) it implies.
var keywordSkills = map[string][]string{
	"test":           {"testing"},
	"tests":          {"testing"},
	"testing":        {"testing"},
	"database":       {"database"},
	"sql":            {"database"},
	"deploy":         {"devops"},
	"deployment":     {"devops"},
	"infrastructure": {"devops"},
	"docker":         {"devops"},
	"kubernetes":     {"devops"},
	"security":       {"security"},
	"auth":           {"security"},
	"authentication": {"security"},
	"frontend":       {"frontend"},
	"ui":             {"frontend"},
	"react":          {"frontend"},
	"backend":        {"backend"},
	"api":            {"backend"},
	"performance":    {"performance"},
	"optimize":       {"performance"},
	"optimization":   {"performance"},
	"documentation":  {"documentation"},
	"docs":           {"documentation"},
	"python":         {"python"},
	"javascript":     {"javascript"},
	"typescript":     {"typescript"},
	"golang":         {"go"},
	"rust":           {"rust"},
}

var keywordPattern = map[string]*regexp.Regexp{}

func init() {
	for kw := range keywordSkills {
		keywordPattern[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
	}
}

// explicitSkillPattern matches the spec's "requires/needs/expertise-in/
// experience-with X" phrasing, capturing the skill token that follows.
var explicitSkillPattern = regexp.MustCompile(`(?i)\b(?:requires|needs|expertise[- ]in|experience[- ]with)\s+([A-Za-z][A-Za-z0-9+#.]*)`)

// ExtractSkills derives the skill requirements implied by a task's files,
// objective, and constraints, per spec §4.K: file extensions at 0.8,
// keyword matches at 0.7, explicit "requires X" phrasing at 1.0,
// deduplicated by taking the maximum importance per skill, sorted
// descending by importance.
func ExtractSkills(objective string, constraints []string, files []string) []Requirement {
	scores := map[string]float64{}
	bump := func(skill string, importance float64) {
		skill = strings.ToLower(skill)
		if cur, ok := scores[skill]; !ok || importance > cur {
			scores[skill] = importance
		}
	}

	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f))
		if skill, ok := extensionSkills[ext]; ok {
			bump(skill, ImportanceExtension)
		}
	}

	text := strings.ToLower(strings.Join(append([]string{objective}, constraints...), " "))
	for kw, skills := range keywordSkills {
		if keywordPattern[kw].MatchString(text) {
			for _, sk := range skills {
				bump(sk, ImportanceKeyword)
			}
		}
	}

	for _, m := range explicitSkillPattern.FindAllStringSubmatch(text, -1) {
		bump(m[1], ImportanceExplicit)
	}

	out := make([]Requirement, 0, len(scores))
	for skill, importance := range scores {
		out = append(out, Requirement{Skill: skill, Importance: importance})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].Skill < out[j].Skill
	})
	return out
}
