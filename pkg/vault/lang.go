package vault

import "strings"

var langByKnowledgeType = map[string]string{
	"command": "bash",
	"config":  "yaml",
	"formula": "math",
	"sql":     "sql",
}

// detectArtifactLang picks a fence language for a knowledge artifact,
// first from the artifact's shape, then from the knowledge type.
func detectArtifactLang(artifact, knowledgeType string) string {
	s := strings.TrimSpace(artifact)
	switch {
	case strings.HasPrefix(s, "SELECT"), strings.HasPrefix(s, "select"):
		return "sql"
	case strings.HasPrefix(s, "{"), strings.HasPrefix(s, "["):
		return "json"
	case strings.HasPrefix(s, "<"):
		return "xml"
	case strings.HasPrefix(s, "def "), strings.HasPrefix(s, "import "):
		return "python"
	case strings.HasPrefix(s, "public "), strings.HasPrefix(s, "private "):
		return "java"
	case strings.Contains(s, ":") && !strings.HasPrefix(s, "http"):
		return "yaml"
	case strings.HasPrefix(s, "$"), strings.HasPrefix(s, "#!"):
		return "bash"
	}
	return langByKnowledgeType[knowledgeType]
}
