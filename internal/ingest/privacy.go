package ingest

import "regexp"

// ReservedToolPrefixes are the tool-name prefixes reserved for agentmem's own
// tools, one per installation mode (spec §4.4 stage 2): the standalone CLI
// (memhook/memd installed as a normal MCP server) and the in-process plugin
// mode, mirroring the teacher's echoctl-standalone / memory-core-in-process
// split. Centralized here so adding an installation mode only ever touches
// this slice.
var ReservedToolPrefixes = []string{"agentmem:", "mem-internal:"}

// IsSelfReferential reports whether toolName belongs to agentmem itself and
// so must never be captured as an observation about itself.
func IsSelfReferential(toolName string) bool {
	for _, prefix := range ReservedToolPrefixes {
		if len(toolName) >= len(prefix) && toolName[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// secretPatterns match common credential shapes. Matches are replaced with
// "[REDACTED]" before the observation text is ever written to the database.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
	regexp.MustCompile(`ghp_[A-Za-z0-9]{36}`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-._~+/]{20,}=*`),
	regexp.MustCompile(`(?i)https?://[^:/\s]+:[^@/\s]+@\S+`),
}

// RedactSecrets replaces recognized credential patterns in text with a
// placeholder.
func RedactSecrets(text string) string {
	for _, re := range secretPatterns {
		text = re.ReplaceAllString(text, "[REDACTED]")
	}
	return text
}

// PathExcluded reports whether path matches a configured exclusion glob.
// Exact-match and simple prefix globs ("dir/*") are supported, mirroring the
// small config-driven exclusion lists the teacher uses elsewhere
// (memory-core's ignore-file handling).
func PathExcluded(path string, excludePatterns []string) bool {
	for _, pattern := range excludePatterns {
		if pattern == path {
			return true
		}
		if len(pattern) > 1 && pattern[len(pattern)-1] == '*' {
			prefix := pattern[:len(pattern)-1]
			if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
				return true
			}
		}
	}
	return false
}
