// Package validate enforces the input validation and sanitization rules of
// spec §4.C at every public entry point of the core: agent IDs, message
// content, file paths, timeouts, rate-limit parameters, ports, and hosts.
//
// Grounded on the teacher's internal/web/validate.go (regex-driven ID/path
// validation, home-directory containment) generalized from gastown's
// rig/bead identifiers to swarm agent IDs and project-relative paths, plus
// golang.org/x/text/unicode/norm for the NFC normalization the spec calls
// out explicitly for file paths.
package validate

import (
	"fmt"
	"net"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/claude-swarm/swarm/internal/swarmerr"
)

// MaxMessageBytes is the maximum content size accepted by the messaging
// core, per spec §8 boundary behavior.
const MaxMessageBytes = 10 * 1024

// agentIDPattern matches spec §3: ASCII [A-Za-z0-9_-]{1,64}, and the
// leading/trailing hyphen rule is checked separately below.
var agentIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// AgentID validates an agent identifier against spec §3 / §4.C.
func AgentID(id string) error {
	if id == "" {
		return fieldErr("agent_id", "must not be empty")
	}
	if len(id) > 64 {
		return fieldErr("agent_id", "must be at most 64 characters")
	}
	if !agentIDPattern.MatchString(id) {
		return fieldErr("agent_id", "must match [A-Za-z0-9_-]{1,64}")
	}
	if strings.HasPrefix(id, "-") || strings.HasSuffix(id, "-") {
		return fieldErr("agent_id", "must not start or end with a hyphen")
	}
	return nil
}

// RecipientList validates a list of recipient agent IDs: non-empty, all
// individually valid, and free of duplicates.
func RecipientList(ids []string) error {
	if len(ids) == 0 {
		return fieldErr("recipients", "must not be empty")
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if err := AgentID(id); err != nil {
			return err
		}
		if seen[id] {
			return fieldErr("recipients", fmt.Sprintf("duplicate recipient %q", id))
		}
		seen[id] = true
	}
	return nil
}

// bidiAndZeroWidth are the Trojan-Source-class code points the spec
// requires stripped from message content: bidirectional override controls
// (U+202A-202E, U+2066-2069) and zero-width characters (U+200B-200D,
// U+2060, U+FEFF).
func isBidiOrZeroWidth(r rune) bool {
	switch {
	case r >= 0x202A && r <= 0x202E:
		return true
	case r >= 0x2066 && r <= 0x2069:
		return true
	case r >= 0x200B && r <= 0x200D:
		return true
	case r == 0x2060 || r == 0xFEFF:
		return true
	}
	return false
}

// isStrippedControl reports whether r is a C0/C1 control character that
// should be removed, keeping tab/newline/CR which sanitization normalizes
// separately.
func isStrippedControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	if r >= 0x00 && r <= 0x1F {
		return true
	}
	if r >= 0x7F && r <= 0x9F {
		return true
	}
	return false
}

// SanitizeMessageContent applies the §4.C content sanitization pipeline:
// strip nulls, strip C0/C1 controls (except tab/newline/CR), strip
// bidi-override and zero-width code points, normalize CRLF/CR to LF, and
// trim trailing whitespace per line.
func SanitizeMessageContent(content string) string {
	var b strings.Builder
	b.Grow(len(content))
	for _, r := range content {
		if r == 0 {
			continue
		}
		if isStrippedControl(r) {
			continue
		}
		if isBidiOrZeroWidth(r) {
			continue
		}
		b.WriteRune(r)
	}
	normalized := strings.ReplaceAll(b.String(), "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

// MessageContent validates content AFTER sanitization: non-empty after
// trim, and at most MaxMessageBytes UTF-8 bytes.
func MessageContent(sanitized string) error {
	if strings.TrimSpace(sanitized) == "" {
		return fieldErr("message_content", "must not be empty")
	}
	if len(sanitized) > MaxMessageBytes {
		return fieldErr("message_content", fmt.Sprintf("must be at most %d bytes", MaxMessageBytes))
	}
	return nil
}

// ContainsForbiddenCodePoints reports whether s still contains any of the
// code points §8's universal invariant forbids (used by tests asserting
// the invariant holds after sanitization).
func ContainsForbiddenCodePoints(s string) bool {
	for _, r := range s {
		if r == 0 || isBidiOrZeroWidth(r) {
			return true
		}
		if r >= 0x202A && r <= 0x202E {
			return true
		}
	}
	return false
}

// FilePath validates and resolves a user-supplied path against root,
// rejecting null bytes, normalizing Unicode to NFC, converting backslashes,
// rejecting "..\" traversal patterns, and requiring the resolved absolute
// path (following any symlinks) to stay contained within root. Failure to
// resolve fails closed (returns an error, never a best-guess path).
func FilePath(root, path string) (string, error) {
	if strings.ContainsRune(path, 0) {
		return "", fieldErr("file_path", "must not contain null bytes")
	}

	normalized := norm.NFC.String(path)
	normalized = strings.ReplaceAll(normalized, "\\", "/")

	if strings.Contains(normalized, "../") || strings.HasSuffix(normalized, "..") || strings.Contains(path, `..\`) {
		if containsTraversal(normalized) {
			return "", fieldErr("file_path", "must not contain path traversal sequences")
		}
	}

	var absRoot string
	var err error
	absRoot, err = filepath.Abs(root)
	if err != nil {
		return "", fieldErr("file_path", "project root could not be resolved")
	}

	joined := filepath.Join(absRoot, normalized)
	cleaned := filepath.Clean(joined)

	if cleaned != absRoot && !strings.HasPrefix(cleaned, absRoot+string(filepath.Separator)) {
		return "", fieldErr("file_path", "resolves outside the project root")
	}

	resolved, err := resolveSymlinkedContainment(absRoot, cleaned)
	if err != nil {
		return "", fieldErr("file_path", "could not resolve symlinks: "+err.Error())
	}
	return resolved, nil
}

// containsTraversal checks each path segment for a literal "..".
func containsTraversal(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// Timeout validates a timeout in seconds against spec §4.C: [1, 3600].
func Timeout(seconds int) error {
	if seconds < 1 || seconds > 3600 {
		return fieldErr("timeout", "must be between 1 and 3600 seconds")
	}
	return nil
}

// RetryCount validates a retry count against spec §4.C: [0, 5].
func RetryCount(n int) error {
	if n < 0 || n > 5 {
		return fieldErr("retry_count", "must be between 0 and 5")
	}
	return nil
}

// RateLimit validates rate-limit parameters against spec §4.C.
func RateLimit(maxMessages, windowSeconds int) error {
	if maxMessages < 1 || maxMessages > 1000 {
		return fieldErr("rate_limit.max_messages", "must be between 1 and 1000")
	}
	if windowSeconds < 1 || windowSeconds > 3600 {
		return fieldErr("rate_limit.window", "must be between 1 and 3600 seconds")
	}
	return nil
}

// Port validates a TCP port against spec §4.C: [1, 65535].
func Port(port int) error {
	if port < 1 || port > 65535 {
		return fieldErr("port", "must be between 1 and 65535")
	}
	return nil
}

// HostWarning is returned (never an error) for hosts the spec flags as
// worth a warning: 0.0.0.0, ::, and global-scope IPs.
type HostWarning string

// Host validates a host as an RFC-1123 hostname or parseable IP. It never
// fails validation for 0.0.0.0/::/global IPs — it returns a non-empty
// warning for the caller to log instead, per spec §4.C.
func Host(host string) (HostWarning, error) {
	if host == "" {
		return "", fieldErr("host", "must not be empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		switch {
		case ip.IsUnspecified():
			return HostWarning(fmt.Sprintf("%s is unspecified and binds to all interfaces", host)), nil
		case ip.IsGlobalUnicast() && !ip.IsPrivate() && !ip.IsLoopback():
			return HostWarning(fmt.Sprintf("%s is a global-scope address", host)), nil
		}
		return "", nil
	}
	if !rfc1123Pattern.MatchString(host) {
		return "", fieldErr("host", "must be a valid RFC-1123 hostname or IP address")
	}
	return "", nil
}

var rfc1123Pattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)*$`)

func fieldErr(field, reason string) error {
	return &swarmerr.ValidationError{Field: field, Reason: reason}
}

// IsPrintable is a small helper used by callers that want to reject
// obviously-binary content before it reaches SanitizeMessageContent.
func IsPrintable(r rune) bool {
	return unicode.IsPrint(r) || r == '\n' || r == '\t' || r == '\r'
}
