package logging

import (
	"regexp"
	"strings"
)

// sensitivePatterns contains regex patterns for secrets that may leak into
// error strings returned by providers.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|auth[_-]?token|access[_-]?token|bearer|password)[=:\s]+["']?([^\s"'&]+)["']?`),
	regexp.MustCompile(`(sk-[A-Za-z0-9]{20,})`),      // OpenAI keys
	regexp.MustCompile(`(SG\.[A-Za-z0-9_\-.]{20,})`), // SendGrid keys
}

// MaskSecret keeps the first and last two characters of a credential.
func MaskSecret(s string) string {
	if len(s) <= 6 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// MaskRecipient hides most of a phone number or email address.
func MaskRecipient(r string) string {
	if at := strings.IndexByte(r, '@'); at > 0 {
		local := r[:at]
		if len(local) <= 1 {
			return "*" + r[at:]
		}
		return local[:1] + strings.Repeat("*", len(local)-1) + r[at:]
	}
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + r[len(r)-4:]
}

// MaskRecipients masks a recipient list.
func MaskRecipients(rs []string) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = MaskRecipient(r)
	}
	return out
}

// Redact masks credentials embedded in free text such as provider errors.
func Redact(input string) string {
	result := input
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			sub := pattern.FindStringSubmatch(match)
			if len(sub) >= 3 {
				return strings.Replace(match, sub[2], MaskSecret(sub[2]), 1)
			}
			return MaskSecret(match)
		})
	}
	return result
}
