package vm

import (
	"strconv"
	"strings"

	"github.com/chazu/yarnvm/pkg/value"
)

// FormatTemplate replaces {0}, {1}, ... markers in template with the text
// of the matching substitution. Markers without a substitution are left as
// they are.
func FormatTemplate(template string, subs []value.Value) string {
	if len(subs) == 0 || !strings.Contains(template, "{") {
		return template
	}
	var sb strings.Builder
	sb.Grow(len(template))
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c == '{' {
			if end := strings.IndexByte(template[i+1:], '}'); end > 0 {
				if n, err := strconv.Atoi(template[i+1 : i+1+end]); err == nil && n >= 0 && n < len(subs) {
					sb.WriteString(subs[n].AsString())
					i += end + 1
					continue
				}
			}
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
