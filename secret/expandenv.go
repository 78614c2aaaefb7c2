package secret

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var refPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandStrict expands `${VAR}` references in s from the given provider.
//
// Unlike os.ExpandEnv, a reference to a missing variable is an error instead
// of silently expanding to nothing, so a misconfigured credential fails at
// startup rather than at the first backend call. `$$` emits a literal `$`.
func ExpandStrict(s string, provider Provider) (string, error) {
	const escaped = "\x00querybridge_dollar\x00"
	s = strings.ReplaceAll(s, "$$", escaped)

	missing := make(map[string]struct{})
	expanded := refPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		value, err := provider.Resolve(context.Background(), name)
		if err != nil {
			missing[name] = struct{}{}
			return ""
		}
		return value
	})

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for n := range missing {
			names = append(names, n)
		}
		sort.Strings(names)
		return "", fmt.Errorf("secret: missing required environment variables: %s", strings.Join(names, ", "))
	}

	return strings.ReplaceAll(expanded, escaped, "$"), nil
}
