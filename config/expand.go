package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandEnv replaces ${VAR} and ${VAR:-default} in a config file with
// values from the environment. $$ is a literal $. A ${VAR} without a
// default whose variable is unset is an error.
func expandEnv(data []byte) ([]byte, error) {
	const dollar = "\x00QUERYSTATS_DOLLAR\x00"
	s := strings.ReplaceAll(string(data), "$$", dollar)

	var missing []string
	s = envRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v, ok := os.LookupEnv(m[1]); ok {
			return v
		}
		if m[2] != "" {
			return m[3]
		}
		if !slices.Contains(missing, m[1]) {
			missing = append(missing, m[1])
		}
		return ""
	})
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("%w: missing environment variables: %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return []byte(strings.ReplaceAll(s, dollar, "$")), nil
}
