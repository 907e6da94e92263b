package config

import (
	"fmt"
	"regexp"
)

// refPattern matches ${NAME} references.
var refPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Expand returns a copy of c whose string values have every ${NAME}
// replaced by vars' value for NAME. Unknown references are left as-is,
// so a literal "${...}" survives when nothing defines it.
//
// This lets a committed config file point at secrets kept in the
// environment:
//
//	tavily_api_key: ${TAVILY_KEY}
func (c Config) Expand(vars Config) Config {
	out := make(map[string]any, len(c.data))
	for k, v := range c.data {
		s, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		out[k] = refPattern.ReplaceAllStringFunc(s, func(ref string) string {
			name := ref[2 : len(ref)-1]
			val, found := vars.data[name]
			if !found {
				return ref
			}
			return fmt.Sprintf("%v", val)
		})
	}
	return Config{data: out}
}
