// Package config handles YAML config file loading for deckhand run.
package config

import (
	"os"
	"regexp"
)

// envVarPattern recognizes the two substitution forms in deckhand.yaml:
// ${VAR} (env value, or empty when unset) and ${VAR:-default} (env value,
// or the literal default when unset/empty).
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes ${VAR} and ${VAR:-default} references in input with
// environment variable values.
//
// An unset variable without a default becomes the empty string rather than
// an error; required secrets (e.g. the collaborator API key) are caught by
// downstream validation instead.
func ExpandEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}

		varName := groups[1]
		value, ok := os.LookupEnv(varName)
		if ok && value != "" {
			return value
		}

		if len(groups) >= 3 && groups[2] != "" {
			return groups[2]
		}

		return ""
	})
}
