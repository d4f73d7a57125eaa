package utils

import "strings"

// ResolveCommandTemplate expands $name placeholders inside every element of
// a command argument template. Placeholders may be embedded in larger
// arguments, e.g. "$user@$host:path".
func ResolveCommandTemplate(template []string, vars map[string]string) []string {
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "$"+name, value)
	}
	replacer := strings.NewReplacer(pairs...)

	resolved := make([]string, len(template))
	for i, arg := range template {
		resolved[i] = replacer.Replace(arg)
	}
	return resolved
}
