package supervisor

import "strings"

// ShellQuote wraps s in single quotes, escaping embedded quotes, so the
// argument survives sh -c word splitting intact.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n\"'\\$`&|;<>()*?[]#~!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ShellLine joins a binary and its arguments into a single command line
// suitable for sh -c.
func ShellLine(binary string, argv []string) string {
	parts := make([]string, 0, len(argv)+1)
	parts = append(parts, ShellQuote(binary))
	for _, a := range argv {
		parts = append(parts, ShellQuote(a))
	}
	return strings.Join(parts, " ")
}
