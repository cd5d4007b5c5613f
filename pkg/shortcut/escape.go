package shortcut

import (
	"strings"
)

// shellMeta are the characters a POSIX shell would interpret.
const shellMeta = " \t\n\"'<>~|&;$*?#()`"

// EscapeExecArg escapes one argument for a desktop entry Exec= line. The
// value is unescaped twice before use: once as a desktop entry string and
// once as a shell-style word, so backslashes are quadrupled and
// metacharacters get a doubled backslash.
func EscapeExecArg(arg string) string {
	var out strings.Builder
	for _, r := range arg {
		switch {
		case r == '\\':
			out.WriteString(`\\\\`)
		case strings.ContainsRune(shellMeta, r):
			out.WriteString(`\\`)
			out.WriteRune(r)
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}

// EscapeShell escapes one argument for a generated shell script.
func EscapeShell(arg string) string {
	var out strings.Builder
	for _, r := range arg {
		if r == '\\' || strings.ContainsRune(shellMeta, r) {
			out.WriteRune('\\')
		}
		out.WriteRune(r)
	}
	return out.String()
}

// EscapeArgs escapes each argument with escape and joins them with spaces.
func EscapeArgs(args []string, escape func(string) string) string {
	escaped := make([]string, len(args))
	for i, arg := range args {
		escaped[i] = escape(arg)
	}
	return strings.Join(escaped, " ")
}

// SplitWindowsArgs splits a Windows command line the way the C runtime
// does: whitespace separates arguments, double quotes group, and
// backslashes are literal unless they precede a quote.
func SplitWindowsArgs(cmdline string) []string {
	var args []string
	var current strings.Builder
	inQuotes, inArg := false, false

	for i := 0; i < len(cmdline); i++ {
		c := cmdline[i]
		switch {
		case c == '\\':
			n := 0
			for i < len(cmdline) && cmdline[i] == '\\' {
				n++
				i++
			}
			if i < len(cmdline) && cmdline[i] == '"' {
				current.WriteString(strings.Repeat(`\`, n/2))
				if n%2 == 1 {
					current.WriteByte('"')
				} else {
					i--
				}
			} else {
				current.WriteString(strings.Repeat(`\`, n))
				i--
			}
			inArg = true
		case c == '"':
			if inQuotes && i+1 < len(cmdline) && cmdline[i+1] == '"' {
				current.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
			inArg = true
		case (c == ' ' || c == '\t') && !inQuotes:
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteByte(c)
			inArg = true
		}
	}
	if inArg {
		args = append(args, current.String())
	}
	return args
}

// QuoteWindowsArg quotes arg for a Windows command line when needed.
func QuoteWindowsArg(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\"") {
		return arg
	}
	var out strings.Builder
	out.WriteByte('"')
	backslashes := 0
	for i := 0; i < len(arg); i++ {
		c := arg[i]
		switch c {
		case '\\':
			backslashes++
		case '"':
			out.WriteString(strings.Repeat(`\`, backslashes*2+1))
			out.WriteByte('"')
			backslashes = 0
			continue
		default:
			out.WriteString(strings.Repeat(`\`, backslashes))
			backslashes = 0
			out.WriteByte(c)
			continue
		}
	}
	out.WriteString(strings.Repeat(`\`, backslashes*2))
	out.WriteByte('"')
	return out.String()
}
