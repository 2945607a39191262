package request

import "strings"

// Substitute replaces $NAME and ${NAME} references with values from env.
// NAME is a run of ASCII letters, digits and underscores. References that do not
// resolve, braces with an empty name and unterminated "${" are kept as written.
func Substitute(text string, env map[string]string) string {
	if len(env) == 0 || strings.IndexByte(text, '$') < 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	n := len(text)
	i := 0
	for i < n {
		c := text[i]
		if c != '$' || i+1 >= n {
			b.WriteByte(c)
			i++
			continue
		}

		next := text[i+1]
		switch {
		case next == '{':
			j := scanName(text, i+2)
			if j == i+2 || j >= n || text[j] != '}' {
				b.WriteString(text[i:j])
				i = j
				continue
			}
			if value, ok := env[text[i+2:j]]; ok {
				b.WriteString(value)
			} else {
				b.WriteString(text[i : j+1])
			}
			i = j + 1
		case isNameByte(next):
			j := scanName(text, i+1)
			if value, ok := env[text[i+1:j]]; ok {
				b.WriteString(value)
			} else {
				b.WriteString(text[i:j])
			}
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}

	return b.String()
}

func scanName(s string, from int) int {
	j := from
	for j < len(s) && isNameByte(s[j]) {
		j++
	}
	return j
}

func isNameByte(b byte) bool {
	return b == '_' ||
		(b >= '0' && b <= '9') ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z')
}
