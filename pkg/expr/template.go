package expr

import "strings"

// RenderTemplate substitutes `{expr}` segments in source with the rendered result of
// evaluating expr as a value expression bound to the given level. Literal text outside
// braces passes through unchanged. A malformed or unbound substitution degrades to
// leaving the raw `{expr}` text in place rather than failing the whole template, the
// same degradation the translation resolver applies to an unrenderable translation.
func RenderTemplate(source string, level int) string {
	var sb strings.Builder
	i := 0
	for i < len(source) {
		c := source[i]
		if c != '{' {
			sb.WriteByte(c)
			i++
			continue
		}
		end := strings.IndexByte(source[i:], '}')
		if end < 0 {
			sb.WriteString(source[i:])
			break
		}
		inner := source[i+1 : i+end]
		value, err := EvalValueExpression(inner, level)
		if err != nil {
			sb.WriteString(source[i : i+end+1])
		} else {
			sb.WriteString(value.Render())
		}
		i += end + 1
	}
	return sb.String()
}
