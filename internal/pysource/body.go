package pysource

import "strings"

// HintPlaceholder is the literal token the model sees in place of a body it
// must fill in.
const HintPlaceholder = "... your code goes here ..."

// DefaultEmptyBody is the body text empty_function/empty_class install when
// no other replacement is specified.
const DefaultEmptyBody = "raise NotImplementedError"

// EmptyFunction replaces fn's body, starting after any docstring, with a
// single statement (default "raise NotImplementedError"), indented to the
// column of the function's first original body statement.
func EmptyFunction(text string, fn FuncSpan, body string) string {
	if body == "" {
		body = DefaultEmptyBody
	}
	return spliceBody(text, fn, reindent(body, fn.BodyIndentCol), true)
}

// ReplaceFunction splices newImpl in as fn's body. When preserveDocstring is
// true and fn has a docstring, the docstring is kept and only the
// post-docstring region is replaced; otherwise the entire body (docstring
// included) is replaced. newImpl is re-indented to fn's body column.
func ReplaceFunction(text string, fn FuncSpan, newImpl string, preserveDocstring bool) string {
	implLines := reindent(newImpl, fn.BodyIndentCol)
	return spliceBody(text, fn, implLines, preserveDocstring)
}

// HintFunction returns fn's signature with its body replaced by the literal
// placeholder token, starting after any docstring — the model's target
// template.
func HintFunction(text string, fn FuncSpan) string {
	return spliceBody(text, fn, reindent(HintPlaceholder, fn.BodyIndentCol), true)
}

// EmptyClass applies EmptyFunction to every method of cls in reverse source
// order, so rewriting an earlier method never invalidates the line numbers
// of a later one still to be processed.
func EmptyClass(text string, cls ClassSpan, body string) string {
	out := text
	for i := len(cls.Methods) - 1; i >= 0; i-- {
		out = EmptyFunction(out, cls.Methods[i], body)
	}
	return out
}

// HintClass applies HintFunction to every method of cls in reverse source
// order.
func HintClass(text string, cls ClassSpan) string {
	out := text
	for i := len(cls.Methods) - 1; i >= 0; i-- {
		out = HintFunction(out, cls.Methods[i])
	}
	return out
}

// ReplaceClass splices newImpl in place of the whole class definition,
// replacing the span starting at the class's first decorator (if any)
// through its last line.
// newImpl is re-indented to the class's own indent column.
func ReplaceClass(text string, cls ClassSpan, newImpl string) string {
	lines := splitLines(text)
	implLines := reindent(newImpl, cls.IndentCol)
	return joinLines(spliceRange(lines, cls.Target.StartLine, cls.Target.EndLine, implLines))
}

// GetSignatureBody extracts fn's current post-docstring body text, dedented
// to column zero. Feeding the result back into ReplaceFunction with
// preserveDocstring=true reconstructs the original text byte-for-byte
//.
func GetSignatureBody(text string, fn FuncSpan) string {
	lines := splitLines(text)

	start := fn.SignatureEndLine + 1
	if fn.DocstringEndLine > 0 {
		start = fn.DocstringEndLine + 1
	}
	if start > fn.Target.EndLine || start > len(lines) {
		return ""
	}
	body := lines[start-1 : fn.Target.EndLine]

	prefix := strings.Repeat(" ", fn.BodyIndentCol)
	out := make([]string, len(body))
	for i, l := range body {
		out[i] = strings.TrimPrefix(l, prefix)
	}
	return joinLines(out)
}

// spliceBody replaces the region of fn's body from (after any docstring, if
// afterDocstring is true and fn has one) through fn's last line with
// newBody, a slice of already-indented lines.
func spliceBody(text string, fn FuncSpan, newBody []string, afterDocstring bool) string {
	lines := splitLines(text)

	start := fn.SignatureEndLine + 1 // first body statement's line
	if afterDocstring && fn.DocstringEndLine > 0 {
		start = fn.DocstringEndLine + 1
	}
	if start > fn.Target.EndLine {
		// Docstring is the entire body; append after it rather than deleting
		// nothing.
		return joinLines(spliceRange(lines, fn.Target.EndLine+1, fn.Target.EndLine, newBody))
	}
	return joinLines(spliceRange(lines, start, fn.Target.EndLine, newBody))
}

// spliceRange replaces lines[startLine..endLine] (1-indexed, inclusive)
// with replacement, leaving everything else untouched.
func spliceRange(lines []string, startLine, endLine int, replacement []string) []string {
	if startLine < 1 {
		startLine = 1
	}
	before := lines
	if startLine-1 <= len(lines) {
		before = lines[:startLine-1]
	}
	var after []string
	if endLine < len(lines) {
		after = lines[endLine:]
	}
	out := make([]string, 0, len(before)+len(replacement)+len(after))
	out = append(out, before...)
	out = append(out, replacement...)
	out = append(out, after...)
	return out
}

// reindent strips whatever common leading whitespace newImpl's non-blank
// lines share, then re-prefixes every non-blank line with col spaces.
func reindent(newImpl string, col int) []string {
	lines := strings.Split(strings.TrimRight(newImpl, "\n"), "\n")

	minIndent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		indent := len(l) - len(strings.TrimLeft(l, " \t"))
		if minIndent == -1 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent < 0 {
		minIndent = 0
	}

	prefix := strings.Repeat(" ", col)
	out := make([]string, len(lines))
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			out[i] = ""
			continue
		}
		trimmed := l
		if len(l) >= minIndent {
			trimmed = l[minIndent:]
		}
		out[i] = prefix + trimmed
	}
	return out
}

func splitLines(text string) []string {
	return strings.Split(text, "\n")
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
