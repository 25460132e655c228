package language

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseSelectionSet parses a bare selection set such as `id owner { id }`.
// The braces are optional.
func ParseSelectionSet(source string) (SelectionSet, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: "{" + trimBraces(source) + "}"})
	if err != nil {
		return nil, err
	}
	return doc.Operations[0].SelectionSet, nil
}

// ParseVariableDefinitions parses a comma separated list of `name: Type`
// pairs (without the leading `$`) into variable definitions.
func ParseVariableDefinitions(source string) (VariableDefinitionList, error) {
	if source == "" {
		return nil, nil
	}
	doc, err := parser.ParseQuery(&ast.Source{Input: "query(" + dollarize(source) + ") { __typename }"})
	if err != nil {
		return nil, err
	}
	return doc.Operations[0].VariableDefinitions, nil
}

// ResponseKey is the key a field writes into its parent result object.
func ResponseKey(f *Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

func trimBraces(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	if end-start >= 2 && s[start] == '{' && s[end-1] == '}' {
		return s[start+1 : end-1]
	}
	return s[start:end]
}

func dollarize(s string) string {
	out := make([]byte, 0, len(s)+4)
	expectName := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if expectName && !isSpace(c) && c != ',' {
			if c != '$' {
				out = append(out, '$')
			}
			expectName = false
		}
		if c == ',' {
			expectName = true
		}
		out = append(out, c)
	}
	return string(out)
}

func isSpace(c byte) bool { return c == ' ' || c == '\n' || c == '\t' || c == '\r' }
