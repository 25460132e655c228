package language

import (
	"fmt"
	"strings"
)

// Print renders a selection set on a single line:
//
//	{ widget(id: "1") { title _export_id: id } }
//
// The output is stable for a given AST, which makes it suitable for plan
// records, sub-request documents and request digests.
func Print(set SelectionSet) string {
	var b strings.Builder
	writeSelectionSet(&b, set)
	return b.String()
}

// PrintSelection renders one selection node.
func PrintSelection(sel Selection) string {
	var b strings.Builder
	writeSelection(&b, sel)
	return b.String()
}

// PrintDocument renders every operation followed by every fragment
// definition, one per line.
func PrintDocument(doc *QueryDocument) string {
	var b strings.Builder
	for i, op := range doc.Operations {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeOperation(&b, op)
	}
	for _, frag := range doc.Fragments {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("fragment ")
		b.WriteString(frag.Name)
		b.WriteString(" on ")
		b.WriteString(frag.TypeCondition)
		writeDirectives(&b, frag.Directives)
		b.WriteByte(' ')
		writeSelectionSet(&b, frag.SelectionSet)
	}
	return b.String()
}

// PrintOperation renders a single operation definition.
func PrintOperation(op *OperationDefinition) string {
	var b strings.Builder
	writeOperation(&b, op)
	return b.String()
}

// PrintVariableDefinition renders `$name: Type [= default]`.
func PrintVariableDefinition(def *VariableDefinition) string {
	s := "$" + def.Variable + ": " + def.Type.String()
	if def.DefaultValue != nil {
		s += " = " + def.DefaultValue.String()
	}
	return s
}

func writeOperation(b *strings.Builder, op *OperationDefinition) {
	b.WriteString(string(op.Operation))
	if op.Name != "" {
		b.WriteByte(' ')
		b.WriteString(op.Name)
	}
	if len(op.VariableDefinitions) > 0 {
		b.WriteByte('(')
		for i, def := range op.VariableDefinitions {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(PrintVariableDefinition(def))
		}
		b.WriteByte(')')
	}
	writeDirectives(b, op.Directives)
	b.WriteByte(' ')
	writeSelectionSet(b, op.SelectionSet)
}

func writeSelectionSet(b *strings.Builder, set SelectionSet) {
	if len(set) == 0 {
		return
	}
	b.WriteString("{ ")
	for i, sel := range set {
		if i > 0 {
			b.WriteByte(' ')
		}
		writeSelection(b, sel)
	}
	b.WriteString(" }")
}

func writeSelection(b *strings.Builder, sel Selection) {
	switch node := sel.(type) {
	case *Field:
		if node.Alias != "" && node.Alias != node.Name {
			b.WriteString(node.Alias)
			b.WriteString(": ")
		}
		b.WriteString(node.Name)
		writeArguments(b, node.Arguments)
		writeDirectives(b, node.Directives)
		if len(node.SelectionSet) > 0 {
			b.WriteByte(' ')
			writeSelectionSet(b, node.SelectionSet)
		}
	case *InlineFragment:
		b.WriteString("...")
		if node.TypeCondition != "" {
			b.WriteString(" on ")
			b.WriteString(node.TypeCondition)
		}
		writeDirectives(b, node.Directives)
		b.WriteByte(' ')
		writeSelectionSet(b, node.SelectionSet)
	case *FragmentSpread:
		b.WriteString("...")
		b.WriteString(node.Name)
		writeDirectives(b, node.Directives)
	default:
		panic(fmt.Errorf("unknown selection type: %T", sel))
	}
}

func writeArguments(b *strings.Builder, args ArgumentList) {
	if len(args) == 0 {
		return
	}
	b.WriteByte('(')
	for i, arg := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(arg.Name)
		b.WriteString(": ")
		b.WriteString(arg.Value.String())
	}
	b.WriteByte(')')
}

func writeDirectives(b *strings.Builder, dirs DirectiveList) {
	for _, dir := range dirs {
		b.WriteString(" @")
		b.WriteString(dir.Name)
		writeArguments(b, dir.Arguments)
	}
}
