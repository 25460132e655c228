// Package request wraps one client operation against a supergraph: parsing,
// operation selection, validation, variable coercion and @skip/@include
// normalization.
package request

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"

	language "github.com/hanpama/graphstitch/internal/language"
	schema "github.com/hanpama/graphstitch/internal/schema"
	supergraph "github.com/hanpama/graphstitch/internal/supergraph"
)

type Request struct {
	supergraph    *supergraph.Supergraph
	source        string
	operationName string
	rawVariables  map[string]any

	document  *ast.QueryDocument
	operation *ast.OperationDefinition
	fragments ast.FragmentDefinitionList
	variables map[string]any
	prepared  bool
	digest    string
}

type Option func(*Request)

func WithOperationName(name string) Option {
	return func(r *Request) { r.operationName = name }
}

func WithVariables(vars map[string]any) Option {
	return func(r *Request) { r.rawVariables = vars }
}

// New parses the query and selects the operation to run.
func New(sg *supergraph.Supergraph, query string, opts ...Option) (*Request, error) {
	r := &Request{supergraph: sg, source: query}
	for _, o := range opts {
		o(r)
	}
	doc, err := language.ParseQuery(query)
	if err != nil {
		return nil, err
	}
	r.document = doc
	r.fragments = doc.Fragments

	switch {
	case r.operationName != "":
		r.operation = doc.Operations.ForName(r.operationName)
		if r.operation == nil {
			return nil, gqlerror.Errorf("Unknown operation named %q.", r.operationName)
		}
	case len(doc.Operations) == 1:
		r.operation = doc.Operations[0]
	case len(doc.Operations) == 0:
		return nil, gqlerror.Errorf("No operation provided.")
	default:
		return nil, gqlerror.Errorf("An operation name is required when sending multiple operations.")
	}
	if r.RootType() == nil {
		return nil, gqlerror.Errorf("Schema does not support %s operations.", r.operation.Operation)
	}
	r.variables = r.rawVariables
	if r.variables == nil {
		r.variables = map[string]any{}
	}
	return r, nil
}

func (r *Request) Supergraph() *supergraph.Supergraph { return r.supergraph }

func (r *Request) Source() string { return r.source }

func (r *Request) Document() *ast.QueryDocument { return r.document }

// Operation returns the selected operation. After Prepare it is the
// normalized copy.
func (r *Request) Operation() *ast.OperationDefinition { return r.operation }

func (r *Request) OperationName() string { return r.operation.Name }

func (r *Request) OperationType() ast.Operation { return r.operation.Operation }

// RootType is the schema type at the root of the operation.
func (r *Request) RootType() *ast.Definition {
	return schema.RootType(r.supergraph.Schema(), r.operation.Operation)
}

// Fragments returns the fragment definitions, normalized after Prepare.
func (r *Request) Fragments() ast.FragmentDefinitionList { return r.fragments }

func (r *Request) Fragment(name string) *ast.FragmentDefinition { return r.fragments.ForName(name) }

func (r *Request) VariableDefinitions() ast.VariableDefinitionList {
	return r.operation.VariableDefinitions
}

// Variables returns the request variables, coerced with defaults after
// Prepare.
func (r *Request) Variables() map[string]any { return r.variables }

func (r *Request) Prepared() bool { return r.prepared }

// Validate checks the document against the supergraph schema.
func (r *Request) Validate() gqlerror.List {
	return validator.ValidateWithRules(r.supergraph.Schema(), r.document, nil)
}

// Prepare coerces variables and removes selections excluded by @skip or
// @include. It is a no-op on a prepared request.
func (r *Request) Prepare() error {
	if r.prepared {
		return nil
	}
	validator.Walk(r.supergraph.Schema(), r.document, &validator.Events{})

	vars, err := validator.VariableValues(r.supergraph.Schema(), r.operation, r.rawVariables)
	if err != nil {
		return err
	}
	r.variables = vars

	op := *r.operation
	op.SelectionSet = normalize(op.SelectionSet, vars)
	r.operation = &op

	fragments := make(ast.FragmentDefinitionList, 0, len(r.document.Fragments))
	for _, f := range r.document.Fragments {
		cp := *f
		cp.SelectionSet = normalize(f.SelectionSet, vars)
		fragments = append(fragments, &cp)
	}
	r.fragments = fragments
	r.prepared = true
	r.digest = ""
	return nil
}

// Digest identifies the normalized operation. Requests with the same digest
// plan identically.
func (r *Request) Digest() string {
	if r.digest != "" {
		return r.digest
	}
	doc := &ast.QueryDocument{
		Operations: ast.OperationList{r.operation},
		Fragments:  r.fragments,
	}
	sum := xxhash.Sum64String(r.operation.Name + "\n" + language.PrintDocument(doc))
	r.digest = strconv.FormatUint(sum, 16)
	return r.digest
}

// normalize rebuilds a selection set without the nodes excluded by @skip or
// @include and without those directives.
func normalize(set ast.SelectionSet, vars map[string]any) ast.SelectionSet {
	if len(set) == 0 {
		return set
	}
	out := make(ast.SelectionSet, 0, len(set))
	for _, sel := range set {
		switch node := sel.(type) {
		case *ast.Field:
			dirs, keep := evalDirectives(node.Directives, vars)
			if !keep {
				continue
			}
			cp := *node
			cp.Directives = dirs
			cp.SelectionSet = normalize(node.SelectionSet, vars)
			out = append(out, &cp)
		case *ast.InlineFragment:
			dirs, keep := evalDirectives(node.Directives, vars)
			if !keep {
				continue
			}
			cp := *node
			cp.Directives = dirs
			cp.SelectionSet = normalize(node.SelectionSet, vars)
			out = append(out, &cp)
		case *ast.FragmentSpread:
			dirs, keep := evalDirectives(node.Directives, vars)
			if !keep {
				continue
			}
			cp := *node
			cp.Directives = dirs
			out = append(out, &cp)
		default:
			out = append(out, sel)
		}
	}
	return out
}

func evalDirectives(dirs ast.DirectiveList, vars map[string]any) (ast.DirectiveList, bool) {
	if len(dirs) == 0 {
		return dirs, true
	}
	var out ast.DirectiveList
	for _, d := range dirs {
		switch d.Name {
		case "skip":
			if directiveIf(d, vars) {
				return nil, false
			}
		case "include":
			if !directiveIf(d, vars) {
				return nil, false
			}
		default:
			out = append(out, d)
		}
	}
	return out, true
}

func directiveIf(d *ast.Directive, vars map[string]any) bool {
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false
	}
	v, err := arg.Value.Value(vars)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}
