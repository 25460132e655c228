package executor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	planner "github.com/hanpama/graphstitch/internal/planner"
)

// prepareRootCall builds the call for a root-style step. Steps below the
// root merge into every object at their path; a nested step whose path
// holds no objects is skipped.
func (e *Executor) prepareRootCall(step *planner.Step) *call {
	var origins []Path
	if len(step.Path) == 0 {
		origins = []Path{{}}
	} else {
		origins = e.gatherOrigins(step.Path, step.TypeCondition)
		if len(origins) == 0 {
			return nil
		}
	}

	names := sortedNames(step.Variables)
	defs := make([]string, 0, len(names))
	vars := make(map[string]any, len(names))
	for _, name := range names {
		defs = append(defs, "$"+name+": "+step.Variables[name])
		if v, ok := e.req.Variables()[name]; ok {
			vars[name] = v
		}
	}

	return &call{
		location:  step.Location,
		document:  e.header(step.OperationType, []*planner.Step{step}, defs) + step.Selections,
		variables: vars,
		steps:     []*planner.Step{step},
		origins:   [][]Path{origins},
	}
}

// prepareResolverCall batches every resolver step of a wave at one location
// into a single query. Step b of the batch is selected as `_<b>_result` for
// list resolvers and as `_<b>_<n>_result` per origin otherwise.
func (e *Executor) prepareResolverCall(location string, steps []*planner.Step) (*call, error) {
	c := &call{location: location, resolver: true, variables: map[string]any{}}

	requestVars := map[string]string{}
	var keyDefs []string
	var fields []string

	for _, step := range steps {
		resolver, ok := e.sg.ResolverByVersion(step.Resolver)
		if !ok {
			return nil, &Error{Message: fmt.Sprintf("Unknown resolver %q for step %d.", step.Resolver, step.Index)}
		}
		origins := e.gatherOrigins(step.Path, step.TypeCondition)
		if len(origins) == 0 {
			continue
		}
		b := len(c.steps)
		c.steps = append(c.steps, step)
		c.resolvers = append(c.resolvers, resolver)
		c.origins = append(c.origins, origins)
		for name, typ := range step.Variables {
			requestVars[name] = typ
		}

		if resolver.List {
			args := make([]string, 0, len(resolver.Arguments))
			for i, arg := range resolver.Arguments {
				if !arg.IsKey() {
					args = append(args, arg.Name+": "+arg.Value.String())
					continue
				}
				name := fmt.Sprintf("_%d_key_%d", b, i)
				keys := make([]any, len(origins))
				for j, origin := range origins {
					keys[j] = arg.Build(e.objectAt(origin))
				}
				c.variables[name] = keys
				keyDefs = append(keyDefs, "$"+name+": "+arg.Type.String())
				args = append(args, arg.Name+": $"+name)
			}
			fields = append(fields, fmt.Sprintf("_%d_result: %s%s %s", b, resolver.Field, argumentList(args), step.Selections))
			continue
		}

		for n, origin := range origins {
			obj := e.objectAt(origin)
			args := make([]string, 0, len(resolver.Arguments))
			for i, arg := range resolver.Arguments {
				if !arg.IsKey() {
					args = append(args, arg.Name+": "+arg.Value.String())
					continue
				}
				name := fmt.Sprintf("_%d_%d_key_%d", b, n, i)
				c.variables[name] = arg.Build(obj)
				keyDefs = append(keyDefs, "$"+name+": "+arg.Type.String())
				args = append(args, arg.Name+": $"+name)
			}
			fields = append(fields, fmt.Sprintf("_%d_%d_result: %s%s %s", b, n, resolver.Field, argumentList(args), step.Selections))
		}
	}
	if len(c.steps) == 0 {
		return nil, nil
	}

	names := sortedNames(requestVars)
	defs := make([]string, 0, len(names)+len(keyDefs))
	for _, name := range names {
		defs = append(defs, "$"+name+": "+requestVars[name])
		if v, ok := e.req.Variables()[name]; ok {
			c.variables[name] = v
		}
	}
	defs = append(defs, keyDefs...)

	c.document = e.header(ast.Query, c.steps, defs) + "{ " + strings.Join(fields, " ") + " }"
	return c, nil
}

// header renders `query Name_1_2($a: T) ` for the given steps. Anonymous
// requests produce anonymous sub-requests.
func (e *Executor) header(op ast.Operation, steps []*planner.Step, defs []string) string {
	var b strings.Builder
	b.WriteString(string(op))
	if name := e.req.OperationName(); name != "" {
		b.WriteByte(' ')
		b.WriteString(name)
		for _, s := range steps {
			fmt.Fprintf(&b, "_%d", s.Index)
		}
	}
	if len(defs) > 0 {
		b.WriteByte('(')
		b.WriteString(strings.Join(defs, ", "))
		b.WriteByte(')')
	}
	b.WriteByte(' ')
	return b.String()
}

func argumentList(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return "(" + strings.Join(args, ", ") + ")"
}

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
