package executor

import (
	"fmt"
	"regexp"
	"strconv"

	supergraph "github.com/hanpama/graphstitch/internal/supergraph"
)

// resultAlias matches the batch aliases of a resolver call:
// `_<b>_result` for list resolvers and `_<b>_<n>_result` otherwise.
var resultAlias = regexp.MustCompile(`^_(\d+)(?:_(\d+))?_result$`)

func (e *Executor) mergeRootCall(c *call) {
	if c.err != nil {
		e.errors = append(e.errors, subrequestError(c.location, c.err))
		return
	}
	if data, ok := c.result.Data.(map[string]any); ok {
		for i, origin := range c.origins[0] {
			obj := e.objectAt(origin)
			if obj == nil {
				continue
			}
			for k, v := range data {
				if i > 0 {
					v = clone(v)
				}
				obj[k] = v
			}
		}
	}
	for _, gqlErr := range c.result.Errors {
		rest := normalizePath(gqlErr.Path)
		if len(rest) == 0 {
			gqlErr.Path = nil
			e.errors = append(e.errors, gqlErr)
			continue
		}
		for _, origin := range c.origins[0] {
			repathed := gqlErr
			repathed.Path = join(origin, rest)
			e.errors = append(e.errors, repathed)
		}
	}
}

func (e *Executor) mergeResolverCall(c *call) {
	if c.err != nil {
		e.errors = append(e.errors, subrequestError(c.location, c.err))
		return
	}
	data, _ := c.result.Data.(map[string]any)
	for b, origins := range c.origins {
		if c.resolvers[b].List {
			results, _ := data[fmt.Sprintf("_%d_result", b)].([]any)
			for j, origin := range origins {
				if j < len(results) {
					e.mergeObject(origin, results[j])
				}
			}
			continue
		}
		for n, origin := range origins {
			e.mergeObject(origin, data[fmt.Sprintf("_%d_%d_result", b, n)])
		}
	}
	for _, gqlErr := range c.result.Errors {
		gqlErr.Path = e.repath(c, normalizePath(gqlErr.Path))
		e.errors = append(e.errors, gqlErr)
	}
}

func (e *Executor) mergeObject(origin Path, v any) {
	src, ok := v.(map[string]any)
	if !ok {
		return
	}
	obj := e.objectAt(origin)
	if obj == nil {
		return
	}
	for k, v := range src {
		obj[k] = v
	}
}

// repath rewrites a location error path that starts at a batch alias into
// the client path of the origin it was resolved for. An error on a whole
// list result belongs to its origin when there is only one. Paths that do
// not start at a known alias are returned unchanged.
func (e *Executor) repath(c *call, path Path) Path {
	if len(path) == 0 {
		return nil
	}
	alias, ok := path[0].(string)
	if !ok {
		return path
	}
	m := resultAlias.FindStringSubmatch(alias)
	if m == nil {
		return path
	}
	b, _ := strconv.Atoi(m[1])
	if b >= len(c.origins) {
		return path
	}
	origins := c.origins[b]
	rest := path[1:]
	if m[2] != "" {
		n, _ := strconv.Atoi(m[2])
		if n >= len(origins) {
			return path
		}
		return join(origins[n], rest)
	}
	if len(rest) == 0 {
		if len(origins) == 1 {
			return join(origins[0], rest)
		}
		return path
	}
	j, ok := rest[0].(int)
	if !ok || j < 0 || j >= len(origins) {
		return path
	}
	return join(origins[j], rest[1:])
}

// gatherOrigins walks the aggregate data along a path of response keys and
// returns the path of every object found, flattening lists. With a type
// condition, objects whose exported typename differs are left out.
func (e *Executor) gatherOrigins(keys []string, typeCondition string) []Path {
	current := []Path{{}}
	for _, key := range keys {
		var next []Path
		for _, p := range current {
			obj := e.objectAt(p)
			if obj == nil {
				continue
			}
			next = appendObjects(next, join(p, Path{key}), obj[key])
		}
		current = next
	}
	if typeCondition == "" {
		return current
	}
	filtered := current[:0]
	for _, p := range current {
		if typename, ok := e.objectAt(p)[supergraph.TypenameExport].(string); ok && typename != typeCondition {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered
}

func appendObjects(out []Path, p Path, v any) []Path {
	switch x := v.(type) {
	case map[string]any:
		out = append(out, p)
	case []any:
		for i, item := range x {
			out = appendObjects(out, join(p, Path{i}), item)
		}
	}
	return out
}

func (e *Executor) objectAt(p Path) map[string]any {
	var cur any = e.data
	for _, el := range p {
		switch k := el.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil
			}
			cur = m[k]
		case int:
			l, ok := cur.([]any)
			if !ok || k < 0 || k >= len(l) {
				return nil
			}
			cur = l[k]
		default:
			return nil
		}
	}
	m, _ := cur.(map[string]any)
	return m
}

func join(a, b Path) Path {
	out := make(Path, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// normalizePath turns JSON numbers into int list indices.
func normalizePath(p Path) Path {
	if len(p) == 0 {
		return nil
	}
	out := make(Path, len(p))
	for i, el := range p {
		switch v := el.(type) {
		case float64:
			out[i] = int(v)
		case int64:
			out[i] = int(v)
		default:
			out[i] = el
		}
	}
	return out
}

func clone(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = clone(v)
		}
		return m
	case []any:
		l := make([]any, len(x))
		for i, v := range x {
			l[i] = clone(v)
		}
		return l
	default:
		return v
	}
}

func subrequestError(location string, err error) GraphQLError {
	return GraphQLError{
		Message: err.Error(),
		Extensions: map[string]any{
			"code":     "SUBREQUEST_FAILED",
			"location": location,
		},
	}
}
