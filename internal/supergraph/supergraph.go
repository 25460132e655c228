// Package supergraph holds the merged type system together with the routing
// metadata that says where each field lives and how entities are joined
// across locations.
package supergraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/graphstitch/internal/language"
	schema "github.com/hanpama/graphstitch/internal/schema"
)

// SuperLocation answers introspection fields. It is served in-process
// rather than by a remote location.
const SuperLocation = "__super"

// FieldLocations maps type name to field name to the ordered list of
// locations that can resolve the field. The first location is preferred.
type FieldLocations map[string]map[string][]string

// Supergraph is immutable after New and safe to share between goroutines.
type Supergraph struct {
	schema                  *ast.Schema
	locationsByTypeAndField FieldLocations
	resolversByType         map[string][]*Resolver

	locations               []string
	locationsByType         map[string][]string
	fieldsByTypeAndLocation map[string]map[string][]string
	keysByType              map[string][]*Key
	resolversByVersion      map[string]*Resolver
}

// New builds a supergraph. Resolvers are copied; copies that omit argument
// types or arguments are completed from their field definition on the
// query type and keep the Version of the resolver they came from.
func New(s *ast.Schema, fields FieldLocations, resolvers map[string][]*Resolver) (*Supergraph, error) {
	if s == nil {
		return nil, fmt.Errorf("supergraph: schema is required")
	}
	sg := &Supergraph{
		schema:                  s,
		locationsByTypeAndField: make(FieldLocations, len(fields)),
		resolversByType:         make(map[string][]*Resolver, len(resolvers)),
		locationsByType:         map[string][]string{},
		fieldsByTypeAndLocation: map[string]map[string][]string{},
		keysByType:              map[string][]*Key{},
		resolversByVersion:      map[string]*Resolver{},
	}

	seenLocation := map[string]bool{}
	for typeName, byField := range fields {
		if s.Types[typeName] == nil {
			return nil, fmt.Errorf("supergraph: unknown type %q", typeName)
		}
		cp := make(map[string][]string, len(byField))
		for fieldName, locs := range byField {
			if fieldName != language.TypenameField && schema.Field(s, typeName, fieldName) == nil {
				return nil, fmt.Errorf("supergraph: unknown field %s.%s", typeName, fieldName)
			}
			cp[fieldName] = append([]string(nil), locs...)
			for _, loc := range locs {
				if !seenLocation[loc] {
					seenLocation[loc] = true
					sg.locations = append(sg.locations, loc)
				}
			}
		}
		sg.locationsByTypeAndField[typeName] = cp
	}

	for typeName, list := range resolvers {
		for _, r := range list {
			r = r.clone()
			if err := sg.completeResolver(r); err != nil {
				return nil, err
			}
			sg.resolversByType[typeName] = append(sg.resolversByType[typeName], r)
			sg.resolversByVersion[r.Version] = r
			if !seenLocation[r.Location] {
				seenLocation[r.Location] = true
				sg.locations = append(sg.locations, r.Location)
			}
			if !containsKey(sg.keysByType[typeName], r.Key) {
				sg.keysByType[typeName] = append(sg.keysByType[typeName], r.Key)
			}
		}
	}
	sort.Strings(sg.locations)

	sg.addIntrospection()
	sg.indexTypes()
	return sg, nil
}

func (sg *Supergraph) completeResolver(r *Resolver) error {
	query := sg.schema.Query
	if query == nil {
		return fmt.Errorf("supergraph: resolver %s at %s requires a query type", r.Field, r.Location)
	}
	fieldDef := query.Fields.ForName(r.Field)
	if fieldDef == nil {
		return fmt.Errorf("supergraph: resolver field %q is not defined on %s", r.Field, query.Name)
	}
	if len(r.Arguments) == 0 {
		if len(fieldDef.Arguments) != 1 || len(r.Key.Fields()) != 1 {
			return fmt.Errorf("supergraph: resolver %s at %s needs explicit arguments", r.Field, r.Location)
		}
		args, err := parseArguments(fieldDef.Arguments[0].Name+": $."+r.Key.Fields()[0], "")
		if err != nil {
			return err
		}
		r.Arguments = args
	}
	for _, a := range r.Arguments {
		if a.Type != nil {
			continue
		}
		argDef := fieldDef.Arguments.ForName(a.Name)
		if argDef == nil {
			return fmt.Errorf("supergraph: resolver %s has no argument %q", r.Field, a.Name)
		}
		a.Type = argDef.Type
	}
	return nil
}

// addIntrospection routes __schema, __type and every field of the
// introspection types to SuperLocation. SuperLocation is not listed in
// Locations.
func (sg *Supergraph) addIntrospection() {
	for name, def := range sg.schema.Types {
		if !strings.HasPrefix(name, "__") || (def.Kind != ast.Object && def.Kind != ast.Interface) {
			continue
		}
		byField := make(map[string][]string, len(def.Fields))
		for _, f := range def.Fields {
			byField[f.Name] = []string{SuperLocation}
		}
		sg.locationsByTypeAndField[name] = byField
	}
	query := sg.schema.Query
	if query == nil {
		return
	}
	byField := sg.locationsByTypeAndField[query.Name]
	if byField == nil {
		byField = map[string][]string{}
		sg.locationsByTypeAndField[query.Name] = byField
	}
	for _, name := range []string{"__schema", "__type"} {
		if query.Fields.ForName(name) != nil {
			byField[name] = []string{SuperLocation}
		}
	}
}

// indexTypes derives type-level lookups from field locations. Every
// composite type answers __typename at each location it appears in.
func (sg *Supergraph) indexTypes() {
	for typeName, byField := range sg.locationsByTypeAndField {
		var locs []string
		byLoc := map[string][]string{}
		for _, fieldName := range sortedKeys(byField) {
			for _, loc := range byField[fieldName] {
				locs = appendUnique(locs, loc)
				byLoc[loc] = appendUnique(byLoc[loc], fieldName)
			}
		}
		sg.locationsByType[typeName] = locs
		sg.fieldsByTypeAndLocation[typeName] = byLoc
	}
	for _, def := range sg.schema.Types {
		if def.Kind != ast.Union {
			continue
		}
		var locs []string
		for _, member := range def.Types {
			for _, loc := range sg.locationsByType[member] {
				locs = appendUnique(locs, loc)
			}
		}
		sg.locationsByType[def.Name] = appendAll(sg.locationsByType[def.Name], locs)
	}
	for typeName, locs := range sg.locationsByType {
		sort.Strings(locs)
		byField := sg.locationsByTypeAndField[typeName]
		if byField == nil {
			byField = map[string][]string{}
			sg.locationsByTypeAndField[typeName] = byField
		}
		if _, ok := byField[language.TypenameField]; !ok {
			byField[language.TypenameField] = locs
		}
		byLoc := sg.fieldsByTypeAndLocation[typeName]
		if byLoc == nil {
			byLoc = map[string][]string{}
			sg.fieldsByTypeAndLocation[typeName] = byLoc
		}
		for _, loc := range locs {
			byLoc[loc] = appendUnique(byLoc[loc], language.TypenameField)
		}
	}
}

func (sg *Supergraph) Schema() *ast.Schema { return sg.schema }

// Locations lists every location, sorted.
func (sg *Supergraph) Locations() []string { return sg.locations }

// LocationsForField returns the ordered locations of a field. __typename is
// available wherever its type is.
func (sg *Supergraph) LocationsForField(typeName, fieldName string) []string {
	return sg.locationsByTypeAndField[typeName][fieldName]
}

// LocationsByType returns every location that provides some field of the
// type.
func (sg *Supergraph) LocationsByType(typeName string) []string {
	return sg.locationsByType[typeName]
}

// HasTypeAtLocation reports whether a location provides the type.
func (sg *Supergraph) HasTypeAtLocation(typeName, location string) bool {
	for _, loc := range sg.locationsByType[typeName] {
		if loc == location {
			return true
		}
	}
	return false
}

// FieldsByTypeAndLocation lists the fields of a type that a location
// resolves.
func (sg *Supergraph) FieldsByTypeAndLocation(typeName, location string) []string {
	return sg.fieldsByTypeAndLocation[typeName][location]
}

// HasFieldAtLocation reports whether a field of a type is resolvable at a
// location.
func (sg *Supergraph) HasFieldAtLocation(typeName, fieldName, location string) bool {
	for _, loc := range sg.locationsByTypeAndField[typeName][fieldName] {
		if loc == location {
			return true
		}
	}
	return false
}

// ResolversByType returns the resolvers that join the type.
func (sg *Supergraph) ResolversByType(typeName string) []*Resolver {
	return sg.resolversByType[typeName]
}

// KeysByType returns the distinct keys of a type in declaration order.
func (sg *Supergraph) KeysByType(typeName string) []*Key {
	return sg.keysByType[typeName]
}

// ResolverByVersion finds a resolver by its version digest.
func (sg *Supergraph) ResolverByVersion(version string) (*Resolver, bool) {
	r, ok := sg.resolversByVersion[version]
	return r, ok
}

// possibleKeys returns the key definitions of a type whose top-level fields
// are all resolvable at the location.
func (sg *Supergraph) possibleKeys(typeName, location string) []string {
	var out []string
	for _, k := range sg.keysByType[typeName] {
		ok := true
		for _, f := range k.Fields() {
			if !sg.HasFieldAtLocation(typeName, f, location) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, k.String())
		}
	}
	return out
}

func containsKey(keys []*Key, k *Key) bool {
	for _, existing := range keys {
		if existing.String() == k.String() {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	for _, e := range list {
		if e == v {
			return list
		}
	}
	return append(list, v)
}

func appendAll(list []string, vs []string) []string {
	for _, v := range vs {
		list = appendUnique(list, v)
	}
	return list
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
