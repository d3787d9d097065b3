package ecs

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rotisserie/eris"
)

// SearchParam contains parameters for a search. The where clause is an expr language expression
// evaluated against each entity's component map, see https://expr-lang.org/docs/getting-started.
type SearchParam struct {
	Find  []string    // Component names to search for
	Match SearchMatch // How Find is matched against archetypes
	Where string      // Optional boolean filter, e.g. "Position.X > 0 && _id != 3"
}

// SearchMatch is the type of match to use for the search.
type SearchMatch string

const (
	// MatchExact matches entities that have exactly the specified components. Tags are ignored.
	MatchExact SearchMatch = "exact"
	// MatchContains matches entities that have at least the specified components.
	MatchContains SearchMatch = "contains"
)

func (p *SearchParam) compile() (*vm.Program, error) {
	if len(p.Find) == 0 {
		return nil, eris.New("component list cannot be empty")
	}
	if p.Match != MatchExact && p.Match != MatchContains {
		return nil, eris.Errorf("invalid `match` value: must be either '%s' or '%s'", MatchExact, MatchContains)
	}
	if p.Where == "" {
		return nil, nil //nolint:nilnil // no filter
	}
	filter, err := expr.Compile(p.Where, expr.AsBool())
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse where clause")
	}
	return filter, nil
}

// Search returns the entities matching params as maps of component name to component value, with the
// entity id under "_id".
func (s *EntityStore) Search(params SearchParam) ([]map[string]any, error) {
	filter, err := params.compile()
	if err != nil {
		return nil, eris.Wrap(err, "invalid search params")
	}

	var find ComponentTypes
	for _, name := range params.Find {
		ct, ok := s.schema.ComponentTypeByName(name)
		if !ok {
			return nil, eris.Wrapf(ErrUnknownType, "component %s not registered", name)
		}
		find.Add(ct)
	}

	results := make([]map[string]any, 0)
	for _, arch := range s.Query(find, ComponentTypes{}).Archetypes() {
		if params.Match == MatchExact && arch.components != find {
			continue
		}
		for row, id := range arch.entityIDs {
			entity := entityMap(arch, id, row)
			if filter != nil {
				output, err := expr.Run(filter, entity)
				if err != nil {
					return nil, eris.Wrap(err, "failed to run filter expression")
				}
				// Compiling without an environment can't prove field access returns a bool.
				matched, ok := output.(bool)
				if !ok {
					return nil, eris.New("invalid where clause")
				}
				if !matched {
					continue
				}
			}
			results = append(results, entity)
		}
	}
	return results, nil
}

func entityMap(arch *Archetype, id, row int) map[string]any {
	data := make(map[string]any, len(arch.heaps)+1)
	data["_id"] = id
	for _, h := range arch.heaps {
		data[h.Type().name] = h.Get(row)
	}
	return data
}
