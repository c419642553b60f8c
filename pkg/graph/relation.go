package graph

import (
	"sort"
	"strings"

	"github.com/OFFIS-RIT/lumen/backend/pkg/common"
)

const defaultRelationType = "related_to"

// MergeRelations resolves relation endpoints against the merged entities by
// name or alias and merges relations with the same endpoints and type the
// same way entities are merged. Unresolved and self relations are dropped,
// as are merged relations below threshold.
func MergeRelations(
	raw []common.RawRelationExtraction,
	entities []common.KnowledgeEntity,
	threshold float64,
) []common.KnowledgeRelation {
	index := entityNameIndex(entities)

	type group struct {
		from, to, typ string
		members       []common.RawRelationExtraction
	}
	groups := map[string]*group{}
	var order []string

	for _, r := range raw {
		from, okFrom := index[normalizeName(r.From)]
		to, okTo := index[normalizeName(r.To)]
		if !okFrom || !okTo || from == to {
			continue
		}
		typ := normalizeRelationType(r.Type)
		id := relationID(from, typ, to)
		g, ok := groups[id]
		if !ok {
			g = &group{from: from, to: to, typ: typ}
			groups[id] = g
			order = append(order, id)
		}
		g.members = append(g.members, r)
	}

	relations := make([]common.KnowledgeRelation, 0, len(groups))
	for _, id := range order {
		g := groups[id]
		maxConf := 0.0
		longest := ""
		sources := []string{}
		seen := map[string]struct{}{}
		for _, m := range g.members {
			maxConf = max(maxConf, m.Conf)
			if d := strings.TrimSpace(m.Desc); len(d) > len(longest) {
				longest = d
			}
			for _, s := range m.SourceChunks {
				if _, ok := seen[s]; !ok {
					seen[s] = struct{}{}
					sources = append(sources, s)
				}
			}
		}
		conf := mergedConfidence(maxConf, len(g.members))
		if conf < threshold {
			continue
		}
		props := map[string]any{}
		if longest != "" {
			props["description"] = longest
		}
		relations = append(relations, common.KnowledgeRelation{
			ID:           id,
			From:         g.from,
			To:           g.to,
			Type:         g.typ,
			Properties:   props,
			SourceChunks: sources,
			Confidence:   conf,
		})
	}

	sort.Slice(relations, func(i, j int) bool { return relations[i].ID < relations[j].ID })
	return relations
}

// entityNameIndex maps normalized names, then aliases, to entity ids. Names
// win over aliases and earlier ids win over later ones.
func entityNameIndex(entities []common.KnowledgeEntity) map[string]string {
	sorted := make([]common.KnowledgeEntity, len(entities))
	copy(sorted, entities)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	index := map[string]string{}
	for _, e := range sorted {
		if key := normalizeName(e.Name); key != "" {
			if _, ok := index[key]; !ok {
				index[key] = e.ID
			}
		}
	}
	for _, e := range sorted {
		for _, a := range e.Aliases {
			if key := normalizeName(a); key != "" {
				if _, ok := index[key]; !ok {
					index[key] = e.ID
				}
			}
		}
	}
	return index
}

func normalizeRelationType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	t = strings.Join(strings.FieldsFunc(t, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
	if t == "" {
		return defaultRelationType
	}
	return t
}

func relationID(from, typ, to string) string {
	return from + "__" + typ + "__" + to
}
