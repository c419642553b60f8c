package graph

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/OFFIS-RIT/lumen/backend/pkg/common"
)

// graphVersion is bumped when the snapshot layout changes.
const graphVersion = 1

// KnowledgeGraph is the read-only result of one pipeline run. Its maps are
// only reachable through the accessor methods, which return copies.
type KnowledgeGraph struct {
	entities  map[string]common.KnowledgeEntity
	relations map[string]common.KnowledgeRelation
	metadata  common.GraphMetadata
}

// Assemble builds a graph from deduplicated entities and merged relations.
// Entities are keyed by "{type}_{normalized name}"; a repeated key replaces
// the earlier entity. Relations whose endpoints are not in the graph are
// dropped. Every entity's LastUpdated is set to meta.LastUpdated.
func Assemble(
	entities []common.KnowledgeEntity,
	relations []common.KnowledgeRelation,
	meta common.GraphMetadata,
) *KnowledgeGraph {
	if meta.LastUpdated.IsZero() {
		meta.LastUpdated = time.Now().UTC()
	}
	if meta.Version == 0 {
		meta.Version = graphVersion
	}

	g := &KnowledgeGraph{
		entities:  make(map[string]common.KnowledgeEntity, len(entities)),
		relations: make(map[string]common.KnowledgeRelation, len(relations)),
		metadata:  meta,
	}
	for _, e := range entities {
		e.ID = entityID(e.Type, e.Name)
		e.LastUpdated = meta.LastUpdated
		g.entities[e.ID] = e
	}
	for _, r := range relations {
		if _, ok := g.entities[r.From]; !ok {
			continue
		}
		if _, ok := g.entities[r.To]; !ok {
			continue
		}
		if r.ID == "" {
			r.ID = relationID(r.From, normalizeRelationType(r.Type), r.To)
		}
		g.relations[r.ID] = r
	}

	for _, e := range g.entities {
		entitiesTotal.WithLabelValues(string(e.Type)).Inc()
	}
	return g
}

// Len returns the number of entities.
func (g *KnowledgeGraph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.entities)
}

// Entity looks up an entity by id.
func (g *KnowledgeGraph) Entity(id string) (common.KnowledgeEntity, bool) {
	if g == nil {
		return common.KnowledgeEntity{}, false
	}
	e, ok := g.entities[id]
	return e, ok
}

// Entities returns all entities sorted by id.
func (g *KnowledgeGraph) Entities() []common.KnowledgeEntity {
	if g == nil {
		return nil
	}
	out := make([]common.KnowledgeEntity, 0, len(g.entities))
	for _, e := range g.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Relations returns all relations sorted by id.
func (g *KnowledgeGraph) Relations() []common.KnowledgeRelation {
	if g == nil {
		return nil
	}
	out := make([]common.KnowledgeRelation, 0, len(g.relations))
	for _, r := range g.relations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RelationsOf returns the relations that start or end at entity id.
func (g *KnowledgeGraph) RelationsOf(id string) []common.KnowledgeRelation {
	var out []common.KnowledgeRelation
	for _, r := range g.Relations() {
		if r.From == id || r.To == id {
			out = append(out, r)
		}
	}
	return out
}

// Metadata returns the graph metadata.
func (g *KnowledgeGraph) Metadata() common.GraphMetadata {
	if g == nil {
		return common.GraphMetadata{}
	}
	return g.metadata
}

type graphSnapshot struct {
	Entities  map[string]common.KnowledgeEntity   `json:"entities"`
	Relations map[string]common.KnowledgeRelation `json:"relations"`
	Metadata  common.GraphMetadata                `json:"metadata"`
}

// MarshalJSON renders the snapshot handed to the UI.
func (g *KnowledgeGraph) MarshalJSON() ([]byte, error) {
	s := graphSnapshot{
		Entities:  map[string]common.KnowledgeEntity{},
		Relations: map[string]common.KnowledgeRelation{},
	}
	if g != nil {
		s.Entities = g.entities
		s.Relations = g.relations
		s.Metadata = g.metadata
	}
	return json.Marshal(s)
}

// UnmarshalJSON restores a graph from a snapshot written by MarshalJSON.
// Relations whose endpoints are missing from the snapshot are dropped.
func (g *KnowledgeGraph) UnmarshalJSON(data []byte) error {
	var s graphSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	g.entities = make(map[string]common.KnowledgeEntity, len(s.Entities))
	for id, e := range s.Entities {
		if e.ID == "" {
			e.ID = id
		}
		g.entities[e.ID] = e
	}
	g.relations = make(map[string]common.KnowledgeRelation, len(s.Relations))
	for id, r := range s.Relations {
		if _, ok := g.entities[r.From]; !ok {
			continue
		}
		if _, ok := g.entities[r.To]; !ok {
			continue
		}
		if r.ID == "" {
			r.ID = id
		}
		g.relations[r.ID] = r
	}
	g.metadata = s.Metadata
	return nil
}
