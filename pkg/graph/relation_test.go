package graph

import (
	"math"
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/lumen/backend/pkg/common"
)

func relationEntities() []common.KnowledgeEntity {
	return []common.KnowledgeEntity{
		{ID: "person_leonidas", Type: common.EntityPerson, Name: "Leonidas", Aliases: []string{"King Leonidas"}},
		{ID: "place_thermopylae", Type: common.EntityPlace, Name: "Thermopylae", Aliases: []string{"Hot Gates"}},
		{ID: "person_xerxes", Type: common.EntityPerson, Name: "Xerxes"},
	}
}

func TestMergeRelations(t *testing.T) {
	raw := []common.RawRelationExtraction{
		{From: "King Leonidas", To: "Thermopylae", Type: "Fought At", Desc: "Led the Greeks.", Conf: 0.8, SourceChunks: []string{"a"}},
		{From: "leonidas", To: "hot gates", Type: "fought_at", Desc: "Held the pass for three days.", Conf: 0.7, SourceChunks: []string{"b", "a"}},
		{From: "Xerxes", To: "Thermopylae", Type: "", Conf: 0.6},
		{From: "Leonidas", To: "King Leonidas", Type: "is", Conf: 0.9},
		{From: "Leonidas", To: "Athens", Type: "visited", Conf: 0.9},
		{From: "Xerxes", To: "Leonidas", Type: "defeated", Conf: 0.3},
	}

	got := MergeRelations(raw, relationEntities(), 0.5)

	wantIDs := []string{
		"person_leonidas__fought_at__place_thermopylae",
		"person_xerxes__related_to__place_thermopylae",
	}
	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	if !reflect.DeepEqual(ids, wantIDs) {
		t.Fatalf("MergeRelations() ids = %v, want %v", ids, wantIDs)
	}

	fought := got[0]
	if fought.From != "person_leonidas" || fought.To != "place_thermopylae" || fought.Type != "fought_at" {
		t.Errorf("fought_at relation = %+v", fought)
	}
	if math.Abs(fought.Confidence-0.83) > 1e-9 {
		t.Errorf("fought_at confidence = %v, want 0.83", fought.Confidence)
	}
	if !reflect.DeepEqual(fought.SourceChunks, []string{"a", "b"}) {
		t.Errorf("fought_at sources = %v, want [a b]", fought.SourceChunks)
	}
	if fought.Properties["description"] != "Held the pass for three days." {
		t.Errorf("fought_at description = %v", fought.Properties["description"])
	}
}

func TestMergeRelationsEndpointsExist(t *testing.T) {
	entities := relationEntities()
	ids := map[string]bool{}
	for _, e := range entities {
		ids[e.ID] = true
	}

	raw := []common.RawRelationExtraction{
		{From: "Leonidas", To: "Xerxes", Type: "opposed", Conf: 0.9},
		{From: "Sparta", To: "Xerxes", Type: "opposed", Conf: 0.9},
		{From: "", To: "", Type: "", Conf: 0.9},
	}
	for _, r := range MergeRelations(raw, entities, 0) {
		if !ids[r.From] || !ids[r.To] {
			t.Errorf("relation %s references a missing entity", r.ID)
		}
		if r.From == r.To {
			t.Errorf("relation %s is a self relation", r.ID)
		}
	}
}

func TestEntityNameIndexPrefersNames(t *testing.T) {
	entities := []common.KnowledgeEntity{
		{ID: "concept_b", Name: "B", Aliases: []string{"A"}},
		{ID: "concept_a", Name: "A"},
	}
	index := entityNameIndex(entities)
	if index["a"] != "concept_a" {
		t.Errorf(`index["a"] = %q, want concept_a`, index["a"])
	}
	if index["b"] != "concept_b" {
		t.Errorf(`index["b"] = %q, want concept_b`, index["b"])
	}
}

func TestNormalizeRelationType(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Part Of", "part_of"},
		{"  causes ", "causes"},
		{"is-a", "is_a"},
		{"", defaultRelationType},
		{" - ", defaultRelationType},
	}
	for _, tt := range tests {
		if got := normalizeRelationType(tt.in); got != tt.want {
			t.Errorf("normalizeRelationType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
