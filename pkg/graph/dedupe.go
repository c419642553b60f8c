package graph

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/OFFIS-RIT/lumen/backend/pkg/common"
	"github.com/OFFIS-RIT/lumen/backend/pkg/logger"

	"github.com/agnivade/levenshtein"
)

const (
	fuzzySimilarity     = 0.85
	mergeBoost          = 0.03
	maxMergedConfidence = 0.95
)

// normalizeName lowercases s and drops everything that is not a letter or
// a digit.
func normalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func entityID(t common.EntityType, name string) string {
	return string(t) + "_" + normalizeName(name)
}

// DedupeEntities merges raw extractions that describe the same entity and
// drops merged entities below threshold.
//
// Extractions are grouped by normalized name first. A group whose member
// lists an alias equal to another group's name is merged with that group,
// but only one hop: a group that was absorbed does not absorb further groups
// in the same pass. Remaining groups of the same type merge when any pair of
// their names reaches a Levenshtein similarity of 0.85, transitively.
//
// The output is sorted by id and does not depend on anything but the input.
// LastUpdated is left for the assembler to set.
func DedupeEntities(raw []common.RawEntityExtraction, threshold float64) []common.KnowledgeEntity {
	groups, keys := groupByName(raw)
	groups = mergeAliasGroups(raw, groups, keys)
	groups = mergeFuzzyGroups(raw, groups)

	entities := make([]common.KnowledgeEntity, 0, len(groups))
	dropped := 0
	for _, members := range groups {
		e := mergeMembers(raw, members)
		if e.Confidence < threshold {
			dropped++
			continue
		}
		entities = append(entities, e)
	}

	pruneForeignAliases(entities)
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })

	logger.Debug("[Dedupe] Merged extractions",
		"raw", len(raw),
		"entities", len(entities),
		"below_threshold", dropped,
	)
	return entities
}

// groupByName returns the member indices per normalized name in order of
// first appearance, plus the name key of each group.
func groupByName(raw []common.RawEntityExtraction) ([][]int, []string) {
	index := map[string]int{}
	var groups [][]int
	var keys []string
	for i, r := range raw {
		key := normalizeName(r.Name)
		if key == "" {
			continue
		}
		gi, ok := index[key]
		if !ok {
			gi = len(groups)
			index[key] = gi
			groups = append(groups, nil)
			keys = append(keys, key)
		}
		groups[gi] = append(groups[gi], i)
	}
	return groups, keys
}

func mergeAliasGroups(raw []common.RawEntityExtraction, groups [][]int, keys []string) [][]int {
	index := make(map[string]int, len(keys))
	for gi, key := range keys {
		index[key] = gi
	}

	absorbedBy := make([]int, len(groups))
	for i := range absorbedBy {
		absorbedBy[i] = -1
	}
	absorbing := make([]bool, len(groups))

	for gi, members := range groups {
		for _, m := range members {
			for _, alias := range raw[m].Aliases {
				hi, ok := index[normalizeName(alias)]
				if !ok || hi == gi {
					continue
				}
				survivor, other := min(gi, hi), max(gi, hi)
				if absorbedBy[survivor] >= 0 || absorbedBy[other] >= 0 || absorbing[other] {
					continue
				}
				absorbedBy[other] = survivor
				absorbing[survivor] = true
			}
		}
	}

	var out [][]int
	pos := make([]int, len(groups))
	for gi, members := range groups {
		if s := absorbedBy[gi]; s >= 0 {
			out[pos[s]] = append(out[pos[s]], members...)
			continue
		}
		pos[gi] = len(out)
		out = append(out, append([]int(nil), members...))
	}
	for i := range out {
		sort.Ints(out[i])
	}
	return out
}

func mergeFuzzyGroups(raw []common.RawEntityExtraction, groups [][]int) [][]int {
	types := make([]common.EntityType, len(groups))
	names := make([][]string, len(groups))
	for gi, members := range groups {
		types[gi] = entityType(raw[bestMember(raw, members)].Type)
		seen := map[string]struct{}{}
		for _, m := range members {
			key := normalizeName(raw[m].Name)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			names[gi] = append(names[gi], key)
		}
	}

	alive := make([]bool, len(groups))
	for i := range alive {
		alive[i] = true
	}

	// Group i rescans until it stops growing, so names it picked up from a
	// later group are compared against the groups it skipped before. The
	// result is the connected components of the similarity relation.
	for i := range groups {
		if !alive[i] {
			continue
		}
		for grown := true; grown; {
			grown = false
			for j := i + 1; j < len(groups); j++ {
				if !alive[j] || types[i] != types[j] {
					continue
				}
				if !anySimilar(names[i], names[j]) {
					continue
				}
				groups[i] = append(groups[i], groups[j]...)
				names[i] = append(names[i], names[j]...)
				alive[j] = false
				grown = true
			}
		}
	}

	var out [][]int
	for i, members := range groups {
		if alive[i] {
			sort.Ints(members)
			out = append(out, members)
		}
	}
	return out
}

func anySimilar(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if similarity(x, y) >= fuzzySimilarity {
				return true
			}
		}
	}
	return false
}

// similarity is 1 - levenshtein(a, b) / max(len(a), len(b)) over runes.
func similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 && lb == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(max(la, lb))
}

// bestMember is the member with the highest confidence, the earliest one on
// ties.
func bestMember(raw []common.RawEntityExtraction, members []int) int {
	best := members[0]
	for _, m := range members[1:] {
		if raw[m].Conf > raw[best].Conf {
			best = m
		}
	}
	return best
}

func entityType(t common.EntityType) common.EntityType {
	return normalizeEntityType(string(t), common.EntityConcept)
}

// mergedConfidence raises the best confidence by 0.03 per additional
// instance, capped at 0.95. It never goes below the best instance.
func mergedConfidence(maxConf float64, n int) float64 {
	if n <= 1 {
		return maxConf
	}
	boosted := min(maxMergedConfidence, maxConf+mergeBoost*float64(n-1))
	boosted = math.Round(boosted*1e4) / 1e4
	return max(maxConf, boosted)
}

func mergeMembers(raw []common.RawEntityExtraction, members []int) common.KnowledgeEntity {
	best := raw[bestMember(raw, members)]
	name := strings.TrimSpace(best.Name)
	nameKey := normalizeName(name)

	var (
		aliases    = []string{}
		aliasSeen  = map[string]struct{}{nameKey: {}}
		sources    = []string{}
		sourceSeen = map[string]struct{}{}
		examples   []string
		exSeen     = map[string]struct{}{}
		props      = map[string]any{}
		longest    string
		category   = strings.TrimSpace(best.Cat)
	)

	addAlias := func(a string) {
		a = strings.TrimSpace(a)
		key := normalizeName(a)
		if key == "" {
			return
		}
		if _, ok := aliasSeen[key]; ok {
			return
		}
		aliasSeen[key] = struct{}{}
		aliases = append(aliases, a)
	}

	for _, m := range members {
		r := raw[m]
		addAlias(r.Name)
		for _, a := range r.Aliases {
			addAlias(a)
		}
		for _, s := range r.SourceChunks {
			if _, ok := sourceSeen[s]; ok {
				continue
			}
			sourceSeen[s] = struct{}{}
			sources = append(sources, s)
		}
		for _, ex := range r.Examples {
			ex = strings.TrimSpace(ex)
			if ex == "" {
				continue
			}
			if _, ok := exSeen[ex]; ok {
				continue
			}
			exSeen[ex] = struct{}{}
			examples = append(examples, ex)
		}
		for k, v := range r.Properties {
			if _, ok := props[k]; !ok && k != "examples" {
				props[k] = v
			}
		}
		if d := strings.TrimSpace(r.Desc); utf8.RuneCountInString(d) > utf8.RuneCountInString(longest) {
			longest = d
		}
		if category == "" {
			category = strings.TrimSpace(r.Cat)
		}
	}

	if len(examples) > 0 {
		props["examples"] = examples
	}
	descriptions := []string{}
	if longest != "" {
		descriptions = append(descriptions, longest)
	}

	t := entityType(best.Type)
	return common.KnowledgeEntity{
		ID:           entityID(t, name),
		Type:         t,
		Name:         name,
		Aliases:      aliases,
		Properties:   props,
		Descriptions: descriptions,
		SourceChunks: sources,
		Confidence:   mergedConfidence(best.Conf, len(members)),
		Category:     category,
	}
}

// pruneForeignAliases removes aliases that are the name of another entity,
// so name lookups stay unambiguous.
func pruneForeignAliases(entities []common.KnowledgeEntity) {
	names := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		names[normalizeName(e.Name)] = struct{}{}
	}
	for i := range entities {
		kept := entities[i].Aliases[:0]
		for _, a := range entities[i].Aliases {
			if _, ok := names[normalizeName(a)]; ok {
				continue
			}
			kept = append(kept, a)
		}
		entities[i].Aliases = kept
	}
}
