package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/siherrmann/canon/model"
)

// Strategy reduces the fragments of one schema type to at most the
// rule's instance cap, reporting every merge or discard as a conflict.
type Strategy interface {
	Merge(fragments []*model.Fragment, rule model.DedupRule) ([]*model.Fragment, []*model.Conflict)
}

// StrategyFor resolves a strategy name to its implementation, falling
// back to keep_most_complete for unknown names.
func StrategyFor(name model.MergeStrategyName) Strategy {
	switch name {
	case model.StrategyMergeProperties:
		return &MergePropertiesStrategy{}
	case model.StrategyMergeBySameAs:
		return &MergeBySameAsStrategy{}
	case model.StrategyMergeByOffers:
		return &MergeByOffersStrategy{}
	case model.StrategyMergeItems:
		return &MergeItemsStrategy{}
	case model.StrategyMergeQuestions:
		return &MergeQuestionsStrategy{}
	default:
		return &KeepMostCompleteStrategy{}
	}
}

// KeepMostCompleteStrategy keeps the highest-priority fragments and
// discards the rest.
type KeepMostCompleteStrategy struct{}

// Merge keeps the top fragments by priority up to the instance cap.
func (s *KeepMostCompleteStrategy) Merge(fragments []*model.Fragment, rule model.DedupRule) ([]*model.Fragment, []*model.Conflict) {
	if len(fragments) <= rule.MaxInstances {
		return fragments, nil
	}

	sorted := sortByPriority(fragments)
	kept := sorted[:rule.MaxInstances]
	discarded := sorted[rule.MaxInstances:]

	conflict := &model.Conflict{
		Type:       model.ConflictExcessSchemas,
		SchemaType: fragments[0].Type,
		Sources:    sources(discarded),
		Kept:       len(kept),
		Discarded:  len(discarded),
		Resolution: fmt.Sprintf("kept %d most complete of %d", len(kept), len(fragments)),
	}

	return kept, []*model.Conflict{conflict}
}

// MergePropertiesStrategy merges all fragments into one, the
// highest-priority fragment winning property conflicts.
type MergePropertiesStrategy struct{}

// Merge unions all fragment properties into a single fragment.
func (s *MergePropertiesStrategy) Merge(fragments []*model.Fragment, rule model.DedupRule) ([]*model.Fragment, []*model.Conflict) {
	if len(fragments) <= 1 {
		return fragments, nil
	}

	sorted := sortByPriority(fragments)
	merged := mergeFragments(sorted)

	conflict := &model.Conflict{
		Type:       model.ConflictMerged,
		SchemaType: merged.Type,
		Sources:    sources(fragments),
		Kept:       1,
		Discarded:  len(fragments) - 1,
		Resolution: fmt.Sprintf("merged properties of %d fragments", len(fragments)),
	}

	return []*model.Fragment{merged}, []*model.Conflict{conflict}
}

// MergeBySameAsStrategy groups fragments describing the same real-world
// entity, identified by overlapping sameAs URLs, and merges each group
// into one fragment. Fragments without sameAs stay singleton groups.
type MergeBySameAsStrategy struct{}

// Merge groups by identity, merges each group, then caps the groups.
func (s *MergeBySameAsStrategy) Merge(fragments []*model.Fragment, rule model.DedupRule) ([]*model.Fragment, []*model.Conflict) {
	groups := groupByIdentity(fragments, identityBySameAs)
	return mergeGroups(groups, fragments, rule)
}

// MergeByOffersStrategy groups product fragments by SKU or name and
// merges each group, concatenating their offers.
type MergeByOffersStrategy struct{}

// Merge groups products by identity and unions their offer lists.
func (s *MergeByOffersStrategy) Merge(fragments []*model.Fragment, rule model.DedupRule) ([]*model.Fragment, []*model.Conflict) {
	groups := groupByIdentity(fragments, identityBySku)

	var kept []*model.Fragment
	var conflicts []*model.Conflict
	for _, group := range groups {
		if len(group) == 1 {
			kept = append(kept, group[0])
			continue
		}

		sorted := sortByPriority(group)
		merged := mergeFragments(sorted)
		merged.Properties["offers"] = uniqueOffers(unionLists(sorted, "offers"))

		kept = append(kept, merged)
		conflicts = append(conflicts, &model.Conflict{
			Type:       model.ConflictDuplicateEntity,
			SchemaType: merged.Type,
			Sources:    sources(group),
			Kept:       1,
			Discarded:  len(group) - 1,
			Resolution: fmt.Sprintf("merged %d offers sets of one product", len(group)),
		})
	}

	return capFragments(kept, conflicts, rule)
}

// MergeItemsStrategy unions breadcrumb items across fragments, ordered
// by position and de-duplicated by item URL.
type MergeItemsStrategy struct{}

// Merge combines all item lists into one fragment and recounts them.
func (s *MergeItemsStrategy) Merge(fragments []*model.Fragment, rule model.DedupRule) ([]*model.Fragment, []*model.Conflict) {
	if len(fragments) <= 1 {
		return fragments, nil
	}

	sorted := sortByPriority(fragments)
	merged := mergeFragments(sorted)

	items := unionLists(sorted, "itemListElement")
	sort.SliceStable(items, func(i, j int) bool {
		return itemPosition(items[i]) < itemPosition(items[j])
	})

	seen := map[string]bool{}
	var unique []interface{}
	for _, item := range items {
		url := itemURL(item)
		if seen[url] {
			continue
		}
		seen[url] = true
		unique = append(unique, item)
	}

	merged.Properties["itemListElement"] = unique
	merged.Properties["numberOfItems"] = len(unique)

	conflict := &model.Conflict{
		Type:       model.ConflictMerged,
		SchemaType: merged.Type,
		Sources:    sources(fragments),
		Kept:       1,
		Discarded:  len(fragments) - 1,
		Resolution: fmt.Sprintf("combined item lists of %d fragments", len(fragments)),
	}

	return []*model.Fragment{merged}, []*model.Conflict{conflict}
}

// MergeQuestionsStrategy unions FAQ questions across fragments,
// dropping duplicate questions by name.
type MergeQuestionsStrategy struct{}

// Merge combines all question lists into one fragment.
func (s *MergeQuestionsStrategy) Merge(fragments []*model.Fragment, rule model.DedupRule) ([]*model.Fragment, []*model.Conflict) {
	if len(fragments) <= 1 {
		return fragments, nil
	}

	sorted := sortByPriority(fragments)
	merged := mergeFragments(sorted)
	merged.Properties["mainEntity"] = uniqueByName(unionLists(sorted, "mainEntity"))

	conflict := &model.Conflict{
		Type:       model.ConflictMerged,
		SchemaType: merged.Type,
		Sources:    sources(fragments),
		Kept:       1,
		Discarded:  len(fragments) - 1,
		Resolution: fmt.Sprintf("combined questions of %d fragments", len(fragments)),
	}

	return []*model.Fragment{merged}, []*model.Conflict{conflict}
}

// sortByPriority orders fragments by descending priority, ties broken
// by collection order. The input is left untouched.
func sortByPriority(fragments []*model.Fragment) []*model.Fragment {
	sorted := make([]*model.Fragment, len(fragments))
	copy(sorted, fragments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return sorted
}

// mergeFragments folds the fragments into a copy of the first one.
// Properties already set are never overwritten, so priority order
// decides conflicts; sameAs sets are unioned. When both sides carry a
// nested container under the same key, object-like values merge
// key-wise and list-like values union their members.
func mergeFragments(sorted []*model.Fragment) *model.Fragment {
	merged := &model.Fragment{
		Type:        sorted[0].Type,
		Properties:  sorted[0].Properties.Clone(),
		Source:      sorted[0].Source,
		Priority:    sorted[0].Priority,
		CollectedAt: sorted[0].CollectedAt,
	}

	sameAs := map[string]bool{}
	var sameAsOrder []string
	for _, fragment := range sorted {
		for key, value := range fragment.Properties {
			if key == "sameAs" {
				continue
			}
			existing, ok := merged.Properties[key]
			if !ok {
				merged.Properties[key] = value
				continue
			}
			merged.Properties[key] = mergeValues(existing, value)
		}
		for _, url := range fragment.SameAs() {
			if !sameAs[url] {
				sameAs[url] = true
				sameAsOrder = append(sameAsOrder, url)
			}
		}
	}
	if len(sameAsOrder) > 0 {
		merged.Properties["sameAs"] = sameAsOrder
	}

	return merged
}

// mergeValues combines a kept value with a lower-priority one. Two
// objects merge key-wise with the kept side winning, two lists union
// their members, anything else keeps the kept value.
func mergeValues(kept, other interface{}) interface{} {
	keptMap, keptIsMap := kept.(map[string]interface{})
	otherMap, otherIsMap := other.(map[string]interface{})
	if keptIsMap && otherIsMap {
		out := make(map[string]interface{}, len(keptMap))
		for key, value := range keptMap {
			out[key] = value
		}
		for key, value := range otherMap {
			if _, ok := out[key]; !ok {
				out[key] = value
			}
		}
		return out
	}

	keptList, keptIsList := kept.([]interface{})
	otherList, otherIsList := other.([]interface{})
	if keptIsList && otherIsList {
		return uniqueMembers(append(append([]interface{}{}, keptList...), otherList...))
	}

	return kept
}

// uniqueMembers drops later list entries that repeat an earlier one.
func uniqueMembers(list []interface{}) []interface{} {
	seen := map[string]bool{}
	var out []interface{}
	for _, item := range list {
		key := memberKey(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

// memberKey derives a comparable identity for an arbitrary list member.
func memberKey(item interface{}) string {
	if s, ok := item.(string); ok {
		return "s:" + s
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Sprintf("%v", item)
	}
	return string(raw)
}

// uniqueOffers de-duplicates offers by URL, falling back to SKU, then
// to the whole offer.
func uniqueOffers(offers []interface{}) []interface{} {
	seen := map[string]bool{}
	var out []interface{}
	for _, offer := range offers {
		identifier := memberKey(offer)
		if props, ok := offer.(map[string]interface{}); ok {
			if url, ok := props["url"].(string); ok && url != "" {
				identifier = "url:" + url
			} else if sku, ok := props["sku"].(string); ok && sku != "" {
				identifier = "sku:" + sku
			}
		}
		if seen[identifier] {
			continue
		}
		seen[identifier] = true
		out = append(out, offer)
	}
	return out
}

// itemPosition reads a breadcrumb item's position, zero when absent.
func itemPosition(item interface{}) float64 {
	props, ok := item.(map[string]interface{})
	if !ok {
		return 0
	}
	switch v := props["position"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// itemURL derives a breadcrumb item's identity from its target.
func itemURL(item interface{}) string {
	props, ok := item.(map[string]interface{})
	if !ok {
		return memberKey(item)
	}
	switch target := props["item"].(type) {
	case map[string]interface{}:
		if id, ok := target["@id"].(string); ok {
			return id
		}
	case string:
		return target
	}
	return memberKey(item)
}

// identity functions for grouping

func identityBySameAs(fragment *model.Fragment) []string {
	return fragment.SameAs()
}

func identityBySku(fragment *model.Fragment) []string {
	if sku, ok := fragment.Properties["sku"].(string); ok && sku != "" {
		return []string{"sku:" + sku}
	}
	if name, ok := fragment.Properties["name"].(string); ok && name != "" {
		return []string{"name:" + name}
	}
	return nil
}

// groupByIdentity clusters fragments sharing any identity key.
// Fragments with no identity stay alone.
func groupByIdentity(fragments []*model.Fragment, identity func(*model.Fragment) []string) [][]*model.Fragment {
	var groups [][]*model.Fragment
	keyToGroup := map[string]int{}

	for _, fragment := range fragments {
		keys := identity(fragment)

		groupIndex := -1
		for _, key := range keys {
			if index, ok := keyToGroup[key]; ok {
				groupIndex = index
				break
			}
		}

		if groupIndex < 0 {
			groups = append(groups, []*model.Fragment{fragment})
			groupIndex = len(groups) - 1
		} else {
			groups[groupIndex] = append(groups[groupIndex], fragment)
		}

		for _, key := range keys {
			keyToGroup[key] = groupIndex
		}
	}

	return groups
}

// mergeGroups merges each identity group and caps the survivors.
func mergeGroups(groups [][]*model.Fragment, fragments []*model.Fragment, rule model.DedupRule) ([]*model.Fragment, []*model.Conflict) {
	var kept []*model.Fragment
	var conflicts []*model.Conflict

	for _, group := range groups {
		if len(group) == 1 {
			kept = append(kept, group[0])
			continue
		}

		sorted := sortByPriority(group)
		merged := mergeFragments(sorted)

		kept = append(kept, merged)
		conflicts = append(conflicts, &model.Conflict{
			Type:       model.ConflictDuplicateEntity,
			SchemaType: merged.Type,
			Sources:    sources(group),
			Kept:       1,
			Discarded:  len(group) - 1,
			SameAs:     merged.SameAs(),
			Resolution: fmt.Sprintf("merged %d fragments of one entity", len(group)),
		})
	}

	return capFragments(kept, conflicts, rule)
}

// capFragments enforces the rule's instance cap on merged survivors.
func capFragments(kept []*model.Fragment, conflicts []*model.Conflict, rule model.DedupRule) ([]*model.Fragment, []*model.Conflict) {
	if len(kept) <= rule.MaxInstances {
		return kept, conflicts
	}

	sorted := sortByPriority(kept)
	capped := sorted[:rule.MaxInstances]
	discarded := sorted[rule.MaxInstances:]

	conflicts = append(conflicts, &model.Conflict{
		Type:       model.ConflictExcessSchemas,
		SchemaType: capped[0].Type,
		Sources:    sources(discarded),
		Kept:       len(capped),
		Discarded:  len(discarded),
		Resolution: fmt.Sprintf("kept %d of %d after merge", len(capped), len(kept)),
	})

	return capped, conflicts
}

func sources(fragments []*model.Fragment) []string {
	seen := map[string]bool{}
	var out []string
	for _, fragment := range fragments {
		if fragment.Source != "" && !seen[fragment.Source] {
			seen[fragment.Source] = true
			out = append(out, fragment.Source)
		}
	}
	return out
}

// unionLists concatenates the list property of all fragments in order,
// skipping exact duplicates of whole entries is left to callers.
func unionLists(fragments []*model.Fragment, key string) []interface{} {
	var out []interface{}
	for _, fragment := range fragments {
		if list, ok := fragment.Properties[key].([]interface{}); ok {
			out = append(out, list...)
		}
	}
	return out
}

// uniqueByName drops list entries whose "name" repeats an earlier entry.
func uniqueByName(list []interface{}) []interface{} {
	seen := map[string]bool{}
	var out []interface{}
	for _, item := range list {
		props, ok := item.(map[string]interface{})
		if !ok {
			out = append(out, item)
			continue
		}
		name, _ := props["name"].(string)
		if name != "" && seen[name] {
			continue
		}
		if name != "" {
			seen[name] = true
		}
		out = append(out, item)
	}
	return out
}
