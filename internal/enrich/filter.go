package enrich

import "github.com/hitoshi/vavastore/internal/model"

// FilterOwned はカタログのうちUUIDが所有IDに完全一致するエントリだけを返す。
// 並びはカタログの順序を保つ。カタログに無い所有IDは結果に現れず、
// その件数（重複を除く）をdroppedとして返す。
func FilterOwned(catalog []model.CatalogEntry, owned []string) (kept []model.CatalogEntry, dropped int) {
	ownedSet := make(map[string]struct{}, len(owned))
	for _, id := range owned {
		ownedSet[id] = struct{}{}
	}

	kept = make([]model.CatalogEntry, 0, min(len(ownedSet), len(catalog)))
	matched := make(map[string]struct{}, len(ownedSet))
	for _, entry := range catalog {
		if _, ok := ownedSet[entry.UUID]; !ok {
			continue
		}
		kept = append(kept, entry)
		matched[entry.UUID] = struct{}{}
	}

	return kept, len(ownedSet) - len(matched)
}
