package enrich

import "github.com/hitoshi/vavastore/internal/model"

// unknownRole はロールが無いエージェントに設定する値。
const unknownRole = "Unknown"

// Project はカタログエントリを公開レスポンスの形へ射影する。
// agentsではプレイアブルでないエントリを除外する。
func Project(category model.Category, entries []model.CatalogEntry) []model.ProjectedResult {
	results := make([]model.ProjectedResult, 0, len(entries))
	for _, e := range entries {
		if category == model.CategoryAgents && !e.Playable {
			continue
		}

		r := model.ProjectedResult{
			UUID:        e.UUID,
			DisplayName: e.DisplayName,
			DisplayIcon: e.DisplayIcon,
		}
		switch category {
		case model.CategorySkins:
			if e.Extra != "" {
				tier := e.Extra
				r.ContentTierUUID = &tier
			}
		case model.CategoryAgents:
			r.Role = e.Extra
			if r.Role == "" {
				r.Role = unknownRole
			}
		}
		results = append(results, r)
	}
	return results
}
