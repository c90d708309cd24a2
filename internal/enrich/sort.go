package enrich

import (
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/hitoshi/vavastore/internal/model"
)

// Sort は表示順に並べ替えた新しいスライスを返す。入力は変更しない。
//   - skins: レアリティ順位の昇順（未知のティアは最後尾）
//   - agents, buddies: 表示名の昇順（英語ロケールの照合順）
//
// いずれも安定ソートのため、同順位の要素は入力順を保つ。
func Sort(category model.Category, results []model.ProjectedResult) []model.ProjectedResult {
	sorted := slices.Clone(results)
	if sorted == nil {
		sorted = []model.ProjectedResult{}
	}

	switch category {
	case model.CategorySkins:
		slices.SortStableFunc(sorted, func(a, b model.ProjectedResult) int {
			return rarityRankOf(a) - rarityRankOf(b)
		})
	default:
		// collate.Collatorは内部バッファを持つため呼び出しごとに生成する
		col := collate.New(language.English)
		slices.SortStableFunc(sorted, func(a, b model.ProjectedResult) int {
			return col.CompareString(a.DisplayName, b.DisplayName)
		})
	}
	return sorted
}

func rarityRankOf(r model.ProjectedResult) int {
	if r.ContentTierUUID == nil {
		return model.UnknownRarityRank
	}
	return model.RarityRank(*r.ContentTierUUID)
}
