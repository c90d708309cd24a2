package model

// Category は在庫カテゴリを表す。
type Category string

const (
	// CategorySkins は武器スキン。
	CategorySkins Category = "skins"
	// CategoryAgents はエージェント。
	CategoryAgents Category = "agents"
	// CategoryBuddies はガンバディー。
	CategoryBuddies Category = "buddies"
)

// Categories は対応する全カテゴリを定義順で返す。
func Categories() []Category {
	return []Category{CategorySkins, CategoryAgents, CategoryBuddies}
}

// ParseCategory は文字列をCategoryに変換する。未対応の値はfalseを返す。
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategorySkins, CategoryAgents, CategoryBuddies:
		return Category(s), true
	default:
		return "", false
	}
}

// CatalogEntry は公開カタログの1エントリ。
// カタログクライアントが生成した後は変更しない。
type CatalogEntry struct {
	UUID        string
	DisplayName string
	DisplayIcon *string // カタログ上でnullの場合はnil

	// Extra はカテゴリ固有の属性。
	// skins: コンテンツティアUUID、agents: ロール名、buddies: 空。
	Extra string

	// Playable はプレイアブルキャラクターかどうか。agents以外は常にtrue。
	Playable bool
}

// ProjectedResult は公開レスポンスの1件分。
// フィールド名はフロントエンドの描画層が参照するキーに合わせている。
type ProjectedResult struct {
	UUID            string  `json:"uuid"`
	DisplayName     string  `json:"displayName"`
	DisplayIcon     *string `json:"displayIcon"`
	ContentTierUUID *string `json:"contentTierUuid,omitempty"` // skinsのみ
	Role            string  `json:"role,omitempty"`            // agentsのみ
}

// レアリティティアUUID
const (
	TierUltra     = "e046854e-406c-37f4-6607-19a9ba8426fc"
	TierExclusive = "60bca009-4182-7998-dee7-b8a2558dc369"
	TierPremium   = "12683d76-48d7-84a3-4e09-6985794f0445"
	TierDeluxe    = "0cebb8be-46d7-c12a-d306-e9907bfc5a25"
	TierSelect    = "411e4a55-4e59-7757-41f0-86a53f101bb5"
)

// UnknownRarityRank は未知のティアに割り当てる順位。常に最後尾に並ぶ。
const UnknownRarityRank = 999

var rarityRanks = map[string]int{
	TierUltra:     1,
	TierExclusive: 2,
	TierPremium:   3,
	TierDeluxe:    4,
	TierSelect:    5,
}

// RarityRank はティアUUIDの表示順位（1が最上位）を返す。
func RarityRank(tierUUID string) int {
	if rank, ok := rarityRanks[tierUUID]; ok {
		return rank
	}
	return UnknownRarityRank
}
