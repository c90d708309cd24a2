package model

import (
	"bytes"
	"encoding/json"
)

// AccountListing はマーケットの出品レコード。
// 上流が所有するデータであり、このサービスでは読み取りと整形のみ行う。
type AccountListing struct {
	Item ListingItem `json:"item"`

	// Raw はスキーマ検証済みの上流レスポンスボディ。
	// /listing/{id} はこれをそのまま返す。
	Raw json.RawMessage `json:"-"`
}

// ListingItem は出品の詳細。描画層が参照するフィールドのみ型付けしている。
type ListingItem struct {
	ItemID   int64   `json:"item_id"`
	Title    string  `json:"title"`
	TitleEn  string  `json:"title_en"`
	Price    float64 `json:"price"`
	RubPrice float64 `json:"rub_price"`

	RiotCountry         string `json:"riot_country"`
	RiotEmailVerified   int    `json:"riot_email_verified"`
	RiotPhoneVerified   int    `json:"riot_phone_verified"`
	RiotAccountVerified int    `json:"riot_account_verified"`
	RiotUsername        string `json:"riot_username"`

	ValorantLevel          int     `json:"riot_valorant_level"`
	ValorantRank           int     `json:"riot_valorant_rank"`
	ValorantPreviousRank   int     `json:"riot_valorant_previous_rank"`
	ValorantLastRank       int     `json:"riot_valorant_last_rank"`
	ValorantRankType       string  `json:"riot_valorant_rank_type"`
	ValorantRegion         string  `json:"riot_valorant_region"`
	ValorantSkinCount      int     `json:"riot_valorant_skin_count"`
	ValorantAgentCount     int     `json:"riot_valorant_agent_count"`
	ValorantKnifeCount     int     `json:"riot_valorant_knife_count"`
	ValorantWalletVP       float64 `json:"riot_valorant_wallet_vp"`
	ValorantWalletRP       float64 `json:"riot_valorant_wallet_rp"`
	ValorantWalletFA       float64 `json:"riot_valorant_wallet_fa"`
	ValorantInventoryValue float64 `json:"riot_valorant_inventory_value"`

	ValorantRankTitle         string `json:"valorantRankTitle"`
	ValorantPreviousRankTitle string `json:"valorantPreviousRankTitle"`
	ValorantLastRankTitle     string `json:"valorantLastRankTitle"`
	ValorantRegionPhrase      string `json:"valorantRegionPhrase"`

	AccountLastActivity int64  `json:"account_last_activity"`
	ItemOrigin          string `json:"item_origin"`

	Seller            *ListingSeller     `json:"seller,omitempty"`
	ValorantInventory *ValorantInventory `json:"valorantInventory,omitempty"`
}

// ListingSeller は出品者情報。
type ListingSeller struct {
	Username       string `json:"username"`
	SoldItemsCount int    `json:"sold_items_count"`
	IsOnline       bool   `json:"isOnline"`
}

// ValorantInventory はアカウントが所有するコンテンツIDのリスト。
// エンリッチメントの入力になる。
type ValorantInventory struct {
	WeaponSkins []string `json:"WeaponSkins"`
	Agent       []string `json:"Agent"`
	Buddy       []string `json:"Buddy"`
}

// UnmarshalJSON は空の在庫が空配列 [] で返る場合も受け付ける。
func (v *ValorantInventory) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("[]")) {
		*v = ValorantInventory{}
		return nil
	}
	type inventory ValorantInventory
	var decoded inventory
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*v = ValorantInventory(decoded)
	return nil
}

// OwnedIDs はカテゴリに対応する所有IDリストを返す。在庫情報が無い場合は空。
func (l *AccountListing) OwnedIDs(category Category) []string {
	inv := l.Item.ValorantInventory
	if inv == nil {
		return []string{}
	}

	var ids []string
	switch category {
	case CategorySkins:
		ids = inv.WeaponSkins
	case CategoryAgents:
		ids = inv.Agent
	case CategoryBuddies:
		ids = inv.Buddy
	}
	if ids == nil {
		return []string{}
	}
	return ids
}
