// Package contracts は上流APIレスポンスのJSONスキーマ検証を提供する。
// 不正なペイロードは射影処理に入る前にここで弾く。
package contracts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema はスキーマ名を表す。ファイル名から拡張子を除いたもの。
type Schema string

const (
	SchemaCatalogSkins   Schema = "catalog-skins"
	SchemaCatalogAgents  Schema = "catalog-agents"
	SchemaCatalogBuddies Schema = "catalog-buddies"
	SchemaListing        Schema = "listing"
)

// baseURL はスキーマ間の$ref解決に使う仮想的なベースURL。ネットワークアクセスは発生しない。
const baseURL = "https://schemas.vavastore.local/"

//go:embed schemas/*.json
var schemaFS embed.FS

var compiled map[Schema]*jsonschema.Schema

func init() {
	var err error
	compiled, err = compileAll(schemaFS)
	if err != nil {
		panic(fmt.Sprintf("failed to compile JSON schemas: %v", err))
	}
}

// compileAll は埋め込まれた全スキーマをリソースとして登録してからコンパイルする。
// 2段階にするのは、スキーマ同士が$refで参照し合うため。
func compileAll(fsys fs.FS) (map[Schema]*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7

	entries, err := fs.ReadDir(fsys, "schemas")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := fs.ReadFile(fsys, "schemas/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", e.Name(), err)
		}
		if err := compiler.AddResource(baseURL+e.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to add schema resource %s: %w", e.Name(), err)
		}
		names = append(names, e.Name())
	}

	result := make(map[Schema]*jsonschema.Schema, len(names))
	for _, name := range names {
		s, err := compiler.Compile(baseURL + name)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}
		result[Schema(strings.TrimSuffix(name, ".json"))] = s
	}
	return result, nil
}

// Validate はJSONボディを指定スキーマで検証する。
// 不正なJSONやスキーマ違反の場合はエラーを返す。
func Validate(name Schema, body []byte) error {
	schema, ok := compiled[name]
	if !ok {
		return fmt.Errorf("schema %q is not registered", name)
	}

	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("body is not valid JSON: %w", err)
	}

	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("JSON schema validation failed (%s): %w", name, err)
	}
	return nil
}

// CatalogSchema はカテゴリ名に対応するカタログスキーマを返す。
func CatalogSchema(category string) (Schema, bool) {
	switch category {
	case "skins":
		return SchemaCatalogSkins, true
	case "agents":
		return SchemaCatalogAgents, true
	case "buddies":
		return SchemaCatalogBuddies, true
	default:
		return "", false
	}
}
