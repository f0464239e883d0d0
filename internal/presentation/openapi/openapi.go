// Package openapi 埋め込みOpenAPI仕様を提供する
package openapi

import _ "embed"

// Spec OpenAPI仕様（YAML）
//
//go:embed openapi.yaml
var Spec []byte
