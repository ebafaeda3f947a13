// Package api はHTTP APIのOpenAPIドキュメントを提供する
package api

import _ "embed"

//go:generate oapi-codegen --config=oapi-codegen.yaml openapi.yaml

// Spec はOpenAPIドキュメント
//
//go:embed openapi.yaml
var Spec []byte
