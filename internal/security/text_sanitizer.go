// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザー入力からHTMLを取り除いてプレーンテキストにする。
// URLGuard はユーザーが指定したURLが内部ネットワークを指していないかを静的に検証する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はHTMLを含みうる入力をプレーンテキストに変換する。
// bluemondayのStrictPolicyで全タグを除去し、エスケープされた文字実体を元に戻す。
// 出力はJSONで返され、表示側でテキストとして扱われる前提。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去し、前後の空白を取り除いたテキストを返す。
// 同一入力に対して常に同一出力を返す。
func (s *TextSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
