// Package security はアプリケーションのセキュリティ機能を提供する。
//
// BodySanitizer は記事本文（リッチテキストエディタで入力されたHTML）を
// 表示用にサニタイズする。bluemondayの許可リストベースのポリシーで、
// 安全なタグと属性のみを通過させる。保存される本文そのものは変更しない。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// BodySanitizer は記事本文のサニタイズ機能のインターフェースを定義する。
type BodySanitizer interface {
	// Sanitize は本文HTMLをサニタイズして安全なHTMLを返す。
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// 空文字列の入力には空文字列を返す。
	Sanitize(rawHTML string) string
}

// bodySanitizer はBodySanitizerの実装。
// bluemondayのPolicyは構築後の並行利用が安全。
type bodySanitizer struct {
	policy *bluemonday.Policy
}

// NewBodySanitizer はBodySanitizerを生成する。
// ポリシーの内容:
//   - 許可タグ: 見出し、段落、リスト、引用、コード、強調、表、リンク、画像
//   - aタグ: 外部リンクにはtarget="_blank"とrel="noopener noreferrer"を付与
//   - imgのsrc属性: httpsまたはサイト内の相対URLのみ
func NewBodySanitizer() BodySanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "hr", "span", "div",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "b", "i", "u", "s", "sub", "sup",
		"table", "thead", "tbody", "tr", "th", "td",
	)

	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("https", "http", "mailto")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnFullyQualifiedLinks(true)
	p.RequireNoFollowOnFullyQualifiedLinks(true)

	p.AllowImages()
	p.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("th", "td")

	return &bodySanitizer{policy: p}
}

// Sanitize は本文HTMLをサニタイズして安全なHTMLを返す。
func (s *bodySanitizer) Sanitize(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	return s.policy.Sanitize(rawHTML)
}
