package model

// PostTitleMaxLength はpostsテーブルのtitleカラムの最大長。
const PostTitleMaxLength = 100

// Post はブログ記事を表す。
// CommentsCountは保存せず、読み取りのたびにcommentsテーブルから集計する。
type Post struct {
	Base
	Title         string `json:"title"`
	Body          string `json:"body"`
	AuthorID      int64  `json:"author_id"`
	CommentsCount int    `json:"comments_count"`
}

// Comment は記事へのコメントを表す。
type Comment struct {
	Base
	Text     string `json:"text"`
	AuthorID int64  `json:"author_id"`
	PostID   int64  `json:"post_id"`
}

// Page は一覧取得のページ指定。
type Page struct {
	Limit  int
	Offset int
}

// DefaultPageLimit はLimit未指定時の件数。
const DefaultPageLimit = 50

// MaxPageLimit はLimitの上限。
const MaxPageLimit = 200

// Normalize はLimitとOffsetを許容範囲に丸めたPageを返す。
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
