// Package model はドメインモデルを定義する。
package model

import "time"

// Timestamps は全レコード共通の作成・更新日時。
// updated_at >= created_at はスキーマのCHECK制約で保証する。
type Timestamps struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Base は全レコード共通のIDとタイムスタンプ。各レコードが埋め込んで使用する。
type Base struct {
	ID int64 `json:"id"`
	Timestamps
}

// RecordID はレコードのIDを返す。
func (b Base) RecordID() int64 {
	return b.ID
}

// User は管理画面にログインできるユーザーを表す。
// PasswordHashはシリアライズしない。
type User struct {
	Base
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
}

// PasswordHashValue は保存済みのパスワードハッシュを返す。
// 現在のパスワード確認（編集時）で使用する。
func (u *User) PasswordHashValue() string {
	return u.PasswordHash
}

// Session はユーザーのログインセッションを表す。
// IDはクライアントに渡す不透明なトークン。
type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}
