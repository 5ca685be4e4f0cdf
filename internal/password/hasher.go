// Package password はパスワードの一方向ハッシュ化と照合を提供する。
//
// ハッシュはpasslibのpbkdf2_sha256形式
// ($pbkdf2-sha256$<rounds>$<salt>$<checksum>) で保存する。
// salt/checksumはpasslib独自のBase64（'+'の代わりに'.'、パディングなし）で符号化する。
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	scheme = "pbkdf2-sha256"

	// DefaultRounds はpasslibのpbkdf2_sha256の既定反復回数。
	DefaultRounds = 29000

	saltLen = 16
	keyLen  = 32
)

// ErrEmptyPassword は空のパスワードをハッシュ化しようとした場合に返される。
var ErrEmptyPassword = errors.New("password cannot be empty")

// Hasher はパスワードのハッシュ化と照合のインターフェース。
// Hashはソルト付きで毎回異なる値を返し、Verifyは決定的に照合する。
type Hasher interface {
	// Hash は平文パスワードからハッシュ文字列を生成する。
	Hash(plain string) (string, error)
	// Verify は平文パスワードがハッシュと一致するかを返す。
	// 不正な形式のハッシュはfalseを返す。
	Verify(plain, hash string) bool
}

// PBKDF2Hasher はPBKDF2-HMAC-SHA256によるHasherの実装。
type PBKDF2Hasher struct {
	rounds int
}

// NewPBKDF2Hasher はPBKDF2Hasherを生成する。
// roundsが0以下の場合はDefaultRoundsを使用する。
func NewPBKDF2Hasher(rounds int) *PBKDF2Hasher {
	if rounds <= 0 {
		rounds = DefaultRounds
	}
	return &PBKDF2Hasher{rounds: rounds}
}

// Hash は平文パスワードからハッシュ文字列を生成する。
func (h *PBKDF2Hasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(plain), salt, h.rounds, keyLen, sha256.New)

	return fmt.Sprintf("$%s$%d$%s$%s", scheme, h.rounds, ab64Encode(salt), ab64Encode(key)), nil
}

// Verify は平文パスワードがハッシュと一致するかを返す。
func (h *PBKDF2Hasher) Verify(plain, hash string) bool {
	rounds, salt, expected, err := parse(hash)
	if err != nil {
		return false
	}

	key := pbkdf2.Key([]byte(plain), salt, rounds, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(key, expected) == 1
}

// parse はハッシュ文字列を反復回数、ソルト、チェックサムに分解する。
func parse(hash string) (int, []byte, []byte, error) {
	// "$pbkdf2-sha256$29000$salt$checksum" を分割すると先頭は空文字列になる
	parts := strings.Split(hash, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != scheme {
		return 0, nil, nil, errors.New("invalid hash format")
	}

	rounds, err := strconv.Atoi(parts[2])
	if err != nil || rounds <= 0 {
		return 0, nil, nil, errors.New("invalid rounds")
	}

	salt, err := ab64Decode(parts[3])
	if err != nil {
		return 0, nil, nil, fmt.Errorf("invalid salt: %w", err)
	}

	checksum, err := ab64Decode(parts[4])
	if err != nil || len(checksum) == 0 {
		return 0, nil, nil, errors.New("invalid checksum")
	}

	return rounds, salt, checksum, nil
}

// ab64Encode はpasslibのadapted base64で符号化する。
func ab64Encode(b []byte) string {
	return strings.ReplaceAll(base64.RawStdEncoding.EncodeToString(b), "+", ".")
}

// ab64Decode はpasslibのadapted base64を復号する。
func ab64Decode(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.ReplaceAll(s, ".", "+"))
}

// compile-time interface check
var _ Hasher = (*PBKDF2Hasher)(nil)
