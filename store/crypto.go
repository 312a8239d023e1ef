package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize     = 16
	keySize      = 32
	pbkdf2Rounds = 100_000
)

// Envelope 是加密后写入磁盘的信封。
type Envelope struct {
	Salt  []byte `json:"salt"`
	Nonce []byte `json:"nonce"`
	Data  []byte `json:"data"`
}

// Sealer 用口令派生 AES-256-GCM 密钥（PBKDF2-SHA256），每次加密使用新的盐与随机数。
type Sealer struct {
	passphrase []byte
	rounds     int
}

// NewSealer 创建加密器；口令不能为空。
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, errors.New("口令不能为空")
	}
	return &Sealer{passphrase: []byte(passphrase), rounds: pbkdf2Rounds}, nil
}

func (s *Sealer) gcm(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(s.passphrase, salt, s.rounds, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("创建 AES 失败: %w", err)
	}
	return cipher.NewGCM(block)
}

// Seal 加密 plain。
func (s *Sealer) Seal(plain []byte) (*Envelope, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("生成盐失败: %w", err)
	}
	aead, err := s.gcm(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("生成随机数失败: %w", err)
	}
	return &Envelope{Salt: salt, Nonce: nonce, Data: aead.Seal(nil, nonce, plain, nil)}, nil
}

// Open 解密信封；口令错误或数据被篡改时返回 ErrBadPassphrase。
func (s *Sealer) Open(env *Envelope) ([]byte, error) {
	if env == nil || len(env.Salt) == 0 {
		return nil, fmt.Errorf("加密信封不完整: %w", ErrBadPassphrase)
	}
	aead, err := s.gcm(env.Salt)
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("随机数长度错误: %w", ErrBadPassphrase)
	}
	plain, err := aead.Open(nil, env.Nonce, env.Data, nil)
	if err != nil {
		return nil, ErrBadPassphrase
	}
	return plain, nil
}
