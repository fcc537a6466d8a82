package util

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const passwordSaltSize = 16

type Argon2idParams struct {
	Time        uint32 `json:"time"`
	MemoryKiB   uint32 `json:"memory"`
	Parallelism uint8  `json:"parallelism"`
	KeyLen      uint32 `json:"key_len"`
}

func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:        1,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
		KeyLen:      32,
	}
}

// PasswordHash is a salted argon2id digest of a password.
type PasswordHash struct {
	Salt   []byte         `json:"salt"`
	Key    []byte         `json:"key"`
	Params Argon2idParams `json:"params"`
}

// HashPassword derives a fresh salted digest for password.
func HashPassword(password string, params Argon2idParams) (PasswordHash, error) {
	salt, err := RandomBytes(passwordSaltSize)
	if err != nil {
		return PasswordHash{}, err
	}
	key, err := deriveArgon2idKey(password, salt, params)
	if err != nil {
		return PasswordHash{}, err
	}
	return PasswordHash{Salt: salt, Key: key, Params: params}, nil
}

// VerifyPassword reports whether password matches h in constant time.
func VerifyPassword(password string, h PasswordHash) bool {
	key, err := deriveArgon2idKey(password, h.Salt, h.Params)
	if err != nil {
		return false
	}
	defer WipeBytes(key)
	return subtle.ConstantTimeCompare(key, h.Key) == 1
}

func deriveArgon2idKey(password string, salt []byte, params Argon2idParams) ([]byte, error) {
	if params.KeyLen != 32 {
		return nil, fmt.Errorf("argon2id key length must be 32 bytes")
	}
	return argon2.IDKey([]byte(Normalize(password)), salt, params.Time, params.MemoryKiB, params.Parallelism, params.KeyLen), nil
}
