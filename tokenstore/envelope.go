package tokenstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmcleod/fitx/internal/util"
)

const (
	envelopeVersion = 1
	envelopeScheme  = "aes256gcm"
	envelopeAAD     = "fitx:token:v1"
)

// ErrUnsupportedEnvelope is returned for envelopes written by an unknown format.
var ErrUnsupportedEnvelope = errors.New("unsupported token envelope")

// Envelope is a token sealed with AES-256-GCM under a wrapping key.
type Envelope struct {
	Ver        int       `json:"ver"`
	Scheme     string    `json:"scheme"`
	Nonce      []byte    `json:"nonce"`
	Ciphertext []byte    `json:"ciphertext"`
	SavedAt    time.Time `json:"saved_at"`
}

// Seal encrypts token under wrappingKey.
func Seal(wrappingKey []byte, token string) (*Envelope, error) {
	sealed, err := util.SealAESGCM([]byte(token), wrappingKey, []byte(envelopeAAD))
	if err != nil {
		return nil, err
	}

	// SealAESGCM returns nonce || ciphertext.
	return &Envelope{
		Ver:        envelopeVersion,
		Scheme:     envelopeScheme,
		Nonce:      sealed[:12],
		Ciphertext: sealed[12:],
		SavedAt:    time.Now().UTC(),
	}, nil
}

// Open decrypts env with wrappingKey.
func Open(wrappingKey []byte, env *Envelope) (string, error) {
	if env.Ver != envelopeVersion {
		return "", fmt.Errorf("%w: version %d", ErrUnsupportedEnvelope, env.Ver)
	}
	if env.Scheme != envelopeScheme {
		return "", fmt.Errorf("%w: scheme %s", ErrUnsupportedEnvelope, env.Scheme)
	}

	full := make([]byte, len(env.Nonce)+len(env.Ciphertext))
	copy(full, env.Nonce)
	copy(full[len(env.Nonce):], env.Ciphertext)

	plain, err := util.OpenAESGCM(full, wrappingKey, []byte(envelopeAAD))
	if err != nil {
		return "", err
	}
	defer util.WipeBytes(plain)
	return string(plain), nil
}
