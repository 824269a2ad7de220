package keys

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// KeyManager holds the two secrets the voting core operates with: the token
// issuing key and the s2s pre-shared secret. The issuing key is what makes a
// token secret derivable only server-side; a leaked database alone cannot link
// a ballot hash back to a subject.
type KeyManager interface {
	DeriveTokenSecret(electionId, subject string) string
	VerifyS2SSecret(presented string) bool
}

type keyManager struct {
	issuingKey []byte
	s2sSecret  []byte
}

func NewKeyManager(issuingKey, s2sSecret string) (KeyManager, error) {
	if len(issuingKey) < MinIssuingKeyLen {
		return nil, ErrIssuingKeyTooShort
	}
	if len(s2sSecret) < MinS2SSecretLen {
		return nil, ErrS2SSecretTooShort
	}
	return &keyManager{
		issuingKey: []byte(issuingKey),
		s2sSecret:  []byte(s2sSecret),
	}, nil
}

// DeriveTokenSecret deterministically derives the plaintext token secret for
// one (election, subject) pair. Determinism is what makes token issuance
// idempotent while the database stores only the digest: a replayed request
// re-derives the identical secret and reads back the existing row.
func (k *keyManager) DeriveTokenSecret(electionId, subject string) string {
	mac := hmac.New(sha256.New, k.issuingKey)
	mac.Write([]byte(electionId))
	mac.Write([]byte{0})
	mac.Write([]byte(subject))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyS2SSecret compares in constant time.
func (k *keyManager) VerifyS2SSecret(presented string) bool {
	return hmac.Equal([]byte(presented), k.s2sSecret)
}
