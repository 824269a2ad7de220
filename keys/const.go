package keys

import "errors"

const (
	MinIssuingKeyLen = 32
	MinS2SSecretLen  = 16
)

var (
	ErrIssuingKeyTooShort = errors.New("issuing key must be at least 32 bytes")
	ErrS2SSecretTooShort  = errors.New("s2s secret must be at least 16 bytes")
)
