package common

import "github.com/google/uuid"

// CorrelationID links a token-issuance event to its eventual ballot-recording
// event across the two services. It is generated at issuance time, carries no
// voter identity and cannot be converted back to one.
type CorrelationID string

func NewCorrelationID() CorrelationID {
	return CorrelationID(uuid.NewString())
}

func (c CorrelationID) String() string {
	return string(c)
}
