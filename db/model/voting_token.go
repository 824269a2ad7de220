package model

import (
	"database/sql"

	"gorm.io/gorm"
)

// VotingToken is stored under the digest of its secret; the plaintext is
// returned to the voter once and never persisted. ElectionId is nullable to
// keep legacy anonymous-only tokens readable; issuance always sets it.
type VotingToken struct {
	TokenHash     string         `gorm:"type:char(64);primaryKey"`
	ElectionId    sql.NullString `gorm:"type:varchar(36);index:idx_token_election;uniqueIndex:idx_election_issued_to,priority:1"`
	IssuedTo      string         `gorm:"type:varchar(64);NOT NULL;uniqueIndex:idx_election_issued_to,priority:2"`
	CorrelationId string         `gorm:"type:varchar(36);NOT NULL;index:idx_token_correlation"`
	IssuedAt      int64          `gorm:"NOT NULL"`
	ExpiresAt     int64          `gorm:"NOT NULL;default:0"`
	// Registered marks tokens pre-registered by a remote issuer. Their
	// subject is unknown, so ballots cast with them stay unattributed.
	Registered bool  `gorm:"NOT NULL;default:false"`
	Consumed   bool  `gorm:"NOT NULL;default:false"`
	ConsumedAt int64 `gorm:"NOT NULL;default:0"`
}

func (*VotingToken) TableName() string {
	return "voting_tokens"
}

func InitVotingTokenTable(db *gorm.DB) {
	if !db.Migrator().HasTable(&VotingToken{}) {
		err := db.Migrator().CreateTable(&VotingToken{})
		if err != nil {
			panic(err)
		}
	}
}
