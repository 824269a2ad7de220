package model

import (
	"gorm.io/gorm"
)

// Ballot carries no identity. MemberRef is an opaque member identifier present
// only on member-attributed elections; it stays NULL on fully anonymous ones
// so the (election, member) unique index never collides across anonymous rows.
type Ballot struct {
	Id            string  `gorm:"type:varchar(36);primaryKey"`
	ElectionId    string  `gorm:"type:varchar(36);NOT NULL;index:idx_ballot_election;uniqueIndex:idx_election_member,priority:1"`
	MemberRef     *string `gorm:"type:varchar(64);uniqueIndex:idx_election_member,priority:2"`
	TokenHash     string  `gorm:"type:char(64);NOT NULL;uniqueIndex:idx_ballot_token"`
	CorrelationId string  `gorm:"type:varchar(36);NOT NULL;index:idx_ballot_correlation"`
	SubmittedAt   int64   `gorm:"NOT NULL"`
}

func (*Ballot) TableName() string {
	return "ballots"
}

func InitBallotTable(db *gorm.DB) {
	if !db.Migrator().HasTable(&Ballot{}) {
		err := db.Migrator().CreateTable(&Ballot{})
		if err != nil {
			panic(err)
		}
	}
}

// BallotSelection is one chosen answer of a ballot. Single-choice ballots have
// exactly one row; multi-choice ballots have up to max_selections rows.
type BallotSelection struct {
	Id       int64  `gorm:"primaryKey;autoIncrement"`
	BallotId string `gorm:"type:varchar(36);NOT NULL;uniqueIndex:idx_ballot_answer,priority:1"`
	AnswerId string `gorm:"type:varchar(64);NOT NULL;uniqueIndex:idx_ballot_answer,priority:2;index:idx_selection_answer"`
}

func (*BallotSelection) TableName() string {
	return "ballot_selections"
}

func InitBallotSelectionTable(db *gorm.DB) {
	if !db.Migrator().HasTable(&BallotSelection{}) {
		err := db.Migrator().CreateTable(&BallotSelection{})
		if err != nil {
			panic(err)
		}
	}
}
