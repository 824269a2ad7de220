package model

import (
	"gorm.io/gorm"
)

type Election struct {
	Id                string         `gorm:"type:varchar(36);primaryKey"`
	Title             string         `gorm:"type:varchar(255);NOT NULL"`
	Description       string         `gorm:"type:text"`
	Question          string         `gorm:"type:text;NOT NULL"`
	VotingMode        VotingMode     `gorm:"NOT NULL"`
	MaxSelections     int            `gorm:"NOT NULL;default:1"`
	EligibilityPolicy string         `gorm:"type:varchar(16);NOT NULL"`
	Status            ElectionStatus `gorm:"NOT NULL;index:idx_status"`
	Hidden            bool           `gorm:"NOT NULL;default:false"`
	ScheduledStart    int64          `gorm:"NOT NULL;default:0;index:idx_scheduled_start"`
	ScheduledEnd      int64          `gorm:"NOT NULL;default:0;index:idx_scheduled_end"`
	VotingStartsAt    int64          `gorm:"NOT NULL;default:0"`
	VotingEndsAt      int64          `gorm:"NOT NULL;default:0"`
	CreatedBy         string         `gorm:"type:varchar(64);NOT NULL"`
	UpdatedBy         string         `gorm:"type:varchar(64);NOT NULL"`
	CreatedTime       int64          `gorm:"NOT NULL"`
	UpdatedTime       int64          `gorm:"NOT NULL"`
}

func (*Election) TableName() string {
	return "elections"
}

func InitElectionTable(db *gorm.DB) {
	if !db.Migrator().HasTable(&Election{}) {
		err := db.Migrator().CreateTable(&Election{})
		if err != nil {
			panic(err)
		}
	}
}

// Answer is one declared answer option of an election. AnswerId is the stable
// key ballots reference; DisplayText is presentation only.
type Answer struct {
	Id          int64  `gorm:"primaryKey;autoIncrement"`
	ElectionId  string `gorm:"type:varchar(36);NOT NULL;uniqueIndex:idx_election_answer,priority:1"`
	AnswerId    string `gorm:"type:varchar(64);NOT NULL;uniqueIndex:idx_election_answer,priority:2"`
	DisplayText string `gorm:"type:varchar(255);NOT NULL"`
	SortOrder   int    `gorm:"NOT NULL;default:0"`
}

func (*Answer) TableName() string {
	return "election_answers"
}

func InitAnswerTable(db *gorm.DB) {
	if !db.Migrator().HasTable(&Answer{}) {
		err := db.Migrator().CreateTable(&Answer{})
		if err != nil {
			panic(err)
		}
	}
}

type ElectionStatus int

const (
	Draft     ElectionStatus = iota // Editable, no tokens, no ballots
	Published                       // Metadata edits only, tokens may be pre-provisioned
	Open                            // Tokens issued and ballots accepted
	Paused                          // Casting rejected, resumable back to Open
	Closed                          // Read-only, results become available
	Archived                        // Terminal historical record
	Deleted                         // Terminal soft-delete, reachable from Draft only
)

func (s ElectionStatus) String() string {
	switch s {
	case Draft:
		return "draft"
	case Published:
		return "published"
	case Open:
		return "open"
	case Paused:
		return "paused"
	case Closed:
		return "closed"
	case Archived:
		return "archived"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

type VotingMode int

const (
	SingleChoice VotingMode = iota
	MultiChoice
)

const (
	PolicyMembers = "members"
	PolicyAdmins  = "admins"
	PolicyAll     = "all"
)
