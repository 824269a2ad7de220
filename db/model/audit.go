package model

import (
	"gorm.io/gorm"
)

// AuditLogEntry records every issuance and casting attempt, success or
// rejection. It carries the correlation id and the token hash, never the
// plaintext token and never member PII.
type AuditLogEntry struct {
	Id            int64  `gorm:"primaryKey;autoIncrement"`
	CorrelationId string `gorm:"type:varchar(36);NOT NULL;index:idx_audit_correlation"`
	EventType     string `gorm:"type:varchar(48);NOT NULL;index:idx_audit_event_type"`
	ElectionId    string `gorm:"type:varchar(36);index:idx_audit_election"`
	TokenHash     string `gorm:"type:char(64)"`
	Outcome       string `gorm:"type:varchar(16);NOT NULL"`
	Reason        string `gorm:"type:varchar(48)"`
	CreatedTime   int64  `gorm:"NOT NULL;index:idx_audit_created"`
}

func (*AuditLogEntry) TableName() string {
	return "audit_log"
}

func InitAuditLogTable(db *gorm.DB) {
	if !db.Migrator().HasTable(&AuditLogEntry{}) {
		err := db.Migrator().CreateTable(&AuditLogEntry{})
		if err != nil {
			panic(err)
		}
	}
}

// Audit event types.
const (
	AuditTokenIssued     = "token_issued"
	AuditTokenRejected   = "token_issue_rejected"
	AuditTokenRegistered = "token_registered"
	AuditBallotRecorded  = "ballot_recorded"
	AuditBallotRejected  = "ballot_rejected"
	AuditTransition      = "lifecycle_transition"
)

const (
	AuditOutcomeOK       = "ok"
	AuditOutcomeRejected = "rejected"
)
