package dao

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/openballot/voting-core/common"
)

// MySQL server error numbers this layer cares about.
const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrLockNowait      = 3572
)

// translateStoreError converts driver-level errors into domain sentinels.
// This is the only place MySQL error numbers are interpreted; everything
// above the dao layer sees common.Err* values.
func translateStoreError(err error) error {
	if err == nil {
		return nil
	}
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return err
	}
	switch mysqlErr.Number {
	case mysqlErrLockNowait, mysqlErrLockWaitTimeout:
		return common.ErrLockContention
	case mysqlErrDuplicateEntry:
		// The violated index tells us which invariant fired: one ballot per
		// token, or one ballot per (election, member).
		switch {
		case strings.Contains(mysqlErr.Message, "idx_ballot_token"):
			return common.ErrTokenAlreadyUsed
		case strings.Contains(mysqlErr.Message, "idx_election_member"):
			return common.ErrDuplicateVote
		case strings.Contains(mysqlErr.Message, "idx_election_issued_to"), strings.Contains(mysqlErr.Message, "voting_tokens"):
			return common.ErrDuplicateRegistration
		}
	}
	return err
}
