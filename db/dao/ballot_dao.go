package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openballot/voting-core/common"
	"github.com/openballot/voting-core/db/model"
	"github.com/openballot/voting-core/util"
)

type BallotDao struct {
	DB *gorm.DB
}

func NewBallotDao(db *gorm.DB) *BallotDao {
	return &BallotDao{
		DB: db,
	}
}

// CastRequest is the input to the cast transaction after the service layer
// hashed the presented token.
type CastRequest struct {
	TokenHash string
	AnswerIds []string
	BallotId  string
	Now       time.Time
}

// CastBallot runs the whole consume-and-record sequence in one transaction:
//
//  1. lock the token row with FOR UPDATE NOWAIT; immediate failure surfaces
//     as ErrLockContention, a retryable signal, never a hard failure
//  2. reject unknown, consumed and expired tokens
//  3. reject unless the token's election is open
//  4. reject answers not declared on the election, duplicate answers and
//     selections exceeding max_selections
//  5. insert the ballot and its selections, mark the token consumed
//
// A unique-key violation surfacing at insert time (a concurrent duplicate
// that slipped past the lock) is translated to ErrTokenAlreadyUsed or
// ErrDuplicateVote by the store-error translation.
func (d *BallotDao) CastBallot(ctx context.Context, req *CastRequest) (*model.Ballot, error) {
	var ballot *model.Ballot
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		token := model.VotingToken{}
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"}).
			Where("token_hash = ?", req.TokenHash).
			Take(&token).Error
		if err == gorm.ErrRecordNotFound {
			return common.ErrInvalidToken
		}
		if err != nil {
			return translateStoreError(err)
		}

		if token.Consumed {
			return common.ErrTokenAlreadyUsed
		}
		if token.ExpiresAt > 0 && req.Now.Unix() > token.ExpiresAt {
			return common.ErrInvalidToken
		}
		if !token.ElectionId.Valid {
			// Legacy anonymous-only token with no election attached.
			return common.ErrVotingNotOpen
		}

		election := model.Election{}
		err = tx.Where("id = ?", token.ElectionId.String).Take(&election).Error
		if err == gorm.ErrRecordNotFound {
			return common.ErrElectionNotFound
		}
		if err != nil {
			return translateStoreError(err)
		}
		switch election.Status {
		case model.Open:
		case model.Paused:
			return common.ErrVotingPaused
		default:
			return common.ErrVotingNotOpen
		}

		if err := validateSelections(tx, &election, req.AnswerIds); err != nil {
			return err
		}

		// Member attribution applies whenever eligibility is restricted and
		// the token's subject is known. Fully anonymous elections and tokens
		// pre-registered by a remote issuer leave member_ref NULL.
		var memberRef *string
		if election.EligibilityPolicy != model.PolicyAll && !token.Registered {
			issuedTo := token.IssuedTo
			memberRef = &issuedTo
		}

		ballot = &model.Ballot{
			Id:            req.BallotId,
			ElectionId:    election.Id,
			MemberRef:     memberRef,
			TokenHash:     token.TokenHash,
			CorrelationId: token.CorrelationId,
			SubmittedAt:   util.TruncateToMinute(req.Now).Unix(),
		}
		if err := tx.Create(ballot).Error; err != nil {
			return translateStoreError(err)
		}
		for _, answerId := range req.AnswerIds {
			selection := &model.BallotSelection{
				BallotId: ballot.Id,
				AnswerId: answerId,
			}
			if err := tx.Create(selection).Error; err != nil {
				return translateStoreError(err)
			}
		}

		err = tx.Model(&model.VotingToken{}).
			Where("token_hash = ?", token.TokenHash).
			Updates(map[string]interface{}{
				"consumed":    true,
				"consumed_at": req.Now.Unix(),
			}).Error
		if err != nil {
			return translateStoreError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ballot, nil
}

func validateSelections(tx *gorm.DB, election *model.Election, answerIds []string) error {
	if len(answerIds) == 0 {
		return common.ErrInvalidAnswer
	}
	if election.VotingMode == model.SingleChoice && len(answerIds) != 1 {
		return common.ErrInvalidAnswer
	}
	if election.VotingMode == model.MultiChoice && len(answerIds) > election.MaxSelections {
		return common.ErrInvalidAnswer
	}
	if !util.UniqueStrings(answerIds) {
		return common.ErrInvalidAnswer
	}

	declared := make([]*model.Answer, 0)
	if err := tx.Where("election_id = ?", election.Id).Find(&declared).Error; err != nil {
		return translateStoreError(err)
	}
	declaredIds := make([]string, 0, len(declared))
	for _, answer := range declared {
		declaredIds = append(declaredIds, answer.AnswerId)
	}
	for _, answerId := range answerIds {
		if util.IndexOf(answerId, declaredIds) < 0 {
			return common.ErrInvalidAnswer
		}
	}
	return nil
}

// AnswerCount is one row of the per-answer aggregation.
type AnswerCount struct {
	AnswerId string `gorm:"column:answer_id"`
	Count    int64  `gorm:"column:cnt"`
}

// GetAnswerCounts aggregates recorded selections per answer id.
func (d *BallotDao) GetAnswerCounts(ctx context.Context, electionId string) ([]*AnswerCount, error) {
	counts := make([]*AnswerCount, 0)
	err := d.DB.WithContext(ctx).Raw(
		"SELECT s.answer_id AS answer_id, COUNT(*) AS cnt "+
			"FROM ballot_selections s JOIN ballots b ON b.id = s.ballot_id "+
			"WHERE b.election_id = ? GROUP BY s.answer_id",
		electionId).Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (d *BallotDao) CountBallots(ctx context.Context, electionId string) (int64, error) {
	var count int64
	err := d.DB.WithContext(ctx).Model(&model.Ballot{}).
		Where("election_id = ?", electionId).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (d *BallotDao) IsBallotExists(ctx context.Context, tokenHash string) (bool, error) {
	exists := false
	if err := d.DB.WithContext(ctx).Raw(
		"SELECT EXISTS(SELECT id FROM ballots WHERE token_hash = ?)",
		tokenHash).Scan(&exists).Error; err != nil {
		return false, err
	}
	return exists, nil
}
