package dao

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openballot/voting-core/common"
	"github.com/openballot/voting-core/db/model"
)

type TokenDao struct {
	DB *gorm.DB
}

func NewTokenDao(db *gorm.DB) *TokenDao {
	return &TokenDao{
		DB: db,
	}
}

// InsertTokenIdempotent inserts the token unless one already exists for the
// same (election, subject) pair. Returns whether a row was actually written;
// on replay the caller reads the existing row back.
func (d *TokenDao) InsertTokenIdempotent(ctx context.Context, token *model.VotingToken) (bool, error) {
	result := d.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(token)
	if result.Error != nil {
		return false, translateStoreError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// RegisterToken is the s2s pre-registration insert. A duplicate hash is
// reported as ErrDuplicateRegistration, which callers treat as non-fatal.
func (d *TokenDao) RegisterToken(ctx context.Context, token *model.VotingToken) error {
	err := d.DB.WithContext(ctx).Create(token).Error
	if err != nil {
		return translateStoreError(err)
	}
	return nil
}

func (d *TokenDao) GetTokenByHash(ctx context.Context, tokenHash string) (*model.VotingToken, error) {
	token := model.VotingToken{}
	err := d.DB.WithContext(ctx).Where("token_hash = ?", tokenHash).Take(&token).Error
	if err == gorm.ErrRecordNotFound {
		return nil, common.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// GetTokenForSubject returns the token issued to a subject for an election,
// or nil when none exists.
func (d *TokenDao) GetTokenForSubject(ctx context.Context, electionId, subject string) (*model.VotingToken, error) {
	token := model.VotingToken{}
	err := d.DB.WithContext(ctx).
		Where("election_id = ? AND issued_to = ?", electionId, subject).
		Take(&token).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (d *TokenDao) CountTokens(ctx context.Context, electionId string) (int64, error) {
	var count int64
	err := d.DB.WithContext(ctx).Model(&model.VotingToken{}).
		Where("election_id = ?", electionId).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
