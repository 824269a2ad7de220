package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openballot/voting-core/common"
	"github.com/openballot/voting-core/db/model"
)

type ElectionDao struct {
	DB *gorm.DB
}

func NewElectionDao(db *gorm.DB) *ElectionDao {
	return &ElectionDao{
		DB: db,
	}
}

// SaveElection inserts an election together with its declared answers.
func (d *ElectionDao) SaveElection(ctx context.Context, election *model.Election, answers []*model.Answer) error {
	return d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(election).Error; err != nil {
			return translateStoreError(err)
		}
		for _, answer := range answers {
			answer.ElectionId = election.Id
			if err := tx.Create(answer).Error; err != nil {
				return translateStoreError(err)
			}
		}
		return nil
	})
}

func (d *ElectionDao) GetElection(ctx context.Context, electionId string) (*model.Election, error) {
	election := model.Election{}
	err := d.DB.WithContext(ctx).Where("id = ?", electionId).Take(&election).Error
	if err == gorm.ErrRecordNotFound {
		return nil, common.ErrElectionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &election, nil
}

func (d *ElectionDao) GetAnswers(ctx context.Context, electionId string) ([]*model.Answer, error) {
	answers := make([]*model.Answer, 0)
	err := d.DB.WithContext(ctx).
		Where("election_id = ?", electionId).
		Order("sort_order asc").
		Find(&answers).Error
	if err != nil {
		return nil, err
	}
	return answers, nil
}

func (d *ElectionDao) ListElections(ctx context.Context, includeHidden bool) ([]*model.Election, error) {
	elections := make([]*model.Election, 0)
	query := d.DB.WithContext(ctx).Where("status <> ?", model.Deleted)
	if !includeHidden {
		query = query.Where("hidden = ?", false)
	}
	err := query.Order("created_time desc").Find(&elections).Error
	if err != nil {
		return nil, err
	}
	return elections, nil
}

// UpdateElection persists metadata edits. Callers enforce which fields are
// editable per lifecycle status.
func (d *ElectionDao) UpdateElection(ctx context.Context, election *model.Election) error {
	return translateStoreError(d.DB.WithContext(ctx).Save(election).Error)
}

// EditElection applies a metadata edit under the same row lock as lifecycle
// transitions. When the apply callback returns a replacement answer set, the
// swap runs in the same transaction, so field edits and answers commit or
// roll back together.
func (d *ElectionDao) EditElection(ctx context.Context, electionId, actor string,
	apply func(election *model.Election) ([]*model.Answer, bool, error),
) (*model.Election, error) {
	var result model.Election
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		election := model.Election{}
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", electionId).
			Take(&election).Error
		if err == gorm.ErrRecordNotFound {
			return common.ErrElectionNotFound
		}
		if err != nil {
			return translateStoreError(err)
		}

		answers, changed, err := apply(&election)
		if err != nil {
			return err
		}
		if changed {
			election.UpdatedBy = actor
			election.UpdatedTime = time.Now().Unix()
			if err := tx.Save(&election).Error; err != nil {
				return translateStoreError(err)
			}
		}
		if answers != nil {
			if err := tx.Where("election_id = ?", electionId).Delete(&model.Answer{}).Error; err != nil {
				return err
			}
			for _, answer := range answers {
				answer.Id = 0
				answer.ElectionId = electionId
				if err := tx.Create(answer).Error; err != nil {
					return translateStoreError(err)
				}
			}
		}
		result = election
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// TransitionElection applies a lifecycle mutation under a row lock so that
// concurrent admin requests serialize. The apply callback mutates the locked
// row; returning changed=false commits without writing (the idempotent
// repeat-transition path).
func (d *ElectionDao) TransitionElection(ctx context.Context, electionId, actor string,
	apply func(election *model.Election) (bool, error),
) (*model.Election, error) {
	var result model.Election
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		election := model.Election{}
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", electionId).
			Take(&election).Error
		if err == gorm.ErrRecordNotFound {
			return common.ErrElectionNotFound
		}
		if err != nil {
			return translateStoreError(err)
		}

		changed, err := apply(&election)
		if err != nil {
			return err
		}
		if changed {
			election.UpdatedBy = actor
			election.UpdatedTime = time.Now().Unix()
			if err := tx.Save(&election).Error; err != nil {
				return translateStoreError(err)
			}
		}
		result = election
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (d *ElectionDao) CountByStatus(ctx context.Context, status model.ElectionStatus) (int64, error) {
	var count int64
	err := d.DB.WithContext(ctx).Model(&model.Election{}).Where("status = ?", status).Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// GetDueScheduled returns elections whose scheduled window boundary has
// passed and which are still in the status the scheduler expects to move.
func (d *ElectionDao) GetDueScheduled(ctx context.Context, status model.ElectionStatus, field string, now int64) ([]*model.Election, error) {
	elections := make([]*model.Election, 0)
	err := d.DB.WithContext(ctx).
		Where("status = ?", status).
		Where(field+" > 0 AND "+field+" <= ?", now).
		Find(&elections).Error
	if err != nil {
		return nil, err
	}
	return elections, nil
}
