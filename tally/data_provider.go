package tally

import (
	"context"

	"github.com/openballot/voting-core/db/dao"
	"github.com/openballot/voting-core/db/model"
)

type DataProvider interface {
	GetElection(ctx context.Context, electionId string) (*model.Election, error)
	GetAnswers(ctx context.Context, electionId string) ([]*model.Answer, error)
	GetAnswerCounts(ctx context.Context, electionId string) ([]*dao.AnswerCount, error)
	CountBallots(ctx context.Context, electionId string) (int64, error)
	CountTokens(ctx context.Context, electionId string) (int64, error)
}

type DataHandler struct {
	daoManager *dao.DaoManager
}

func NewDataHandler(daoManager *dao.DaoManager) *DataHandler {
	return &DataHandler{
		daoManager: daoManager,
	}
}

func (h *DataHandler) GetElection(ctx context.Context, electionId string) (*model.Election, error) {
	return h.daoManager.GetElection(ctx, electionId)
}

func (h *DataHandler) GetAnswers(ctx context.Context, electionId string) ([]*model.Answer, error) {
	return h.daoManager.GetAnswers(ctx, electionId)
}

func (h *DataHandler) GetAnswerCounts(ctx context.Context, electionId string) ([]*dao.AnswerCount, error) {
	return h.daoManager.GetAnswerCounts(ctx, electionId)
}

func (h *DataHandler) CountBallots(ctx context.Context, electionId string) (int64, error) {
	return h.daoManager.CountBallots(ctx, electionId)
}

func (h *DataHandler) CountTokens(ctx context.Context, electionId string) (int64, error) {
	return h.daoManager.CountTokens(ctx, electionId)
}
