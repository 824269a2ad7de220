package lifecycle

import (
	"context"

	"github.com/openballot/voting-core/db/dao"
	"github.com/openballot/voting-core/db/model"
)

type DataProvider interface {
	SaveElection(ctx context.Context, election *model.Election, answers []*model.Answer) error
	GetElection(ctx context.Context, electionId string) (*model.Election, error)
	GetAnswers(ctx context.Context, electionId string) ([]*model.Answer, error)
	ListElections(ctx context.Context, includeHidden bool) ([]*model.Election, error)
	UpdateElection(ctx context.Context, election *model.Election) error
	EditElection(ctx context.Context, electionId, actor string,
		apply func(election *model.Election) ([]*model.Answer, bool, error)) (*model.Election, error)
	TransitionElection(ctx context.Context, electionId, actor string,
		apply func(election *model.Election) (bool, error)) (*model.Election, error)
	SaveAuditEntry(ctx context.Context, entry *model.AuditLogEntry) error
}

type DataHandler struct {
	daoManager *dao.DaoManager
}

func NewDataHandler(daoManager *dao.DaoManager) *DataHandler {
	return &DataHandler{
		daoManager: daoManager,
	}
}

func (h *DataHandler) SaveElection(ctx context.Context, election *model.Election, answers []*model.Answer) error {
	return h.daoManager.SaveElection(ctx, election, answers)
}

func (h *DataHandler) GetElection(ctx context.Context, electionId string) (*model.Election, error) {
	return h.daoManager.GetElection(ctx, electionId)
}

func (h *DataHandler) GetAnswers(ctx context.Context, electionId string) ([]*model.Answer, error) {
	return h.daoManager.GetAnswers(ctx, electionId)
}

func (h *DataHandler) ListElections(ctx context.Context, includeHidden bool) ([]*model.Election, error) {
	return h.daoManager.ListElections(ctx, includeHidden)
}

func (h *DataHandler) UpdateElection(ctx context.Context, election *model.Election) error {
	return h.daoManager.UpdateElection(ctx, election)
}

func (h *DataHandler) EditElection(ctx context.Context, electionId, actor string,
	apply func(election *model.Election) ([]*model.Answer, bool, error),
) (*model.Election, error) {
	return h.daoManager.EditElection(ctx, electionId, actor, apply)
}

func (h *DataHandler) TransitionElection(ctx context.Context, electionId, actor string,
	apply func(election *model.Election) (bool, error),
) (*model.Election, error) {
	return h.daoManager.TransitionElection(ctx, electionId, actor, apply)
}

func (h *DataHandler) SaveAuditEntry(ctx context.Context, entry *model.AuditLogEntry) error {
	return h.daoManager.SaveAuditEntry(ctx, entry)
}
