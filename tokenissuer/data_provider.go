package tokenissuer

import (
	"context"

	"github.com/openballot/voting-core/db/dao"
	"github.com/openballot/voting-core/db/model"
)

type DataProvider interface {
	GetElection(ctx context.Context, electionId string) (*model.Election, error)
	InsertTokenIdempotent(ctx context.Context, token *model.VotingToken) (bool, error)
	GetTokenForSubject(ctx context.Context, electionId, subject string) (*model.VotingToken, error)
	RegisterToken(ctx context.Context, token *model.VotingToken) error
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

func (h *DataHandler) GetElection(ctx context.Context, electionId string) (*model.Election, error) {
	return h.daoManager.GetElection(ctx, electionId)
}

func (h *DataHandler) InsertTokenIdempotent(ctx context.Context, token *model.VotingToken) (bool, error) {
	return h.daoManager.InsertTokenIdempotent(ctx, token)
}

func (h *DataHandler) GetTokenForSubject(ctx context.Context, electionId, subject string) (*model.VotingToken, error) {
	return h.daoManager.GetTokenForSubject(ctx, electionId, subject)
}

func (h *DataHandler) RegisterToken(ctx context.Context, token *model.VotingToken) error {
	return h.daoManager.RegisterToken(ctx, token)
}

func (h *DataHandler) SaveAuditEntry(ctx context.Context, entry *model.AuditLogEntry) error {
	return h.daoManager.SaveAuditEntry(ctx, entry)
}
