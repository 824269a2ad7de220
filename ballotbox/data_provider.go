package ballotbox

import (
	"context"

	"github.com/openballot/voting-core/db/dao"
	"github.com/openballot/voting-core/db/model"
)

type DataProvider interface {
	CastBallot(ctx context.Context, req *dao.CastRequest) (*model.Ballot, error)
	GetTokenByHash(ctx context.Context, tokenHash string) (*model.VotingToken, error)
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

func (h *DataHandler) CastBallot(ctx context.Context, req *dao.CastRequest) (*model.Ballot, error) {
	return h.daoManager.CastBallot(ctx, req)
}

func (h *DataHandler) GetTokenByHash(ctx context.Context, tokenHash string) (*model.VotingToken, error) {
	return h.daoManager.GetTokenByHash(ctx, tokenHash)
}

func (h *DataHandler) SaveAuditEntry(ctx context.Context, entry *model.AuditLogEntry) error {
	return h.daoManager.SaveAuditEntry(ctx, entry)
}
