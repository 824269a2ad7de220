package ballotbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/openballot/voting-core/common"
	"github.com/openballot/voting-core/config"
	"github.com/openballot/voting-core/db/dao"
	"github.com/openballot/voting-core/db/model"
	"github.com/openballot/voting-core/logging"
	"github.com/openballot/voting-core/metrics"
	"github.com/openballot/voting-core/util"
)

type Caster struct {
	config        *config.Config
	dataProvider  DataProvider
	metricService *metrics.MetricService
}

func NewCaster(cfg *config.Config, dataProvider DataProvider, metricService *metrics.MetricService) *Caster {
	return &Caster{
		config:        cfg,
		dataProvider:  dataProvider,
		metricService: metricService,
	}
}

// CastBallot validates and consumes the presented token and records the
// ballot, all atomically. The token itself is the idempotency key: the row
// lock plus the unique indexes make exactly-one-ballot-per-token hold under
// any interleaving of concurrent retries. Every attempt, accepted or
// rejected, leaves one audit entry under the token's correlation id.
func (c *Caster) CastBallot(ctx context.Context, tokenPlaintext string, answerIds []string) (string, error) {
	startTime := time.Now()
	tokenHash := util.HashToken(tokenPlaintext)

	ballot, err := c.dataProvider.CastBallot(ctx, &dao.CastRequest{
		TokenHash: tokenHash,
		AnswerIds: answerIds,
		BallotId:  uuid.NewString(),
		Now:       startTime,
	})
	if err != nil {
		reason := common.ReasonFor(err)
		if errors.Is(err, common.ErrLockContention) {
			// Surge backpressure, not a logic error. The caller retries
			// after a short delay; nothing was consumed.
			c.metricService.IncLockContention()
		} else {
			c.metricService.IncBallotsRejected(reason)
		}
		c.audit(ctx, tokenHash, nil, reason)
		return "", err
	}

	c.metricService.IncBallotsCast()
	c.metricService.SetCastDuration(time.Since(startTime))
	c.audit(ctx, tokenHash, ballot, "")
	logging.Logger.Infof("ballot recorded, election_id=%s, ballot_id=%s, correlation_id=%s",
		ballot.ElectionId, ballot.Id, ballot.CorrelationId)
	return ballot.Id, nil
}

// TokenStatus is the public consumed/unconsumed view of a token. It carries
// no identity and does not distinguish expired from unknown tokens.
type TokenStatus struct {
	Known    bool
	Consumed bool
}

func (c *Caster) GetTokenStatus(ctx context.Context, tokenPlaintext string) (*TokenStatus, error) {
	tokenHash := util.HashToken(tokenPlaintext)
	token, err := c.dataProvider.GetTokenByHash(ctx, tokenHash)
	if errors.Is(err, common.ErrInvalidToken) {
		return &TokenStatus{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &TokenStatus{Known: true, Consumed: token.Consumed}, nil
}

// audit records one entry per attempt. Rejected attempts roll their
// transaction back, so the entry is written outside it; the correlation id is
// recovered from the token row when one exists.
func (c *Caster) audit(ctx context.Context, tokenHash string, ballot *model.Ballot, reason string) {
	entry := &model.AuditLogEntry{
		EventType:   model.AuditBallotRecorded,
		TokenHash:   tokenHash,
		Outcome:     model.AuditOutcomeOK,
		CreatedTime: time.Now().Unix(),
	}
	if ballot != nil {
		entry.CorrelationId = ballot.CorrelationId
		entry.ElectionId = ballot.ElectionId
	} else {
		entry.EventType = model.AuditBallotRejected
		entry.Outcome = model.AuditOutcomeRejected
		entry.Reason = reason
		if token, err := c.dataProvider.GetTokenByHash(ctx, tokenHash); err == nil {
			entry.CorrelationId = token.CorrelationId
			if token.ElectionId.Valid {
				entry.ElectionId = token.ElectionId.String
			}
		} else {
			entry.CorrelationId = uuid.NewString()
		}
	}
	if err := c.dataProvider.SaveAuditEntry(ctx, entry); err != nil {
		logging.Logger.Errorf("failed to audit ballot attempt, token_hash=%s, err=%+v", tokenHash, err)
	}
}
