package tokenissuer

import (
	"context"
	"database/sql"
	"time"

	"github.com/openballot/voting-core/common"
	"github.com/openballot/voting-core/config"
	"github.com/openballot/voting-core/db/model"
	"github.com/openballot/voting-core/keys"
	"github.com/openballot/voting-core/lifecycle"
	"github.com/openballot/voting-core/logging"
	"github.com/openballot/voting-core/metrics"
	"github.com/openballot/voting-core/util"
)

// AuthContext is the pre-resolved identity capability handed to the issuer.
// Authentication and claim parsing happen upstream; the core only consumes
// the opaque subject and the resolved eligibility flags.
type AuthContext struct {
	Subject  string
	IsMember bool
	IsAdmin  bool
}

// IssuedToken carries the plaintext secret back to the voter. The plaintext
// exists only in this response; the store keeps the digest.
type IssuedToken struct {
	Plaintext     string
	TokenHash     string
	ExpiresAt     int64
	CorrelationId common.CorrelationID
	Replayed      bool
}

type Issuer struct {
	config        *config.Config
	keyManager    keys.KeyManager
	dataProvider  DataProvider
	metricService *metrics.MetricService
}

func NewIssuer(cfg *config.Config, keyManager keys.KeyManager, dataProvider DataProvider, metricService *metrics.MetricService) *Issuer {
	return &Issuer{
		config:        cfg,
		keyManager:    keyManager,
		dataProvider:  dataProvider,
		metricService: metricService,
	}
}

// IssueToken checks eligibility and election state, then mints the one-time
// voting token for (identity, election). Issuance is idempotent: the secret
// is derived deterministically and the (election, subject) unique index
// guarantees at most one row, so a retried request returns the same token.
func (i *Issuer) IssueToken(ctx context.Context, auth AuthContext, electionId string) (*IssuedToken, error) {
	startTime := time.Now()
	correlationId := common.NewCorrelationID()

	token, err := i.issue(ctx, auth, electionId, correlationId)
	if err != nil {
		i.metricService.IncIssuanceRejected(common.ReasonFor(err))
		i.audit(ctx, correlationId, model.AuditTokenRejected, electionId, "", common.ReasonFor(err))
		return nil, err
	}

	i.metricService.IncTokensIssued()
	i.metricService.SetIssueDuration(time.Since(startTime))
	i.audit(ctx, token.CorrelationId, model.AuditTokenIssued, electionId, token.TokenHash, "")
	logging.Logger.Infof("token issued, election_id=%s, token_hash=%s, correlation_id=%s, replayed=%t",
		electionId, token.TokenHash, token.CorrelationId, token.Replayed)
	return token, nil
}

func (i *Issuer) issue(ctx context.Context, auth AuthContext, electionId string, correlationId common.CorrelationID) (*IssuedToken, error) {
	election, err := i.dataProvider.GetElection(ctx, electionId)
	if err != nil {
		return nil, err
	}
	if !lifecycle.AcceptsIssuance(election.Status) {
		return nil, common.ErrIssuanceClosed
	}
	if !eligible(auth, election.EligibilityPolicy) {
		return nil, common.ErrNotEligible
	}

	now := time.Now()
	plaintext := i.keyManager.DeriveTokenSecret(electionId, auth.Subject)
	tokenHash := util.HashToken(plaintext)

	var expiresAt int64
	if i.config.AuthConfig.TokenTTLSecs > 0 {
		expiresAt = now.Add(time.Duration(i.config.AuthConfig.TokenTTLSecs) * time.Second).Unix()
	}

	row := &model.VotingToken{
		TokenHash:     tokenHash,
		ElectionId:    sql.NullString{String: electionId, Valid: true},
		IssuedTo:      auth.Subject,
		CorrelationId: correlationId.String(),
		IssuedAt:      now.Unix(),
		ExpiresAt:     expiresAt,
	}
	inserted, err := i.dataProvider.InsertTokenIdempotent(ctx, row)
	if err != nil {
		return nil, err
	}
	if inserted {
		return &IssuedToken{
			Plaintext:     plaintext,
			TokenHash:     tokenHash,
			ExpiresAt:     expiresAt,
			CorrelationId: correlationId,
		}, nil
	}

	// Idempotent replay: read the existing row back and return the same
	// token, as long as it is still usable.
	existing, err := i.dataProvider.GetTokenForSubject(ctx, electionId, auth.Subject)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, common.ErrInvalidToken
	}
	if existing.Consumed {
		return nil, common.ErrTokenAlreadyUsed
	}
	if existing.ExpiresAt > 0 && now.Unix() > existing.ExpiresAt {
		return nil, common.ErrInvalidToken
	}
	return &IssuedToken{
		Plaintext:     plaintext,
		TokenHash:     existing.TokenHash,
		ExpiresAt:     existing.ExpiresAt,
		CorrelationId: common.CorrelationID(existing.CorrelationId),
		Replayed:      true,
	}, nil
}

// RegisterToken serves the s2s pre-registration endpoint: it records a token
// hash minted by a remote issuer instance so ballots can be cast against it.
// Duplicate registration is reported but non-fatal for the caller.
func (i *Issuer) RegisterToken(ctx context.Context, tokenHash, electionId string, correlationId common.CorrelationID, expiresAt int64) error {
	// The remote issuer never shares the subject; a hash-derived placeholder
	// keeps the (election, issued_to) index satisfied without identity. The
	// registered flag stops the placeholder from ever being treated as a
	// member reference.
	row := &model.VotingToken{
		TokenHash:     tokenHash,
		ElectionId:    sql.NullString{String: electionId, Valid: electionId != ""},
		IssuedTo:      tokenHash[:16],
		CorrelationId: correlationId.String(),
		IssuedAt:      time.Now().Unix(),
		ExpiresAt:     expiresAt,
		Registered:    true,
	}
	err := i.dataProvider.RegisterToken(ctx, row)
	if err != nil {
		return err
	}
	i.audit(ctx, correlationId, model.AuditTokenRegistered, electionId, tokenHash, "")
	return nil
}

func (i *Issuer) audit(ctx context.Context, correlationId common.CorrelationID, eventType, electionId, tokenHash, reason string) {
	outcome := model.AuditOutcomeOK
	if reason != "" {
		outcome = model.AuditOutcomeRejected
	}
	entry := &model.AuditLogEntry{
		CorrelationId: correlationId.String(),
		EventType:     eventType,
		ElectionId:    electionId,
		TokenHash:     tokenHash,
		Outcome:       outcome,
		Reason:        reason,
		CreatedTime:   time.Now().Unix(),
	}
	if err := i.dataProvider.SaveAuditEntry(ctx, entry); err != nil {
		logging.Logger.Errorf("failed to audit token issuance, election_id=%s, err=%+v", electionId, err)
	}
}

func eligible(auth AuthContext, policy string) bool {
	switch policy {
	case model.PolicyMembers:
		return auth.IsMember
	case model.PolicyAdmins:
		return auth.IsAdmin
	case model.PolicyAll:
		return true
	}
	return false
}
