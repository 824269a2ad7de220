package tokenissuer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openballot/voting-core/common"
	"github.com/openballot/voting-core/config"
	"github.com/openballot/voting-core/db/model"
	"github.com/openballot/voting-core/keys"
	"github.com/openballot/voting-core/metrics"
)

// One registry per test binary; prometheus rejects duplicate collectors.
var testMetrics = metrics.NewMetricService(&config.Config{})

type fakeProvider struct {
	elections map[string]*model.Election
	tokens    map[string]*model.VotingToken
	audits    []*model.AuditLogEntry
}

func newFakeProvider(elections ...*model.Election) *fakeProvider {
	f := &fakeProvider{
		elections: make(map[string]*model.Election),
		tokens:    make(map[string]*model.VotingToken),
	}
	for _, election := range elections {
		f.elections[election.Id] = election
	}
	return f
}

func (f *fakeProvider) GetElection(ctx context.Context, electionId string) (*model.Election, error) {
	election, ok := f.elections[electionId]
	if !ok {
		return nil, common.ErrElectionNotFound
	}
	return election, nil
}

func (f *fakeProvider) InsertTokenIdempotent(ctx context.Context, token *model.VotingToken) (bool, error) {
	if _, ok := f.tokens[token.TokenHash]; ok {
		return false, nil
	}
	for _, existing := range f.tokens {
		if existing.ElectionId == token.ElectionId && existing.IssuedTo == token.IssuedTo {
			return false, nil
		}
	}
	f.tokens[token.TokenHash] = token
	return true, nil
}

func (f *fakeProvider) GetTokenForSubject(ctx context.Context, electionId, subject string) (*model.VotingToken, error) {
	for _, token := range f.tokens {
		if token.ElectionId.String == electionId && token.IssuedTo == subject {
			return token, nil
		}
	}
	return nil, nil
}

func (f *fakeProvider) RegisterToken(ctx context.Context, token *model.VotingToken) error {
	if _, ok := f.tokens[token.TokenHash]; ok {
		return common.ErrDuplicateRegistration
	}
	f.tokens[token.TokenHash] = token
	return nil
}

func (f *fakeProvider) SaveAuditEntry(ctx context.Context, entry *model.AuditLogEntry) error {
	f.audits = append(f.audits, entry)
	return nil
}

func openElection() *model.Election {
	return &model.Election{
		Id:                "election-1",
		Title:             "Board election",
		Question:          "Who?",
		Status:            model.Open,
		EligibilityPolicy: model.PolicyMembers,
	}
}

func newTestIssuer(provider *fakeProvider, ttlSecs int64) *Issuer {
	keyManager, err := keys.NewKeyManager("0123456789abcdef0123456789abcdef", "s2s-secret-for-tests")
	if err != nil {
		panic(err)
	}
	cfg := &config.Config{}
	cfg.AuthConfig.TokenTTLSecs = ttlSecs
	return NewIssuer(cfg, keyManager, provider, testMetrics)
}

func memberAuth() AuthContext {
	return AuthContext{Subject: "subject-1", IsMember: true}
}

func TestIssueToken(t *testing.T) {
	provider := newFakeProvider(openElection())
	issuer := newTestIssuer(provider, 3600)

	token, err := issuer.IssueToken(context.Background(), memberAuth(), "election-1")
	require.NoError(t, err)
	require.NotEmpty(t, token.Plaintext)
	require.Len(t, token.TokenHash, 64)
	require.False(t, token.Replayed)
	require.Greater(t, token.ExpiresAt, time.Now().Unix())

	require.Len(t, provider.tokens, 1)
	stored := provider.tokens[token.TokenHash]
	require.Equal(t, "subject-1", stored.IssuedTo)
	require.Equal(t, "election-1", stored.ElectionId.String)

	require.Len(t, provider.audits, 1)
	require.Equal(t, model.AuditTokenIssued, provider.audits[0].EventType)
	require.Equal(t, model.AuditOutcomeOK, provider.audits[0].Outcome)
}

func TestIssueTokenIdempotent(t *testing.T) {
	provider := newFakeProvider(openElection())
	issuer := newTestIssuer(provider, 3600)
	ctx := context.Background()

	first, err := issuer.IssueToken(ctx, memberAuth(), "election-1")
	require.NoError(t, err)

	// The retried request returns the same secret and mints no second row.
	second, err := issuer.IssueToken(ctx, memberAuth(), "election-1")
	require.NoError(t, err)
	require.True(t, second.Replayed)
	require.Equal(t, first.Plaintext, second.Plaintext)
	require.Equal(t, first.TokenHash, second.TokenHash)
	require.Len(t, provider.tokens, 1)
}

func TestIssueTokenConsumed(t *testing.T) {
	provider := newFakeProvider(openElection())
	issuer := newTestIssuer(provider, 3600)
	ctx := context.Background()

	token, err := issuer.IssueToken(ctx, memberAuth(), "election-1")
	require.NoError(t, err)
	provider.tokens[token.TokenHash].Consumed = true

	_, err = issuer.IssueToken(ctx, memberAuth(), "election-1")
	require.ErrorIs(t, err, common.ErrTokenAlreadyUsed)
}

func TestIssueTokenExpiredReplay(t *testing.T) {
	provider := newFakeProvider(openElection())
	issuer := newTestIssuer(provider, 3600)
	ctx := context.Background()

	token, err := issuer.IssueToken(ctx, memberAuth(), "election-1")
	require.NoError(t, err)
	provider.tokens[token.TokenHash].ExpiresAt = time.Now().Add(-time.Hour).Unix()

	_, err = issuer.IssueToken(ctx, memberAuth(), "election-1")
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestIssueTokenNotEligible(t *testing.T) {
	provider := newFakeProvider(openElection())
	issuer := newTestIssuer(provider, 3600)

	_, err := issuer.IssueToken(context.Background(), AuthContext{Subject: "subject-2"}, "election-1")
	require.ErrorIs(t, err, common.ErrNotEligible)
	require.Empty(t, provider.tokens)

	require.Len(t, provider.audits, 1)
	require.Equal(t, model.AuditTokenRejected, provider.audits[0].EventType)
	require.Equal(t, common.ReasonNotEligible, provider.audits[0].Reason)
}

func TestIssueTokenPolicies(t *testing.T) {
	ctx := context.Background()

	adminOnly := openElection()
	adminOnly.EligibilityPolicy = model.PolicyAdmins
	provider := newFakeProvider(adminOnly)
	issuer := newTestIssuer(provider, 3600)

	_, err := issuer.IssueToken(ctx, memberAuth(), "election-1")
	require.ErrorIs(t, err, common.ErrNotEligible)
	_, err = issuer.IssueToken(ctx, AuthContext{Subject: "admin-1", IsAdmin: true}, "election-1")
	require.NoError(t, err)

	public := openElection()
	public.Id = "election-2"
	public.EligibilityPolicy = model.PolicyAll
	provider = newFakeProvider(public)
	issuer = newTestIssuer(provider, 3600)
	_, err = issuer.IssueToken(ctx, AuthContext{Subject: "anyone"}, "election-2")
	require.NoError(t, err)
}

func TestIssueTokenStatusGate(t *testing.T) {
	ctx := context.Background()

	for _, status := range []model.ElectionStatus{model.Published, model.Open, model.Paused} {
		election := openElection()
		election.Status = status
		issuer := newTestIssuer(newFakeProvider(election), 3600)
		_, err := issuer.IssueToken(ctx, memberAuth(), "election-1")
		require.NoError(t, err, "status %s", status)
	}

	for _, status := range []model.ElectionStatus{model.Draft, model.Closed, model.Archived, model.Deleted} {
		election := openElection()
		election.Status = status
		issuer := newTestIssuer(newFakeProvider(election), 3600)
		_, err := issuer.IssueToken(ctx, memberAuth(), "election-1")
		require.ErrorIs(t, err, common.ErrIssuanceClosed, "status %s", status)
	}
}

func TestIssueTokenUnknownElection(t *testing.T) {
	issuer := newTestIssuer(newFakeProvider(), 3600)
	_, err := issuer.IssueToken(context.Background(), memberAuth(), "no-such-election")
	require.ErrorIs(t, err, common.ErrElectionNotFound)
}

func TestIssueTokenNoTTL(t *testing.T) {
	provider := newFakeProvider(openElection())
	issuer := newTestIssuer(provider, 0)

	token, err := issuer.IssueToken(context.Background(), memberAuth(), "election-1")
	require.NoError(t, err)
	require.Zero(t, token.ExpiresAt)
}

func TestRegisterToken(t *testing.T) {
	provider := newFakeProvider(openElection())
	issuer := newTestIssuer(provider, 3600)
	ctx := context.Background()

	tokenHash := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	correlationId := common.NewCorrelationID()
	require.NoError(t, issuer.RegisterToken(ctx, tokenHash, "election-1", correlationId, 0))
	require.Len(t, provider.tokens, 1)
	require.Len(t, provider.audits, 1)
	require.Equal(t, model.AuditTokenRegistered, provider.audits[0].EventType)

	// The stored row carries the registered flag, so casting never treats the
	// issued_to placeholder as a member reference.
	stored := provider.tokens[tokenHash]
	require.True(t, stored.Registered)
	require.NotEmpty(t, stored.IssuedTo)

	err := issuer.RegisterToken(ctx, tokenHash, "election-1", correlationId, 0)
	require.ErrorIs(t, err, common.ErrDuplicateRegistration)
}
