package dao

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm/clause"

	"github.com/openballot/voting-core/common"
	"github.com/openballot/voting-core/db/model"
	"github.com/openballot/voting-core/util"
)

type ballotSuite struct {
	suite.Suite
	dao         *BallotDao
	electionDao *ElectionDao
	tokenDao    *TokenDao
	db          *Database
}

func TestBallotSuite(t *testing.T) {
	suite.Run(t, new(ballotSuite))
}

func (s *ballotSuite) SetupSuite() {
	dbName := "votingcore_ballot"
	db, err := RunDB(dbName)
	s.Require().NoError(err)
	s.db = db
}

func (s *ballotSuite) TearDownSuite() {
	err := s.db.StopDB()
	s.Require().NoError(err)
}

func (s *ballotSuite) SetupTest() {
	model.InitElectionTable(s.db.DB)
	model.InitAnswerTable(s.db.DB)
	model.InitVotingTokenTable(s.db.DB)
	model.InitBallotTable(s.db.DB)
	model.InitBallotSelectionTable(s.db.DB)

	s.dao = NewBallotDao(s.db.DB)
	s.electionDao = NewElectionDao(s.db.DB)
	s.tokenDao = NewTokenDao(s.db.DB)
}

func (s *ballotSuite) TearDownTest() {
	err := s.db.ClearDB()
	s.Require().NoError(err)
}

func (s *ballotSuite) createElection(id string, status model.ElectionStatus, policy string) {
	now := time.Now().Unix()
	election := &model.Election{
		Id:                id,
		Title:             "Board election",
		Question:          "Who should chair the board?",
		VotingMode:        model.SingleChoice,
		MaxSelections:     1,
		EligibilityPolicy: policy,
		Status:            status,
		CreatedBy:         "admin-1",
		UpdatedBy:         "admin-1",
		CreatedTime:       now,
		UpdatedTime:       now,
	}
	answers := []*model.Answer{
		{AnswerId: "a1", DisplayText: "Alice", SortOrder: 0},
		{AnswerId: "a2", DisplayText: "Bob", SortOrder: 1},
	}
	err := s.electionDao.SaveElection(context.Background(), election, answers)
	s.Require().NoError(err)
}

func (s *ballotSuite) issueToken(secret, electionId, subject string) string {
	token := &model.VotingToken{
		TokenHash:     util.HashToken(secret),
		ElectionId:    sql.NullString{String: electionId, Valid: true},
		IssuedTo:      subject,
		CorrelationId: "corr-" + subject,
		IssuedAt:      time.Now().Unix(),
	}
	inserted, err := s.tokenDao.InsertTokenIdempotent(context.Background(), token)
	s.Require().NoError(err)
	s.Require().True(inserted)
	return token.TokenHash
}

func (s *ballotSuite) cast(tokenHash, ballotId string, answerIds ...string) (*model.Ballot, error) {
	return s.dao.CastBallot(context.Background(), &CastRequest{
		TokenHash: tokenHash,
		AnswerIds: answerIds,
		BallotId:  ballotId,
		Now:       time.Now(),
	})
}

func (s *ballotSuite) TestBallotDao_CastBallot() {
	s.createElection("election-1", model.Open, model.PolicyMembers)
	tokenHash := s.issueToken("secret-1", "election-1", "subject-1")

	ballot, err := s.cast(tokenHash, "ballot-1", "a1")
	s.Require().NoError(err, "failed to cast")
	s.Require().Equal("election-1", ballot.ElectionId)
	s.Require().NotNil(ballot.MemberRef)
	s.Require().Equal("subject-1", *ballot.MemberRef)
	s.Require().Equal("corr-subject-1", ballot.CorrelationId)
	s.Require().Zero(ballot.SubmittedAt % 60)

	token, err := s.tokenDao.GetTokenByHash(context.Background(), tokenHash)
	s.Require().NoError(err)
	s.Require().True(token.Consumed)
	s.Require().True(token.ConsumedAt > 0)

	exists, err := s.dao.IsBallotExists(context.Background(), tokenHash)
	s.Require().NoError(err)
	s.Require().True(exists)
}

func (s *ballotSuite) TestBallotDao_CastBallotTokenReuse() {
	s.createElection("election-1", model.Open, model.PolicyMembers)
	tokenHash := s.issueToken("secret-1", "election-1", "subject-1")

	_, err := s.cast(tokenHash, "ballot-1", "a1")
	s.Require().NoError(err)

	_, err = s.cast(tokenHash, "ballot-2", "a2")
	s.Require().ErrorIs(err, common.ErrTokenAlreadyUsed)

	count, err := s.dao.CountBallots(context.Background(), "election-1")
	s.Require().NoError(err)
	s.Require().Equal(int64(1), count)
}

func (s *ballotSuite) TestBallotDao_CastBallotDuplicateTokenBackstop() {
	s.createElection("election-1", model.Open, model.PolicyMembers)
	tokenHash := s.issueToken("secret-1", "election-1", "subject-1")

	// A ballot already references the token hash while the token row still
	// reads unconsumed, the window a concurrent cast can leave behind. The
	// insert-time unique index is the backstop and must surface as the same
	// sentinel as the lock-time check.
	other := "subject-other"
	err := s.db.DB.Create(&model.Ballot{
		Id:            "ballot-pre",
		ElectionId:    "election-1",
		MemberRef:     &other,
		TokenHash:     tokenHash,
		CorrelationId: "corr-pre",
		SubmittedAt:   time.Now().Unix(),
	}).Error
	s.Require().NoError(err)

	_, err = s.cast(tokenHash, "ballot-1", "a1")
	s.Require().ErrorIs(err, common.ErrTokenAlreadyUsed)
}

func (s *ballotSuite) TestBallotDao_CastBallotDuplicateMemberBackstop() {
	s.createElection("election-1", model.Open, model.PolicyMembers)
	tokenHash := s.issueToken("secret-1", "election-1", "subject-1")

	// The member already has a recorded ballot under a different token; the
	// (election, member) unique index fires at insert time.
	memberRef := "subject-1"
	err := s.db.DB.Create(&model.Ballot{
		Id:            "ballot-pre",
		ElectionId:    "election-1",
		MemberRef:     &memberRef,
		TokenHash:     util.HashToken("secret-other"),
		CorrelationId: "corr-pre",
		SubmittedAt:   time.Now().Unix(),
	}).Error
	s.Require().NoError(err)

	_, err = s.cast(tokenHash, "ballot-1", "a1")
	s.Require().ErrorIs(err, common.ErrDuplicateVote)

	// The rejected transaction rolled back without consuming the token.
	token, err := s.tokenDao.GetTokenByHash(context.Background(), tokenHash)
	s.Require().NoError(err)
	s.Require().False(token.Consumed)
}

func (s *ballotSuite) TestBallotDao_CastBallotRegisteredToken() {
	s.createElection("election-1", model.Open, model.PolicyMembers)

	// Tokens pre-registered by a remote issuer carry a placeholder in
	// issued_to; the ballot must not record it as a member reference.
	tokenHash := util.HashToken("remote-secret")
	err := s.tokenDao.RegisterToken(context.Background(), &model.VotingToken{
		TokenHash:     tokenHash,
		ElectionId:    sql.NullString{String: "election-1", Valid: true},
		IssuedTo:      tokenHash[:16],
		CorrelationId: "corr-remote",
		IssuedAt:      time.Now().Unix(),
		Registered:    true,
	})
	s.Require().NoError(err)

	ballot, err := s.cast(tokenHash, "ballot-1", "a1")
	s.Require().NoError(err, "failed to cast")
	s.Require().Nil(ballot.MemberRef)
}

func (s *ballotSuite) TestBallotDao_CastBallotUnknownToken() {
	s.createElection("election-1", model.Open, model.PolicyMembers)

	_, err := s.cast(util.HashToken("never-issued"), "ballot-1", "a1")
	s.Require().ErrorIs(err, common.ErrInvalidToken)
}

func (s *ballotSuite) TestBallotDao_CastBallotExpiredToken() {
	s.createElection("election-1", model.Open, model.PolicyMembers)
	tokenHash := s.issueToken("secret-1", "election-1", "subject-1")
	err := s.db.DB.Model(&model.VotingToken{}).
		Where("token_hash = ?", tokenHash).
		Update("expires_at", time.Now().Add(-time.Minute).Unix()).Error
	s.Require().NoError(err)

	_, err = s.cast(tokenHash, "ballot-1", "a1")
	s.Require().ErrorIs(err, common.ErrInvalidToken)
}

func (s *ballotSuite) TestBallotDao_CastBallotElectionGates() {
	s.createElection("election-paused", model.Paused, model.PolicyMembers)
	pausedToken := s.issueToken("secret-1", "election-paused", "subject-1")
	_, err := s.cast(pausedToken, "ballot-1", "a1")
	s.Require().ErrorIs(err, common.ErrVotingPaused)

	s.createElection("election-published", model.Published, model.PolicyMembers)
	publishedToken := s.issueToken("secret-2", "election-published", "subject-1")
	_, err = s.cast(publishedToken, "ballot-2", "a1")
	s.Require().ErrorIs(err, common.ErrVotingNotOpen)

	s.createElection("election-closed", model.Closed, model.PolicyMembers)
	closedToken := s.issueToken("secret-3", "election-closed", "subject-1")
	_, err = s.cast(closedToken, "ballot-3", "a1")
	s.Require().ErrorIs(err, common.ErrVotingNotOpen)
}

func (s *ballotSuite) TestBallotDao_CastBallotInvalidAnswers() {
	s.createElection("election-1", model.Open, model.PolicyMembers)
	tokenHash := s.issueToken("secret-1", "election-1", "subject-1")

	_, err := s.cast(tokenHash, "ballot-1")
	s.Require().ErrorIs(err, common.ErrInvalidAnswer)

	_, err = s.cast(tokenHash, "ballot-1", "a9")
	s.Require().ErrorIs(err, common.ErrInvalidAnswer)

	// Two answers on a single-choice election.
	_, err = s.cast(tokenHash, "ballot-1", "a1", "a2")
	s.Require().ErrorIs(err, common.ErrInvalidAnswer)

	// The rejections left the token usable.
	token, err := s.tokenDao.GetTokenByHash(context.Background(), tokenHash)
	s.Require().NoError(err)
	s.Require().False(token.Consumed)
}

func (s *ballotSuite) TestBallotDao_CastBallotMultiChoice() {
	now := time.Now().Unix()
	election := &model.Election{
		Id:                "election-1",
		Title:             "Committee seats",
		Question:          "Pick up to two candidates",
		VotingMode:        model.MultiChoice,
		MaxSelections:     2,
		EligibilityPolicy: model.PolicyMembers,
		Status:            model.Open,
		CreatedBy:         "admin-1",
		UpdatedBy:         "admin-1",
		CreatedTime:       now,
		UpdatedTime:       now,
	}
	answers := []*model.Answer{
		{AnswerId: "a1", DisplayText: "Alice"},
		{AnswerId: "a2", DisplayText: "Bob"},
		{AnswerId: "a3", DisplayText: "Carol"},
	}
	err := s.electionDao.SaveElection(context.Background(), election, answers)
	s.Require().NoError(err)
	tokenHash := s.issueToken("secret-1", "election-1", "subject-1")

	_, err = s.cast(tokenHash, "ballot-1", "a1", "a2", "a3")
	s.Require().ErrorIs(err, common.ErrInvalidAnswer)

	_, err = s.cast(tokenHash, "ballot-1", "a1", "a1")
	s.Require().ErrorIs(err, common.ErrInvalidAnswer)

	ballot, err := s.cast(tokenHash, "ballot-1", "a1", "a3")
	s.Require().NoError(err, "failed to cast")
	s.Require().Equal("ballot-1", ballot.Id)

	counts, err := s.dao.GetAnswerCounts(context.Background(), "election-1")
	s.Require().NoError(err)
	s.Require().Len(counts, 2)
}

func (s *ballotSuite) TestBallotDao_CastBallotAnonymous() {
	s.createElection("election-1", model.Open, model.PolicyAll)

	// Anonymous ballots keep member_ref NULL, so several of them coexist
	// under the (election, member) unique index.
	for i, secret := range []string{"secret-1", "secret-2", "secret-3"} {
		tokenHash := s.issueToken(secret, "election-1", "subject-"+string(rune('a'+i)))
		ballot, err := s.cast(tokenHash, "ballot-"+string(rune('a'+i)), "a1")
		s.Require().NoError(err, "failed to cast")
		s.Require().Nil(ballot.MemberRef)
	}

	count, err := s.dao.CountBallots(context.Background(), "election-1")
	s.Require().NoError(err)
	s.Require().Equal(int64(3), count)
}

func (s *ballotSuite) TestBallotDao_CastBallotLockContention() {
	s.createElection("election-1", model.Open, model.PolicyMembers)
	tokenHash := s.issueToken("secret-1", "election-1", "subject-1")

	// Hold the token row lock from a second session; the NOWAIT cast must
	// bounce immediately instead of queueing.
	blocker := s.db.DB.Begin()
	s.Require().NoError(blocker.Error)
	defer blocker.Rollback()
	err := blocker.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token_hash = ?", tokenHash).
		Take(&model.VotingToken{}).Error
	s.Require().NoError(err)

	_, err = s.cast(tokenHash, "ballot-1", "a1")
	s.Require().ErrorIs(err, common.ErrLockContention)

	s.Require().NoError(blocker.Rollback().Error)
	_, err = s.cast(tokenHash, "ballot-1", "a1")
	s.Require().NoError(err, "failed to cast after lock release")
}

func (s *ballotSuite) TestBallotDao_GetAnswerCounts() {
	s.createElection("election-1", model.Open, model.PolicyMembers)

	for i, secret := range []string{"secret-1", "secret-2", "secret-3"} {
		tokenHash := s.issueToken(secret, "election-1", "subject-"+string(rune('a'+i)))
		answerId := "a1"
		if i == 2 {
			answerId = "a2"
		}
		_, err := s.cast(tokenHash, "ballot-"+string(rune('a'+i)), answerId)
		s.Require().NoError(err)
	}

	counts, err := s.dao.GetAnswerCounts(context.Background(), "election-1")
	s.Require().NoError(err, "failed to query")
	byAnswer := make(map[string]int64, len(counts))
	for _, count := range counts {
		byAnswer[count.AnswerId] = count.Count
	}
	s.Require().Equal(int64(2), byAnswer["a1"])
	s.Require().Equal(int64(1), byAnswer["a2"])
}
