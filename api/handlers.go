package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openballot/voting-core/common"
	"github.com/openballot/voting-core/logging"
)

// statusFor maps domain errors to HTTP statuses. The reason code in the body
// is the contract; the status is a transport hint.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrNotEligible):
		return http.StatusForbidden
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrTokenAlreadyUsed),
		errors.Is(err, common.ErrDuplicateVote),
		errors.Is(err, common.ErrIssuanceClosed),
		errors.Is(err, common.ErrInvalidTransition),
		errors.Is(err, common.ErrDuplicateRegistration):
		return http.StatusConflict
	case errors.Is(err, common.ErrInvalidAnswer):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrVotingNotOpen),
		errors.Is(err, common.ErrVotingPaused),
		errors.Is(err, common.ErrResultsNotAvailable):
		return http.StatusLocked
	case errors.Is(err, common.ErrLockContention):
		return http.StatusServiceUnavailable
	case errors.Is(err, common.ErrElectionNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidElection):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) rejectWith(c *gin.Context, err error) {
	status := statusFor(err)
	if errors.Is(err, common.ErrLockContention) {
		c.Header("Retry-After", strconv.Itoa(int(common.LockRetryAfter.Seconds())))
	}
	if status == http.StatusInternalServerError {
		logging.Logger.Errorf("request failed, path=%s, err=%+v", c.FullPath(), err)
		c.JSON(status, errorBody("internal error", common.ReasonInternal))
		return
	}
	c.JSON(status, errorBody(err.Error(), common.ReasonFor(err)))
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), common.RequestTimeout)
}

type voteRequest struct {
	AnswerId  string   `json:"answer_id"`
	AnswerIds []string `json:"answer_ids"`
}

func (r *voteRequest) selections() []string {
	if len(r.AnswerIds) > 0 {
		return r.AnswerIds
	}
	if r.AnswerId != "" {
		return []string{r.AnswerId}
	}
	return nil
}

// handleVote implements POST /vote. The voting token in the Authorization
// header is the sole credential; success returns 201 with the ballot id.
func (s *Server) handleVote(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, errorBody("voting token required", common.ReasonInvalidToken))
		return
	}
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request body", common.ReasonInvalidAnswer))
		return
	}
	answerIds := req.selections()
	if len(answerIds) == 0 {
		c.JSON(http.StatusUnprocessableEntity, errorBody("no answer selected", common.ReasonInvalidAnswer))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	ballotId, err := s.caster.CastBallot(ctx, token, answerIds)
	if err != nil {
		s.rejectWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ballot_id": ballotId})
}

// handleTokenStatus implements GET /token-status: consumed/unconsumed state
// only, no PII, no distinction between expired and unknown.
func (s *Server) handleTokenStatus(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, errorBody("voting token required", common.ReasonInvalidToken))
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	status, err := s.caster.GetTokenStatus(ctx, token)
	if err != nil {
		s.rejectWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"known": status.Known, "consumed": status.Consumed})
}

// handleIssueToken implements POST /elections/:id/token for an authenticated
// subject. The plaintext token appears only in this response.
func (s *Server) handleIssueToken(c *gin.Context) {
	auth := authFromContext(c)
	ctx, cancel := requestContext(c)
	defer cancel()
	token, err := s.issuer.IssueToken(ctx, auth, c.Param("id"))
	if err != nil {
		s.rejectWith(c, err)
		return
	}
	status := http.StatusCreated
	if token.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"token":          token.Plaintext,
		"expires_at":     token.ExpiresAt,
		"correlation_id": token.CorrelationId.String(),
	})
}

func (s *Server) handleResults(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()
	results, err := s.tabulator.GetResults(ctx, c.Param("id"))
	if err != nil {
		s.rejectWith(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

type registerTokenRequest struct {
	TokenHash     string `json:"token_hash" binding:"required"`
	ElectionId    string `json:"election_id"`
	CorrelationId string `json:"correlation_id" binding:"required"`
	ExpiresAt     int64  `json:"expires_at"`
}

// handleRegisterToken implements POST /s2s/register-token. Duplicate
// registration returns 409, which the calling issuer treats as non-fatal.
func (s *Server) handleRegisterToken(c *gin.Context) {
	var req registerTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request body", common.ReasonInternal))
		return
	}
	if len(req.TokenHash) != 64 {
		c.JSON(http.StatusBadRequest, errorBody("token_hash must be a 64-char hex digest", common.ReasonInternal))
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	err := s.issuer.RegisterToken(ctx, req.TokenHash, req.ElectionId,
		common.CorrelationID(req.CorrelationId), req.ExpiresAt)
	if err != nil {
		s.rejectWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token_hash": req.TokenHash})
}

// handleS2SResults is the internal results pull for reporting. It bypasses
// identity resolution but not the closed-election gate.
func (s *Server) handleS2SResults(c *gin.Context) {
	electionId := c.Query("election_id")
	if electionId == "" {
		c.JSON(http.StatusBadRequest, errorBody("election_id is required", common.ReasonInternal))
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	results, err := s.tabulator.GetResults(ctx, electionId)
	if err != nil {
		s.rejectWith(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}
