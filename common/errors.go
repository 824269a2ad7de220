package common

import "errors"

// Reason codes are the machine-readable rejection identifiers surfaced on the
// API. They are stable: clients key on these, never on error prose.
const (
	ReasonNotEligible           = "NOT_ELIGIBLE"
	ReasonIssuanceClosed        = "ELECTION_NOT_OPEN_FOR_ISSUANCE"
	ReasonInvalidToken          = "INVALID_TOKEN"
	ReasonTokenAlreadyUsed      = "TOKEN_ALREADY_USED"
	ReasonDuplicateVote         = "DUPLICATE_VOTE"
	ReasonInvalidAnswer         = "INVALID_ANSWER"
	ReasonVotingNotOpen         = "VOTING_NOT_OPEN"
	ReasonVotingPaused          = "VOTING_PAUSED"
	ReasonInvalidTransition     = "INVALID_TRANSITION"
	ReasonResultsNotAvailable   = "RESULTS_NOT_AVAILABLE"
	ReasonLockContention        = "LOCK_CONTENTION"
	ReasonElectionNotFound      = "ELECTION_NOT_FOUND"
	ReasonDuplicateRegistration = "DUPLICATE_REGISTRATION"
	ReasonInvalidElection       = "INVALID_ELECTION"
	ReasonInternal              = "INTERNAL"
)

// Policy rejections. Decided synchronously, never retried.
var (
	ErrNotEligible         = errors.New("identity is not eligible for this election")
	ErrIssuanceClosed      = errors.New("election is not open for token issuance")
	ErrVotingNotOpen       = errors.New("election is not open for voting")
	ErrVotingPaused        = errors.New("voting is paused for this election")
	ErrInvalidTransition   = errors.New("illegal lifecycle transition")
	ErrResultsNotAvailable = errors.New("results are not available until the election is closed")
)

// Integrity conflicts. Client errors, never retried.
var (
	ErrInvalidToken     = errors.New("token is unknown")
	ErrTokenAlreadyUsed = errors.New("token has already been consumed")
	ErrDuplicateVote    = errors.New("member has already voted in this election")
	ErrInvalidAnswer    = errors.New("answer is not declared on this election")
	ErrElectionNotFound = errors.New("election not found")
	ErrInvalidElection  = errors.New("election definition is not valid")
)

// ErrLockContention is transient backpressure, safe to retry after a short
// delay. It is never a logic error.
var ErrLockContention = errors.New("token row is locked by a concurrent request")

// ErrDuplicateRegistration is returned by the s2s pre-registration path when
// the token hash is already registered. Non-fatal for the caller.
var ErrDuplicateRegistration = errors.New("token hash already registered")

// ReasonFor maps a domain error to its reason code. Unknown errors map to
// ReasonInternal; infrastructure failures are not given stable codes.
func ReasonFor(err error) string {
	switch {
	case errors.Is(err, ErrNotEligible):
		return ReasonNotEligible
	case errors.Is(err, ErrIssuanceClosed):
		return ReasonIssuanceClosed
	case errors.Is(err, ErrInvalidToken):
		return ReasonInvalidToken
	case errors.Is(err, ErrTokenAlreadyUsed):
		return ReasonTokenAlreadyUsed
	case errors.Is(err, ErrDuplicateVote):
		return ReasonDuplicateVote
	case errors.Is(err, ErrInvalidAnswer):
		return ReasonInvalidAnswer
	case errors.Is(err, ErrVotingNotOpen):
		return ReasonVotingNotOpen
	case errors.Is(err, ErrVotingPaused):
		return ReasonVotingPaused
	case errors.Is(err, ErrInvalidTransition):
		return ReasonInvalidTransition
	case errors.Is(err, ErrResultsNotAvailable):
		return ReasonResultsNotAvailable
	case errors.Is(err, ErrLockContention):
		return ReasonLockContention
	case errors.Is(err, ErrElectionNotFound):
		return ReasonElectionNotFound
	case errors.Is(err, ErrDuplicateRegistration):
		return ReasonDuplicateRegistration
	case errors.Is(err, ErrInvalidElection):
		return ReasonInvalidElection
	}
	return ReasonInternal
}
