package tally

import (
	"context"
	"time"

	"github.com/openballot/voting-core/common"
	"github.com/openballot/voting-core/eligibility"
	"github.com/openballot/voting-core/lifecycle"
	"github.com/openballot/voting-core/metrics"
)

// Results is the aggregated outcome of a closed election. Every declared
// answer appears in PerAnswerCount, zero-count answers included.
type Results struct {
	ElectionId        string           `json:"election_id"`
	PerAnswerCount    map[string]int64 `json:"per_answer_count"`
	TotalBallots      int64            `json:"total_ballots"`
	IssuedTokens      int64            `json:"issued_tokens"`
	ParticipationRate float64          `json:"participation_rate"`
}

type Tabulator struct {
	dataProvider  DataProvider
	eligibility   eligibility.Provider
	metricService *metrics.MetricService
}

func NewTabulator(dataProvider DataProvider, eligibilityProvider eligibility.Provider, metricService *metrics.MetricService) *Tabulator {
	return &Tabulator{
		dataProvider:  dataProvider,
		eligibility:   eligibilityProvider,
		metricService: metricService,
	}
}

// GetResults aggregates ballots per answer. Results stay unavailable until
// the election is closed so in-progress tallies can never influence live
// voting.
func (t *Tabulator) GetResults(ctx context.Context, electionId string) (*Results, error) {
	startTime := time.Now()
	election, err := t.dataProvider.GetElection(ctx, electionId)
	if err != nil {
		return nil, err
	}
	if !lifecycle.ResultsReadable(election.Status) {
		return nil, common.ErrResultsNotAvailable
	}

	answers, err := t.dataProvider.GetAnswers(ctx, electionId)
	if err != nil {
		return nil, err
	}
	counts, err := t.dataProvider.GetAnswerCounts(ctx, electionId)
	if err != nil {
		return nil, err
	}
	totalBallots, err := t.dataProvider.CountBallots(ctx, electionId)
	if err != nil {
		return nil, err
	}
	issuedTokens, err := t.dataProvider.CountTokens(ctx, electionId)
	if err != nil {
		return nil, err
	}

	perAnswer := make(map[string]int64, len(answers))
	for _, answer := range answers {
		perAnswer[answer.AnswerId] = 0
	}
	for _, count := range counts {
		perAnswer[count.AnswerId] = count.Count
	}

	results := &Results{
		ElectionId:        electionId,
		PerAnswerCount:    perAnswer,
		TotalBallots:      totalBallots,
		IssuedTokens:      issuedTokens,
		ParticipationRate: t.participationRate(ctx, election.EligibilityPolicy, totalBallots),
	}
	t.metricService.SetTallyDuration(time.Since(startTime))
	return results, nil
}

// participationRate is best effort: the eligible population lives with the
// membership collaborator, which may be unreachable. An unknown denominator
// yields 0 rather than an error.
func (t *Tabulator) participationRate(ctx context.Context, policy string, totalBallots int64) float64 {
	eligibleCount, err := t.eligibility.EligibleCount(ctx, policy)
	if err != nil || eligibleCount <= 0 {
		return 0
	}
	return float64(totalBallots) / float64(eligibleCount)
}
