package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openballot/voting-core/common"
	"github.com/openballot/voting-core/config"
	"github.com/openballot/voting-core/db/model"
	"github.com/openballot/voting-core/lifecycle"
	"github.com/openballot/voting-core/metrics"
)

// One registry per test binary; prometheus rejects duplicate collectors.
var testMetrics = metrics.NewMetricService(&config.Config{})

// fakeStore backs both the scheduler queries and the lifecycle manager the
// scheduler routes its transitions through.
type fakeStore struct {
	elections map[string]*model.Election
	audits    []*model.AuditLogEntry
}

func newFakeStore(elections ...*model.Election) *fakeStore {
	f := &fakeStore{elections: make(map[string]*model.Election)}
	for _, election := range elections {
		f.elections[election.Id] = election
	}
	return f
}

func (f *fakeStore) GetDueScheduled(ctx context.Context, status model.ElectionStatus, field string, now int64) ([]*model.Election, error) {
	due := make([]*model.Election, 0)
	for _, election := range f.elections {
		if election.Status != status {
			continue
		}
		var boundary int64
		switch field {
		case "scheduled_start":
			boundary = election.ScheduledStart
		case "scheduled_end":
			boundary = election.ScheduledEnd
		}
		if boundary > 0 && boundary <= now {
			due = append(due, election)
		}
	}
	return due, nil
}

func (f *fakeStore) CountByStatus(ctx context.Context, status model.ElectionStatus) (int64, error) {
	var count int64
	for _, election := range f.elections {
		if election.Status == status {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) SaveElection(ctx context.Context, election *model.Election, answers []*model.Answer) error {
	f.elections[election.Id] = election
	return nil
}

func (f *fakeStore) GetElection(ctx context.Context, electionId string) (*model.Election, error) {
	election, ok := f.elections[electionId]
	if !ok {
		return nil, common.ErrElectionNotFound
	}
	return election, nil
}

func (f *fakeStore) GetAnswers(ctx context.Context, electionId string) ([]*model.Answer, error) {
	return nil, nil
}

func (f *fakeStore) ListElections(ctx context.Context, includeHidden bool) ([]*model.Election, error) {
	return nil, nil
}

func (f *fakeStore) UpdateElection(ctx context.Context, election *model.Election) error {
	f.elections[election.Id] = election
	return nil
}

func (f *fakeStore) EditElection(ctx context.Context, electionId, actor string,
	apply func(election *model.Election) ([]*model.Answer, bool, error),
) (*model.Election, error) {
	election, ok := f.elections[electionId]
	if !ok {
		return nil, common.ErrElectionNotFound
	}
	copied := *election
	if _, _, err := apply(&copied); err != nil {
		return nil, err
	}
	f.elections[electionId] = &copied
	return &copied, nil
}

func (f *fakeStore) TransitionElection(ctx context.Context, electionId, actor string,
	apply func(election *model.Election) (bool, error),
) (*model.Election, error) {
	election, ok := f.elections[electionId]
	if !ok {
		return nil, common.ErrElectionNotFound
	}
	copied := *election
	changed, err := apply(&copied)
	if err != nil {
		return nil, err
	}
	if changed {
		copied.UpdatedBy = actor
		f.elections[electionId] = &copied
	}
	result := copied
	return &result, nil
}

func (f *fakeStore) SaveAuditEntry(ctx context.Context, entry *model.AuditLogEntry) error {
	f.audits = append(f.audits, entry)
	return nil
}

func scheduledElection(id string, status model.ElectionStatus, start, end int64) *model.Election {
	return &model.Election{
		Id:             id,
		Title:          "Scheduled election",
		Question:       "Who?",
		Status:         status,
		ScheduledStart: start,
		ScheduledEnd:   end,
	}
}

func TestApplyDue(t *testing.T) {
	now := time.Now().Unix()
	store := newFakeStore(
		scheduledElection("due-open", model.Published, now-60, 0),
		scheduledElection("not-due", model.Published, now+3600, 0),
		scheduledElection("due-close", model.Open, now-7200, now-60),
		scheduledElection("still-open", model.Open, now-7200, now+3600),
	)
	manager := lifecycle.NewManager(&config.Config{}, store)
	scheduler := NewScheduler(store, manager, testMetrics)

	err := scheduler.applyDue()
	require.NoError(t, err)

	require.Equal(t, model.Open, store.elections["due-open"].Status)
	require.NotZero(t, store.elections["due-open"].VotingStartsAt)
	require.Equal(t, model.Published, store.elections["not-due"].Status)
	require.Equal(t, model.Closed, store.elections["due-close"].Status)
	require.NotZero(t, store.elections["due-close"].VotingEndsAt)
	require.Equal(t, model.Open, store.elections["still-open"].Status)
	require.Equal(t, actor, store.elections["due-open"].UpdatedBy)
}

func TestApplyDueIdempotent(t *testing.T) {
	now := time.Now().Unix()
	store := newFakeStore(scheduledElection("due-open", model.Published, now-60, 0))
	manager := lifecycle.NewManager(&config.Config{}, store)
	scheduler := NewScheduler(store, manager, testMetrics)

	require.NoError(t, scheduler.applyDue())
	votingStart := store.elections["due-open"].VotingStartsAt

	// The next poll sees the election already open and leaves it alone.
	require.NoError(t, scheduler.applyDue())
	require.Equal(t, model.Open, store.elections["due-open"].Status)
	require.Equal(t, votingStart, store.elections["due-open"].VotingStartsAt)
}
