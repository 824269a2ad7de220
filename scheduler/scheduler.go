package scheduler

import (
	"context"
	"time"

	"github.com/openballot/voting-core/common"
	"github.com/openballot/voting-core/db/model"
	"github.com/openballot/voting-core/lifecycle"
	"github.com/openballot/voting-core/logging"
	"github.com/openballot/voting-core/metrics"
)

const (
	pollInterval = 15 * time.Second
	actor        = "scheduler"
)

type DataProvider interface {
	GetDueScheduled(ctx context.Context, status model.ElectionStatus, field string, now int64) ([]*model.Election, error)
	CountByStatus(ctx context.Context, status model.ElectionStatus) (int64, error)
}

// Scheduler applies scheduled lifecycle transitions: published elections open
// when their scheduled start passes, open elections close when their
// scheduled end passes. Transitions go through the lifecycle manager so the
// legal graph and auditing apply unchanged.
type Scheduler struct {
	dataProvider  DataProvider
	manager       *lifecycle.Manager
	metricService *metrics.MetricService
}

func NewScheduler(dataProvider DataProvider, manager *lifecycle.Manager, metricService *metrics.MetricService) *Scheduler {
	return &Scheduler{
		dataProvider:  dataProvider,
		manager:       manager,
		metricService: metricService,
	}
}

func (s *Scheduler) ApplyScheduledTransitionsLoop() {
	ticker := time.NewTicker(pollInterval)
	for range ticker.C {
		err := s.applyDue()
		if err != nil {
			logging.Logger.Errorf("scheduler failed to apply due transitions, err=%+v", err)
			time.Sleep(common.RetryInterval)
		}
	}
}

func (s *Scheduler) applyDue() error {
	ctx, cancel := context.WithTimeout(context.Background(), common.RequestTimeout)
	defer cancel()
	now := time.Now().Unix()

	due, err := s.dataProvider.GetDueScheduled(ctx, model.Published, "scheduled_start", now)
	if err != nil {
		return err
	}
	for _, election := range due {
		s.transition(ctx, election.Id, model.Open)
	}

	due, err = s.dataProvider.GetDueScheduled(ctx, model.Open, "scheduled_end", now)
	if err != nil {
		return err
	}
	for _, election := range due {
		s.transition(ctx, election.Id, model.Closed)
	}

	openCount, err := s.dataProvider.CountByStatus(ctx, model.Open)
	if err != nil {
		return err
	}
	s.metricService.SetOpenElections(openCount)
	return nil
}

func (s *Scheduler) transition(ctx context.Context, electionId string, target model.ElectionStatus) {
	_, err := s.manager.Transition(ctx, electionId, target, actor)
	if err != nil {
		// A concurrent admin transition is fine; the next poll settles it.
		logging.Logger.Errorf("scheduler transition to %s failed for election_id=%s, err=%+v",
			target, electionId, err)
		return
	}
	s.metricService.IncScheduledApplied()
	logging.Logger.Infof("scheduler transitioned election_id=%s to %s", electionId, target)
}
