package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openballot/voting-core/alert"
	"github.com/openballot/voting-core/common"
	"github.com/openballot/voting-core/config"
	"github.com/openballot/voting-core/db/model"
	"github.com/openballot/voting-core/logging"
)

// legalTransitions is the full directed graph of allowed status changes.
// Everything not listed is rejected with ErrInvalidTransition.
var legalTransitions = map[model.ElectionStatus][]model.ElectionStatus{
	model.Draft:     {model.Published, model.Deleted},
	model.Published: {model.Open},
	model.Open:      {model.Paused, model.Closed},
	model.Paused:    {model.Open, model.Closed},
	model.Closed:    {model.Archived},
	model.Archived:  {},
	model.Deleted:   {},
}

type Manager struct {
	config       *config.Config
	dataProvider DataProvider
}

func NewManager(cfg *config.Config, dataProvider DataProvider) *Manager {
	return &Manager{
		config:       cfg,
		dataProvider: dataProvider,
	}
}

// ElectionParams is the admin-facing definition of a new or edited election.
type ElectionParams struct {
	Title             string
	Description       string
	Question          string
	VotingMode        model.VotingMode
	MaxSelections     int
	EligibilityPolicy string
	Answers           []*model.Answer
	ScheduledStart    int64
	ScheduledEnd      int64
}

func (p *ElectionParams) validate() error {
	if p.Title == "" || p.Question == "" {
		return common.ErrInvalidElection
	}
	if len(p.Answers) < 2 {
		return common.ErrInvalidElection
	}
	answerIds := make(map[string]struct{}, len(p.Answers))
	for _, answer := range p.Answers {
		if answer.AnswerId == "" {
			return common.ErrInvalidElection
		}
		if _, ok := answerIds[answer.AnswerId]; ok {
			return common.ErrInvalidElection
		}
		answerIds[answer.AnswerId] = struct{}{}
	}
	switch p.VotingMode {
	case model.SingleChoice:
		if p.MaxSelections != 1 {
			return common.ErrInvalidElection
		}
	case model.MultiChoice:
		if p.MaxSelections < 1 || p.MaxSelections > len(p.Answers) {
			return common.ErrInvalidElection
		}
	default:
		return common.ErrInvalidElection
	}
	switch p.EligibilityPolicy {
	case model.PolicyMembers, model.PolicyAdmins, model.PolicyAll:
	default:
		return common.ErrInvalidElection
	}
	if p.ScheduledStart != 0 && p.ScheduledEnd != 0 && p.ScheduledStart >= p.ScheduledEnd {
		return common.ErrInvalidElection
	}
	return nil
}

// CreateElection stores a new election in draft.
func (m *Manager) CreateElection(ctx context.Context, params *ElectionParams, actor string) (*model.Election, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	election := &model.Election{
		Id:                uuid.NewString(),
		Title:             params.Title,
		Description:       params.Description,
		Question:          params.Question,
		VotingMode:        params.VotingMode,
		MaxSelections:     params.MaxSelections,
		EligibilityPolicy: params.EligibilityPolicy,
		Status:            model.Draft,
		ScheduledStart:    params.ScheduledStart,
		ScheduledEnd:      params.ScheduledEnd,
		CreatedBy:         actor,
		UpdatedBy:         actor,
		CreatedTime:       now,
		UpdatedTime:       now,
	}
	if err := m.dataProvider.SaveElection(ctx, election, params.Answers); err != nil {
		return nil, err
	}
	logging.Logger.Infof("election created, election_id=%s, actor=%s", election.Id, actor)
	return election, nil
}

// EditElection applies metadata edits. Title and description may change on any
// non-terminal status; everything else only while the election is a draft, and
// the answer swap commits in the same transaction as the field edits.
func (m *Manager) EditElection(ctx context.Context, electionId string, params *ElectionParams, actor string) (*model.Election, error) {
	return m.dataProvider.EditElection(ctx, electionId, actor,
		func(election *model.Election) ([]*model.Answer, bool, error) {
			if election.Status == model.Archived || election.Status == model.Deleted {
				return nil, false, common.ErrInvalidTransition
			}
			if election.Status != model.Draft {
				election.Title = params.Title
				election.Description = params.Description
				return nil, true, nil
			}
			if err := params.validate(); err != nil {
				return nil, false, err
			}
			election.Title = params.Title
			election.Description = params.Description
			election.Question = params.Question
			election.VotingMode = params.VotingMode
			election.MaxSelections = params.MaxSelections
			election.EligibilityPolicy = params.EligibilityPolicy
			election.ScheduledStart = params.ScheduledStart
			election.ScheduledEnd = params.ScheduledEnd
			return params.Answers, true, nil
		})
}

func (m *Manager) ListElections(ctx context.Context, includeHidden bool) ([]*model.Election, error) {
	return m.dataProvider.ListElections(ctx, includeHidden)
}

func (m *Manager) GetElection(ctx context.Context, electionId string) (*model.Election, []*model.Answer, error) {
	election, err := m.dataProvider.GetElection(ctx, electionId)
	if err != nil {
		return nil, nil, err
	}
	answers, err := m.dataProvider.GetAnswers(ctx, electionId)
	if err != nil {
		return nil, nil, err
	}
	return election, answers, nil
}

// SetHidden flips the hidden flag, which is independent of lifecycle status.
func (m *Manager) SetHidden(ctx context.Context, electionId string, hidden bool, actor string) (*model.Election, error) {
	return m.dataProvider.TransitionElection(ctx, electionId, actor,
		func(election *model.Election) (bool, error) {
			if election.Hidden == hidden {
				return false, nil
			}
			election.Hidden = hidden
			return true, nil
		})
}

// Transition moves an election to the target status. Re-invoking the same
// transition on an already-transitioned election returns the current state
// unchanged, so retried admin requests are harmless.
func (m *Manager) Transition(ctx context.Context, electionId string, target model.ElectionStatus, actor string) (*model.Election, error) {
	var previous model.ElectionStatus
	election, err := m.dataProvider.TransitionElection(ctx, electionId, actor,
		func(election *model.Election) (bool, error) {
			previous = election.Status
			if election.Status == target {
				return false, nil
			}
			if !isLegal(election.Status, target) {
				return false, common.ErrInvalidTransition
			}
			now := time.Now().Unix()
			election.Status = target
			switch target {
			case model.Open:
				// The voting window starts at the open transition, not at
				// creation. Resuming from paused keeps the original start.
				if election.VotingStartsAt == 0 {
					election.VotingStartsAt = now
				}
			case model.Closed:
				election.VotingEndsAt = now
			}
			return true, nil
		})
	if err != nil {
		m.auditTransition(ctx, electionId, target, model.AuditOutcomeRejected, common.ReasonFor(err))
		return nil, err
	}

	if previous != election.Status {
		logging.Logger.Infof("election transitioned, election_id=%s, from=%s, to=%s, actor=%s",
			electionId, previous, election.Status, actor)
		m.auditTransition(ctx, electionId, target, model.AuditOutcomeOK, "")
		alert.SendTelegramMessage(m.config.AlertConfig.Identity, m.config.AlertConfig.TelegramBotId,
			m.config.AlertConfig.TelegramChatId,
			"election "+electionId+" is now "+election.Status.String())
	}
	return election, nil
}

func (m *Manager) auditTransition(ctx context.Context, electionId string, target model.ElectionStatus, outcome, reason string) {
	entry := &model.AuditLogEntry{
		CorrelationId: uuid.NewString(),
		EventType:     model.AuditTransition,
		ElectionId:    electionId,
		Outcome:       outcome,
		Reason:        reason,
		CreatedTime:   time.Now().Unix(),
	}
	if err := m.dataProvider.SaveAuditEntry(ctx, entry); err != nil {
		logging.Logger.Errorf("failed to audit transition for election_id=%s, err=%+v", electionId, err)
	}
}

func isLegal(from, to model.ElectionStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AcceptsIssuance reports whether tokens may be minted in the given status.
// Pre-provisioning starts at publish; a paused election keeps issuing, only
// casting stops.
func AcceptsIssuance(status model.ElectionStatus) bool {
	return status == model.Published || status == model.Open || status == model.Paused
}

// AcceptsBallots reports whether ballots are accepted in the given status.
func AcceptsBallots(status model.ElectionStatus) bool {
	return status == model.Open
}

// ResultsReadable reports whether tallies may be served, which is only once
// the election can no longer accept ballots permanently.
func ResultsReadable(status model.ElectionStatus) bool {
	return status == model.Closed || status == model.Archived
}
