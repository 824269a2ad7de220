package api

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/openballot/voting-core/common"
	"github.com/openballot/voting-core/db/model"
	"github.com/openballot/voting-core/lifecycle"
)

type answerPayload struct {
	AnswerId    string `json:"answer_id" binding:"required"`
	DisplayText string `json:"display_text" binding:"required"`
}

type electionPayload struct {
	Title             string          `json:"title" binding:"required"`
	Description       string          `json:"description"`
	Question          string          `json:"question"`
	VotingMode        string          `json:"voting_mode"`
	MaxSelections     int             `json:"max_selections"`
	EligibilityPolicy string          `json:"eligibility_policy"`
	Answers           []answerPayload `json:"answers"`
	ScheduledStart    int64           `json:"scheduled_start"`
	ScheduledEnd      int64           `json:"scheduled_end"`
}

func (p *electionPayload) toParams() (*lifecycle.ElectionParams, error) {
	var mode model.VotingMode
	switch p.VotingMode {
	case "single-choice", "":
		mode = model.SingleChoice
		if p.MaxSelections == 0 {
			p.MaxSelections = 1
		}
	case "multi-choice":
		mode = model.MultiChoice
	default:
		return nil, common.ErrInvalidElection
	}
	answers := make([]*model.Answer, 0, len(p.Answers))
	for i, answer := range p.Answers {
		answers = append(answers, &model.Answer{
			AnswerId:    answer.AnswerId,
			DisplayText: answer.DisplayText,
			SortOrder:   i,
		})
	}
	return &lifecycle.ElectionParams{
		Title:             p.Title,
		Description:       p.Description,
		Question:          p.Question,
		VotingMode:        mode,
		MaxSelections:     p.MaxSelections,
		EligibilityPolicy: p.EligibilityPolicy,
		Answers:           answers,
		ScheduledStart:    p.ScheduledStart,
		ScheduledEnd:      p.ScheduledEnd,
	}, nil
}

func electionView(election *model.Election, answers []*model.Answer) gin.H {
	view := gin.H{
		"id":                 election.Id,
		"title":              election.Title,
		"description":        election.Description,
		"question":           election.Question,
		"voting_mode":        votingModeString(election.VotingMode),
		"max_selections":     election.MaxSelections,
		"eligibility_policy": election.EligibilityPolicy,
		"status":             election.Status.String(),
		"hidden":             election.Hidden,
		"scheduled_start":    election.ScheduledStart,
		"scheduled_end":      election.ScheduledEnd,
		"voting_starts_at":   election.VotingStartsAt,
		"voting_ends_at":     election.VotingEndsAt,
		"created_time":       election.CreatedTime,
		"updated_time":       election.UpdatedTime,
	}
	if answers != nil {
		views := make([]gin.H, 0, len(answers))
		for _, answer := range answers {
			views = append(views, gin.H{
				"answer_id":    answer.AnswerId,
				"display_text": answer.DisplayText,
			})
		}
		view["answers"] = views
	}
	return view
}

func votingModeString(mode model.VotingMode) string {
	if mode == model.MultiChoice {
		return "multi-choice"
	}
	return "single-choice"
}

func (s *Server) handleCreateElection(c *gin.Context) {
	var payload electionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request body", common.ReasonInvalidElection))
		return
	}
	params, err := payload.toParams()
	if err != nil {
		s.rejectWith(c, err)
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	election, err := s.manager.CreateElection(ctx, params, authFromContext(c).Subject)
	if err != nil {
		s.rejectWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, electionView(election, params.Answers))
}

func (s *Server) handleEditElection(c *gin.Context) {
	var payload electionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request body", common.ReasonInvalidElection))
		return
	}
	params, err := payload.toParams()
	if err != nil {
		s.rejectWith(c, err)
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	election, err := s.manager.EditElection(ctx, c.Param("id"), params, authFromContext(c).Subject)
	if err != nil {
		s.rejectWith(c, err)
		return
	}
	c.JSON(http.StatusOK, electionView(election, nil))
}

func (s *Server) handleSetHidden(c *gin.Context) {
	var payload struct {
		Hidden bool `json:"hidden"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request body", common.ReasonInvalidElection))
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	election, err := s.manager.SetHidden(ctx, c.Param("id"), payload.Hidden, authFromContext(c).Subject)
	if err != nil {
		s.rejectWith(c, err)
		return
	}
	c.JSON(http.StatusOK, electionView(election, nil))
}

// transitionTargets maps the admin endpoint name to the target status. The
// endpoints are idempotent: repeating a transition returns the current state.
var transitionTargets = map[string]model.ElectionStatus{
	"publish": model.Published,
	"open":    model.Open,
	"pause":   model.Paused,
	"resume":  model.Open,
	"close":   model.Closed,
	"archive": model.Archived,
	"delete":  model.Deleted,
}

func (s *Server) handleTransition(c *gin.Context) {
	target, ok := transitionTargets[path.Base(c.FullPath())]
	if !ok {
		c.JSON(http.StatusNotFound, errorBody("unknown transition", common.ReasonInvalidTransition))
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	election, err := s.manager.Transition(ctx, c.Param("id"), target, authFromContext(c).Subject)
	if err != nil {
		s.rejectWith(c, err)
		return
	}
	c.JSON(http.StatusOK, electionView(election, nil))
}

func (s *Server) handleListElections(c *gin.Context) {
	includeHidden := authFromContext(c).IsAdmin && c.Query("include_hidden") == "true"
	ctx, cancel := requestContext(c)
	defer cancel()
	elections, err := s.manager.ListElections(ctx, includeHidden)
	if err != nil {
		s.rejectWith(c, err)
		return
	}
	views := make([]gin.H, 0, len(elections))
	for _, election := range elections {
		views = append(views, electionView(election, nil))
	}
	c.JSON(http.StatusOK, gin.H{"elections": views})
}

func (s *Server) handleGetElection(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()
	election, answers, err := s.manager.GetElection(ctx, c.Param("id"))
	if err != nil {
		s.rejectWith(c, err)
		return
	}
	if election.Hidden && !authFromContext(c).IsAdmin {
		s.rejectWith(c, common.ErrElectionNotFound)
		return
	}
	c.JSON(http.StatusOK, electionView(election, answers))
}
