package api

import (
	"fmt"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/openballot/voting-core/ballotbox"
	"github.com/openballot/voting-core/config"
	"github.com/openballot/voting-core/eligibility"
	"github.com/openballot/voting-core/keys"
	"github.com/openballot/voting-core/lifecycle"
	"github.com/openballot/voting-core/tally"
	"github.com/openballot/voting-core/tokenissuer"
)

type Server struct {
	config      *config.Config
	keyManager  keys.KeyManager
	eligibility eligibility.Provider
	issuer      *tokenissuer.Issuer
	caster      *ballotbox.Caster
	manager     *lifecycle.Manager
	tabulator   *tally.Tabulator
	engine      *gin.Engine
}

func NewServer(
	cfg *config.Config,
	keyManager keys.KeyManager,
	eligibilityProvider eligibility.Provider,
	issuer *tokenissuer.Issuer,
	caster *ballotbox.Caster,
	manager *lifecycle.Manager,
	tabulator *tally.Tabulator,
) *Server {
	s := &Server{
		config:      cfg,
		keyManager:  keyManager,
		eligibility: eligibilityProvider,
		issuer:      issuer,
		caster:      caster,
		manager:     manager,
		tabulator:   tabulator,
	}
	s.engine = s.buildEngine()
	return s
}

func (s *Server) buildEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(s.config.ServerConfig.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = s.config.ServerConfig.AllowOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", "X-Subject", "X-S2S-Secret")
	engine.Use(cors.New(corsConfig))

	// Voter-facing endpoints. The voting token is the only credential; no
	// identity headers are read here.
	engine.POST("/vote", s.handleVote)
	engine.GET("/token-status", s.handleTokenStatus)

	// Authenticated endpoints: the gateway verified the identity and set
	// X-Subject; membership flags are resolved per request.
	authed := engine.Group("/", s.requireSubject())
	authed.POST("/elections/:id/token", s.handleIssueToken)
	authed.GET("/elections/:id/results", s.handleResults)
	authed.GET("/elections", s.handleListElections)
	authed.GET("/elections/:id", s.handleGetElection)

	admin := engine.Group("/admin", s.requireSubject(), s.requireAdmin())
	admin.POST("/elections", s.handleCreateElection)
	admin.PUT("/elections/:id", s.handleEditElection)
	admin.PUT("/elections/:id/hidden", s.handleSetHidden)
	admin.POST("/elections/:id/publish", s.handleTransition)
	admin.POST("/elections/:id/open", s.handleTransition)
	admin.POST("/elections/:id/pause", s.handleTransition)
	admin.POST("/elections/:id/resume", s.handleTransition)
	admin.POST("/elections/:id/close", s.handleTransition)
	admin.POST("/elections/:id/archive", s.handleTransition)
	admin.POST("/elections/:id/delete", s.handleTransition)

	// Service-to-service endpoints, pre-shared-secret authenticated.
	s2s := engine.Group("/s2s", s.requireS2SSecret())
	s2s.POST("/register-token", s.handleRegisterToken)
	s2s.GET("/results", s.handleS2SResults)

	return engine
}

func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.config.ServerConfig.Port)
	if err := s.engine.Run(addr); err != nil {
		panic(err)
	}
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
