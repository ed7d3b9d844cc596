// Package mcp exposes the progression engine to chat adapters over the
// Model Context Protocol.
package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"nocturne/internal/engine"
	"nocturne/internal/store"
	"nocturne/internal/story"
	"nocturne/internal/validator"
)

// Engine is the slice of the orchestrator the tools call.
type Engine interface {
	GetNextContent(ctx context.Context, userID int64, fragmentID, styleHint string) (*engine.ContentView, error)
	SubmitDecision(ctx context.Context, userID int64, fragmentID, choiceID, styleHint string) (*engine.DecisionView, error)
	GetProgress(ctx context.Context, userID int64) (*engine.ProgressView, error)
	ValidateText(text string, context validator.Context, adaptationID string) validator.Result
}

// Catalog is the direct store access used by the inspection tools.
type Catalog interface {
	ListFragments(ctx context.Context, filter store.FragmentFilter) ([]story.FragmentSummary, error)
	SetArchetypeMultiplier(ctx context.Context, userID int64, multiplier float64) error
}

type Server struct {
	engine  Engine
	catalog Catalog
	mcp     *sdk.Server
}

func NewServer(eng Engine, catalog Catalog, version string) *Server {
	s := &Server{
		engine:  eng,
		catalog: catalog,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "nocturne",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
