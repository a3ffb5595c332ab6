package http

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
)

// Stage names, in the order the gateway installs them.
const (
	StageRecovery  = "recovery"
	StageRequestID = "requestid"
	StageLogging   = "logging"
	StageTracing   = "tracing"
	StageCORS      = "cors"
	StageRateLimit = "ratelimit"
	StageAuth      = "auth"
)

// Stage is one named step of the request pipeline.
type Stage struct {
	Name    string
	Handler gin.HandlerFunc
}

// Pipeline is an ordered, validated list of stages.
type Pipeline struct {
	stages []Stage
}

// BuildPipeline validates the stage order. Every stage needs a unique name
// and a handler, and rate limiting must run before authentication so that
// rejected credentials still consume tokens.
func BuildPipeline(stages ...Stage) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, errors.New("pipeline has no stages")
	}

	positions := make(map[string]int, len(stages))
	for i, stage := range stages {
		if stage.Name == "" {
			return nil, fmt.Errorf("stage %d has no name", i)
		}
		if stage.Handler == nil {
			return nil, fmt.Errorf("stage %q has no handler", stage.Name)
		}
		if _, dup := positions[stage.Name]; dup {
			return nil, fmt.Errorf("duplicate stage %q", stage.Name)
		}
		positions[stage.Name] = i
	}

	limit, hasLimit := positions[StageRateLimit]
	authn, hasAuth := positions[StageAuth]
	if hasLimit && hasAuth && limit > authn {
		return nil, fmt.Errorf("stage %q must run before %q", StageRateLimit, StageAuth)
	}

	return &Pipeline{stages: append([]Stage(nil), stages...)}, nil
}

// Names returns the stage names in order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, stage := range p.stages {
		names[i] = stage.Name
	}
	return names
}

// Handlers returns the stage handlers in order.
func (p *Pipeline) Handlers() []gin.HandlerFunc {
	handlers := make([]gin.HandlerFunc, len(p.stages))
	for i, stage := range p.stages {
		handlers[i] = stage.Handler
	}
	return handlers
}
