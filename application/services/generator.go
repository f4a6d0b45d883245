package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wbzero-canvas/application/ports"
	"wbzero-canvas/domain/graph"
	appErrors "wbzero-canvas/pkg/errors"
	"wbzero-canvas/pkg/jsonx"
	"wbzero-canvas/pkg/observability"
)

// Placement of generated nodes: a 3-wide grid anchored to the right of the
// existing content so new material never lands on top of it.
const (
	gridColumns = 3
	gridColStep = 220
	gridRowStep = 150
	gridGapX    = 250
	gridStartX  = 100
	gridStartY  = 100
)

var errNoJSONPayload = errors.New("no JSON object in model output")

const generateSystemPrompt = `You are a story-planning assistant. Given a writing prompt, produce a small graph of story elements (characters, locations, plot beats, themes) as strict JSON with this shape:
{"nodes":[{"label":"...","type":"...","content":"..."}],"edges":[{"from":0,"to":1,"label":"..."}]}
Node "type" is one of: character, location, event, theme, note. Edge "from" and "to" are zero-based indexes into the nodes array. Respond with the JSON object only, no prose and no code fences.`

// GenerationSettings tunes a single generation call. They are read per call
// so a config reload applies to the next request.
type GenerationSettings struct {
	Temperature float64
	MaxNodes    int
}

// DefaultGenerationSettings mirrors the model defaults.
func DefaultGenerationSettings() GenerationSettings {
	return GenerationSettings{Temperature: 0.7, MaxNodes: 50}
}

// GenerateResult reports how much of the model's graph was materialized.
type GenerateResult struct {
	NodesCreated int `json:"nodesCreated"`
	EdgesCreated int `json:"edgesCreated"`
}

type generatedNode struct {
	Label   string  `json:"label"`
	Type    *string `json:"type"`
	Content *string `json:"content"`
}

type generatedEdge struct {
	From  int     `json:"from"`
	To    int     `json:"to"`
	Label *string `json:"label"`
}

type generatedGraph struct {
	Nodes []generatedNode `json:"nodes"`
	Edges []generatedEdge `json:"edges"`
}

// Generator turns a free-text prompt into persisted nodes and edges on an
// existing canvas.
type Generator struct {
	store    ports.GraphStore
	llm      ports.ChatCompleter
	metrics  *observability.Collector
	logger   *zap.Logger
	settings func() GenerationSettings
}

// NewGenerator creates a generator. settings may be nil, in which case the
// defaults apply. metrics may be nil.
func NewGenerator(store ports.GraphStore, llm ports.ChatCompleter, metrics *observability.Collector, logger *zap.Logger, settings func() GenerationSettings) *Generator {
	if settings == nil {
		settings = DefaultGenerationSettings
	}
	return &Generator{
		store:    store,
		llm:      llm,
		metrics:  metrics,
		logger:   logger,
		settings: settings,
	}
}

// Generate asks the model for a graph and persists it onto the canvas. Nodes
// are placed on a grid to the right of the existing content. Edges whose
// endpoints do not resolve to created nodes are skipped; an upstream or
// parse failure fails the whole call with nothing written.
func (g *Generator) Generate(ctx context.Context, userID, canvasID, prompt string) (*GenerateResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, appErrors.NewValidationError("Prompt is required")
	}
	if _, err := g.store.GetCanvas(ctx, canvasID, userID); err != nil {
		return nil, err
	}

	started := time.Now()
	settings := g.settings()

	raw, err := g.llm.Complete(ctx, ports.CompletionRequest{
		System:      generateSystemPrompt,
		Prompt:      prompt,
		Temperature: settings.Temperature,
	})
	if err != nil {
		g.observe("upstream_error", started)
		return nil, appErrors.NewExternalError("generation", err)
	}

	parsed, err := g.parse(raw)
	if err != nil {
		g.observe("parse_error", started)
		g.logger.Warn("discarding unparseable generation output",
			zap.String("canvas_id", canvasID),
			zap.Error(err))
		return nil, err
	}

	nodes := parsed.Nodes
	if settings.MaxNodes > 0 && len(nodes) > settings.MaxNodes {
		g.logger.Warn("truncating generated nodes",
			zap.Int("returned", len(nodes)),
			zap.Int("max", settings.MaxNodes))
		nodes = nodes[:settings.MaxNodes]
	}

	startX, startY := float64(gridStartX), float64(gridStartY)
	if maxX, ok, err := g.store.MaxNodeX(ctx, canvasID); err != nil {
		return nil, err
	} else if ok {
		startX = maxX + gridGapX
	}

	result := &GenerateResult{}
	idByIndex := make(map[int]string, len(nodes))
	for i, gn := range nodes {
		label := gn.Label
		if label == "" {
			label = "New node"
		}
		node := &graph.Node{
			ID:        uuid.New().String(),
			CanvasID:  canvasID,
			Type:      gn.Type,
			Label:     label,
			Content:   gn.Content,
			PositionX: startX + float64((i%gridColumns)*gridColStep),
			PositionY: startY + float64((i/gridColumns)*gridRowStep),
		}
		if err := g.store.CreateNode(ctx, node); err != nil {
			return nil, err
		}
		idByIndex[i] = node.ID
		result.NodesCreated++
	}

	for _, ge := range parsed.Edges {
		from, fromOK := idByIndex[ge.From]
		to, toOK := idByIndex[ge.To]
		if !fromOK || !toOK {
			g.logger.Debug("skipping edge with unresolved endpoint",
				zap.Int("from", ge.From),
				zap.Int("to", ge.To))
			continue
		}
		edge := &graph.Edge{
			ID:         uuid.New().String(),
			CanvasID:   canvasID,
			FromNodeID: from,
			ToNodeID:   to,
			Label:      ge.Label,
		}
		if err := g.store.CreateEdge(ctx, edge); err != nil {
			return nil, err
		}
		result.EdgesCreated++
	}

	if g.metrics != nil {
		g.metrics.NodesCreated.Add(float64(result.NodesCreated))
		g.metrics.EdgesCreated.Add(float64(result.EdgesCreated))
	}
	g.observe("success", started)
	return result, nil
}

func (g *Generator) parse(raw string) (*generatedGraph, error) {
	payload, ok := jsonx.Extract(raw)
	if !ok {
		return nil, appErrors.NewExternalError("generation", errNoJSONPayload)
	}
	var parsed generatedGraph
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, appErrors.NewExternalError("generation", err)
	}
	return &parsed, nil
}

func (g *Generator) observe(outcome string, started time.Time) {
	if g.metrics == nil {
		return
	}
	g.metrics.Generations.WithLabelValues(outcome).Inc()
	g.metrics.GenerationSeconds.Observe(time.Since(started).Seconds())
}
