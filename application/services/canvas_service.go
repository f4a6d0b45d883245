// Package services implements the canvas graph operations behind the REST
// handlers: single-entity mutations with referential validation, and bulk
// generation from a prompt.
package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wbzero-canvas/application/ports"
	"wbzero-canvas/domain/graph"
	appErrors "wbzero-canvas/pkg/errors"
	"wbzero-canvas/pkg/observability"
)

// CanvasService validates and applies graph edits. Ownership is re-derived
// from the store on every call; a failed ownership check surfaces as
// not-found before anything is touched.
type CanvasService struct {
	store   ports.GraphStore
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewCanvasService creates a canvas service. metrics may be nil.
func NewCanvasService(store ports.GraphStore, metrics *observability.Collector, logger *zap.Logger) *CanvasService {
	return &CanvasService{
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// CanvasData is the full graph payload the client loads in one call.
type CanvasData struct {
	Canvas *graph.Canvas `json:"canvas"`
	Nodes  []graph.Node  `json:"nodes"`
	Edges  []graph.Edge  `json:"edges"`
}

// CreateNodeInput carries the fields for a new node. Nil optionals stay
// unset; nil positions default to the origin.
type CreateNodeInput struct {
	Label     string
	Type      *string
	Content   *string
	ChapterID *string
	ImageID   *string
	PositionX *float64
	PositionY *float64
	Color     *string
}

// CreateEdgeInput carries the fields for a new edge.
type CreateEdgeInput struct {
	FromNodeID string
	ToNodeID   string
	Label      *string
}

// CreateCanvas creates a canvas in a project the caller owns. A blank title
// defaults to "Untitled Canvas".
func (s *CanvasService) CreateCanvas(ctx context.Context, userID, projectID, title string) (*graph.Canvas, error) {
	owned, err := s.store.ProjectOwned(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, appErrors.NewNotFoundError("project")
	}
	if title == "" {
		title = "Untitled Canvas"
	}
	return s.store.CreateCanvas(ctx, projectID, title)
}

// ListCanvases lists the canvases of a project the caller owns.
func (s *CanvasService) ListCanvases(ctx context.Context, userID, projectID string) ([]graph.Canvas, error) {
	owned, err := s.store.ProjectOwned(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, appErrors.NewNotFoundError("project")
	}
	return s.store.ListCanvases(ctx, projectID)
}

// GetCanvas fetches a single canvas.
func (s *CanvasService) GetCanvas(ctx context.Context, userID, canvasID string) (*graph.Canvas, error) {
	return s.store.GetCanvas(ctx, canvasID, userID)
}

// GetCanvasData fetches a canvas with its nodes and edges in insertion
// order.
func (s *CanvasService) GetCanvasData(ctx context.Context, userID, canvasID string) (*CanvasData, error) {
	canvas, err := s.store.GetCanvas(ctx, canvasID, userID)
	if err != nil {
		return nil, err
	}
	nodes, err := s.store.ListNodes(ctx, canvasID)
	if err != nil {
		return nil, err
	}
	edges, err := s.store.ListEdges(ctx, canvasID)
	if err != nil {
		return nil, err
	}
	return &CanvasData{Canvas: canvas, Nodes: nodes, Edges: edges}, nil
}

// UpdateCanvas applies a partial canvas update. An empty patch returns the
// current row.
func (s *CanvasService) UpdateCanvas(ctx context.Context, userID, canvasID string, patch graph.CanvasPatch) (*graph.Canvas, error) {
	canvas, err := s.store.GetCanvas(ctx, canvasID, userID)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return canvas, nil
	}
	return s.store.UpdateCanvas(ctx, canvasID, patch)
}

// DeleteCanvas deletes a canvas and everything on it.
func (s *CanvasService) DeleteCanvas(ctx context.Context, userID, canvasID string) error {
	if _, err := s.store.GetCanvas(ctx, canvasID, userID); err != nil {
		return err
	}
	return s.store.DeleteCanvas(ctx, canvasID)
}

// CreateNode creates a node on a canvas the caller owns. Chapter and image
// links must resolve inside the canvas's project.
func (s *CanvasService) CreateNode(ctx context.Context, userID, canvasID string, input CreateNodeInput) (*graph.Node, error) {
	canvas, err := s.store.GetCanvas(ctx, canvasID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.validateChapterLink(ctx, input.ChapterID, canvas.ProjectID); err != nil {
		return nil, err
	}
	if err := s.validateImageLink(ctx, input.ImageID, canvas.ProjectID); err != nil {
		return nil, err
	}

	label := input.Label
	if label == "" {
		label = "New node"
	}
	var x, y float64
	if input.PositionX != nil {
		x = *input.PositionX
	}
	if input.PositionY != nil {
		y = *input.PositionY
	}

	node := &graph.Node{
		ID:        uuid.New().String(),
		CanvasID:  canvasID,
		Type:      input.Type,
		Label:     label,
		Content:   input.Content,
		ChapterID: input.ChapterID,
		ImageID:   input.ImageID,
		PositionX: x,
		PositionY: y,
		Color:     input.Color,
	}
	if err := s.store.CreateNode(ctx, node); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.NodesCreated.Inc()
	}
	return node, nil
}

// UpdateNode applies a partial node update. Link validation runs only for
// fields present in the patch; an empty patch returns the current row.
func (s *CanvasService) UpdateNode(ctx context.Context, userID, canvasID, nodeID string, patch graph.NodePatch) (*graph.Node, error) {
	canvas, err := s.store.GetCanvas(ctx, canvasID, userID)
	if err != nil {
		return nil, err
	}
	node, err := s.store.GetNode(ctx, nodeID, canvasID, userID)
	if err != nil {
		return nil, err
	}

	// Positions are not clearable; an explicit null is a caller bug, not a
	// request to reset to the origin.
	if (patch.PositionX.Present && !patch.PositionX.Valid) || (patch.PositionY.Present && !patch.PositionY.Valid) {
		return nil, appErrors.NewValidationError("Invalid position")
	}

	if patch.ChapterID.Present && patch.ChapterID.Valid {
		if err := s.validateChapterLink(ctx, &patch.ChapterID.Value, canvas.ProjectID); err != nil {
			return nil, err
		}
	}
	if patch.ImageID.Present && patch.ImageID.Valid {
		if err := s.validateImageLink(ctx, &patch.ImageID.Value, canvas.ProjectID); err != nil {
			return nil, err
		}
	}

	if patch.Empty() {
		return node, nil
	}
	return s.store.UpdateNode(ctx, nodeID, patch)
}

// DeleteNode deletes a node and, by cascade, every edge referencing it.
func (s *CanvasService) DeleteNode(ctx context.Context, userID, canvasID, nodeID string) error {
	if _, err := s.store.GetNode(ctx, nodeID, canvasID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteNode(ctx, nodeID); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.NodesDeleted.Inc()
	}
	return nil
}

// CreateEdge creates a directed edge. Both endpoints must exist in the
// canvas; the check is a single membership query expecting exactly two
// matches.
func (s *CanvasService) CreateEdge(ctx context.Context, userID, canvasID string, input CreateEdgeInput) (*graph.Edge, error) {
	if _, err := s.store.GetCanvas(ctx, canvasID, userID); err != nil {
		return nil, err
	}

	count, err := s.store.NodesInCanvas(ctx, canvasID, []string{input.FromNodeID, input.ToNodeID})
	if err != nil {
		return nil, err
	}
	if count != 2 {
		return nil, appErrors.NewValidationError("Invalid nodes")
	}

	edge := &graph.Edge{
		ID:         uuid.New().String(),
		CanvasID:   canvasID,
		FromNodeID: input.FromNodeID,
		ToNodeID:   input.ToNodeID,
		Label:      input.Label,
	}
	if err := s.store.CreateEdge(ctx, edge); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.EdgesCreated.Inc()
	}
	return edge, nil
}

// DeleteEdge deletes an edge.
func (s *CanvasService) DeleteEdge(ctx context.Context, userID, canvasID, edgeID string) error {
	if _, err := s.store.GetEdge(ctx, edgeID, canvasID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteEdge(ctx, edgeID); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.EdgesDeleted.Inc()
	}
	return nil
}

func (s *CanvasService) validateChapterLink(ctx context.Context, chapterID *string, projectID string) error {
	if chapterID == nil || *chapterID == "" {
		return nil
	}
	ok, err := s.store.ChapterInProject(ctx, *chapterID, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.NewValidationError("Invalid chapter link")
	}
	return nil
}

func (s *CanvasService) validateImageLink(ctx context.Context, imageID *string, projectID string) error {
	if imageID == nil || *imageID == "" {
		return nil
	}
	ok, err := s.store.ImageInProject(ctx, *imageID, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.NewValidationError("Invalid image link")
	}
	return nil
}
