// Package ports defines the interfaces the application layer consumes.
// Infrastructure implements them; the application never imports
// infrastructure.
package ports

import (
	"context"

	"wbzero-canvas/domain/graph"
)

// GraphStore is the persistence port for the canvas graph. Read operations
// that take a userID resolve ownership through the canvas -> project -> user
// join and report a uniform not-found on any miss, before anything is
// mutated. Canvas/node/edge writes assume ownership was already proven for
// the enclosing canvas.
type GraphStore interface {
	// Canvases
	CreateCanvas(ctx context.Context, projectID, title string) (*graph.Canvas, error)
	GetCanvas(ctx context.Context, canvasID, userID string) (*graph.Canvas, error)
	ListCanvases(ctx context.Context, projectID string) ([]graph.Canvas, error)
	UpdateCanvas(ctx context.Context, canvasID string, patch graph.CanvasPatch) (*graph.Canvas, error)
	DeleteCanvas(ctx context.Context, canvasID string) error

	// Nodes and edges, in insertion order
	ListNodes(ctx context.Context, canvasID string) ([]graph.Node, error)
	ListEdges(ctx context.Context, canvasID string) ([]graph.Edge, error)

	GetNode(ctx context.Context, nodeID, canvasID, userID string) (*graph.Node, error)
	CreateNode(ctx context.Context, node *graph.Node) error
	UpdateNode(ctx context.Context, nodeID string, patch graph.NodePatch) (*graph.Node, error)
	DeleteNode(ctx context.Context, nodeID string) error

	GetEdge(ctx context.Context, edgeID, canvasID, userID string) (*graph.Edge, error)
	CreateEdge(ctx context.Context, edge *graph.Edge) error
	DeleteEdge(ctx context.Context, edgeID string) error

	// Validation lookups
	ProjectOwned(ctx context.Context, projectID, userID string) (bool, error)
	NodesInCanvas(ctx context.Context, canvasID string, nodeIDs []string) (int, error)
	ChapterInProject(ctx context.Context, chapterID, projectID string) (bool, error)
	// ImageInProject excludes soft-deleted images.
	ImageInProject(ctx context.Context, imageID, projectID string) (bool, error)
	// MaxNodeX returns the largest node X on the canvas and whether any node
	// exists, for generation anchoring.
	MaxNodeX(ctx context.Context, canvasID string) (float64, bool, error)
}
