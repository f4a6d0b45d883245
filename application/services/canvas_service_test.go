package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wbzero-canvas/domain/graph"
	"wbzero-canvas/infrastructure/persistence/sqlite"
	appErrors "wbzero-canvas/pkg/errors"
)

type fixture struct {
	store   *sqlite.Store
	service *CanvasService
	project *graph.Project
	canvas  *graph.Canvas
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	project, err := store.CreateProject(ctx, "user-1", "Novel")
	require.NoError(t, err)
	canvas, err := store.CreateCanvas(ctx, project.ID, "Plot")
	require.NoError(t, err)

	return &fixture{
		store:   store,
		service: NewCanvasService(store, nil, zap.NewNop()),
		project: project,
		canvas:  canvas,
	}
}

func strPtr(s string) *string { return &s }

func TestCreateCanvasDefaultTitle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	canvas, err := f.service.CreateCanvas(ctx, "user-1", f.project.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Untitled Canvas", canvas.Title)

	_, err = f.service.CreateCanvas(ctx, "user-2", f.project.ID, "Nope")
	assert.True(t, appErrors.IsNotFound(err))
}

func TestCreateNodeDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	node, err := f.service.CreateNode(ctx, "user-1", f.canvas.ID, CreateNodeInput{})
	require.NoError(t, err)
	assert.Equal(t, "New node", node.Label)
	assert.Equal(t, 0.0, node.PositionX)
	assert.Equal(t, 0.0, node.PositionY)
	assert.NotEmpty(t, node.ID)
}

func TestCreateNodeLinkValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	chapterID, err := f.store.CreateChapter(ctx, f.project.ID, "Chapter One")
	require.NoError(t, err)
	imageID, err := f.store.CreateImage(ctx, chapterID)
	require.NoError(t, err)

	node, err := f.service.CreateNode(ctx, "user-1", f.canvas.ID, CreateNodeInput{
		Label:     "Linked",
		ChapterID: &chapterID,
		ImageID:   &imageID,
	})
	require.NoError(t, err)
	require.NotNil(t, node.ChapterID)
	assert.Equal(t, chapterID, *node.ChapterID)

	// A chapter from a different project does not resolve.
	_, err = f.service.CreateNode(ctx, "user-1", f.canvas.ID, CreateNodeInput{
		ChapterID: strPtr(uuid.New().String()),
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))
	assert.Contains(t, err.Error(), "Invalid chapter link")

	// Soft-deleted images stop validating.
	require.NoError(t, f.store.SoftDeleteImage(ctx, imageID))
	_, err = f.service.CreateNode(ctx, "user-1", f.canvas.ID, CreateNodeInput{
		ImageID: &imageID,
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))
	assert.Contains(t, err.Error(), "Invalid image link")
}

func TestUpdateNodeEmptyPatchIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	node, err := f.service.CreateNode(ctx, "user-1", f.canvas.ID, CreateNodeInput{Label: "Keep"})
	require.NoError(t, err)

	got, err := f.service.UpdateNode(ctx, "user-1", f.canvas.ID, node.ID, graph.NodePatch{})
	require.NoError(t, err)
	assert.Equal(t, "Keep", got.Label)
	assert.Equal(t, node.ID, got.ID)
}

func TestUpdateNodeRejectsNullPosition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	x := 40.0
	node, err := f.service.CreateNode(ctx, "user-1", f.canvas.ID, CreateNodeInput{PositionX: &x})
	require.NoError(t, err)

	_, err = f.service.UpdateNode(ctx, "user-1", f.canvas.ID, node.ID, graph.NodePatch{
		PositionX: graph.Field[float64]{Present: true},
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))

	_, err = f.service.UpdateNode(ctx, "user-1", f.canvas.ID, node.ID, graph.NodePatch{
		PositionY: graph.Field[float64]{Present: true},
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))

	// The position is untouched by the rejected patches.
	got, err := f.service.UpdateNode(ctx, "user-1", f.canvas.ID, node.ID, graph.NodePatch{})
	require.NoError(t, err)
	assert.Equal(t, 40.0, got.PositionX)
}

func TestUpdateNodeValidatesNewLinks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	node, err := f.service.CreateNode(ctx, "user-1", f.canvas.ID, CreateNodeInput{})
	require.NoError(t, err)

	patch := graph.NodePatch{
		ChapterID: graph.Field[string]{Present: true, Valid: true, Value: uuid.New().String()},
	}
	_, err = f.service.UpdateNode(ctx, "user-1", f.canvas.ID, node.ID, patch)
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))

	// Clearing with an explicit null needs no validation.
	chapterID, err := f.store.CreateChapter(ctx, f.project.ID, "Chapter")
	require.NoError(t, err)
	_, err = f.service.UpdateNode(ctx, "user-1", f.canvas.ID, node.ID, graph.NodePatch{
		ChapterID: graph.Field[string]{Present: true, Valid: true, Value: chapterID},
	})
	require.NoError(t, err)

	got, err := f.service.UpdateNode(ctx, "user-1", f.canvas.ID, node.ID, graph.NodePatch{
		ChapterID: graph.Field[string]{Present: true},
	})
	require.NoError(t, err)
	assert.Nil(t, got.ChapterID)
}

func TestCreateEdgeEndpointValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.service.CreateNode(ctx, "user-1", f.canvas.ID, CreateNodeInput{Label: "a"})
	require.NoError(t, err)
	b, err := f.service.CreateNode(ctx, "user-1", f.canvas.ID, CreateNodeInput{Label: "b"})
	require.NoError(t, err)

	edge, err := f.service.CreateEdge(ctx, "user-1", f.canvas.ID, CreateEdgeInput{
		FromNodeID: a.ID,
		ToNodeID:   b.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, a.ID, edge.FromNodeID)

	// Unknown endpoint.
	_, err = f.service.CreateEdge(ctx, "user-1", f.canvas.ID, CreateEdgeInput{
		FromNodeID: a.ID,
		ToNodeID:   uuid.New().String(),
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))
	assert.Contains(t, err.Error(), "Invalid nodes")

	// Node from another canvas.
	other, err := f.service.CreateCanvas(ctx, "user-1", f.project.ID, "Other")
	require.NoError(t, err)
	foreign, err := f.service.CreateNode(ctx, "user-1", other.ID, CreateNodeInput{})
	require.NoError(t, err)
	_, err = f.service.CreateEdge(ctx, "user-1", f.canvas.ID, CreateEdgeInput{
		FromNodeID: a.ID,
		ToNodeID:   foreign.ID,
	})
	assert.True(t, appErrors.IsValidation(err))
}

func TestDeleteNodeRemovesEdges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.service.CreateNode(ctx, "user-1", f.canvas.ID, CreateNodeInput{Label: "a"})
	require.NoError(t, err)
	b, err := f.service.CreateNode(ctx, "user-1", f.canvas.ID, CreateNodeInput{Label: "b"})
	require.NoError(t, err)
	_, err = f.service.CreateEdge(ctx, "user-1", f.canvas.ID, CreateEdgeInput{FromNodeID: a.ID, ToNodeID: b.ID})
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteNode(ctx, "user-1", f.canvas.ID, a.ID))

	data, err := f.service.GetCanvasData(ctx, "user-1", f.canvas.ID)
	require.NoError(t, err)
	assert.Len(t, data.Nodes, 1)
	assert.Empty(t, data.Edges)
}

func TestOwnershipIsUniformNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	node, err := f.service.CreateNode(ctx, "user-1", f.canvas.ID, CreateNodeInput{})
	require.NoError(t, err)

	_, err = f.service.GetCanvasData(ctx, "user-2", f.canvas.ID)
	assert.True(t, appErrors.IsNotFound(err))

	_, err = f.service.UpdateNode(ctx, "user-2", f.canvas.ID, node.ID, graph.NodePatch{})
	assert.True(t, appErrors.IsNotFound(err))

	err = f.service.DeleteCanvas(ctx, "user-2", f.canvas.ID)
	assert.True(t, appErrors.IsNotFound(err))

	// The resource still exists for the owner.
	_, err = f.service.GetCanvas(ctx, "user-1", f.canvas.ID)
	require.NoError(t, err)
}

func TestUpdateCanvasEmptyPatchReturnsCurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	got, err := f.service.UpdateCanvas(ctx, "user-1", f.canvas.ID, graph.CanvasPatch{})
	require.NoError(t, err)
	assert.Equal(t, "Plot", got.Title)
}
