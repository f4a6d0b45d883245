// Package integration exercises the full stack: the HTTP client model
// against a real server backed by a real database, with only the language
// model stubbed out.
package integration

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wbzero-canvas/application/ports"
	"wbzero-canvas/application/services"
	clientcanvas "wbzero-canvas/client/canvas"
	"wbzero-canvas/domain/graph"
	"wbzero-canvas/infrastructure/persistence/sqlite"
	"wbzero-canvas/interfaces/http/rest"
	"wbzero-canvas/pkg/auth"
)

var jwtConfig = auth.JWTConfig{SecretKey: "integration-secret", Issuer: "wbzero-canvas"}

type scriptedCompleter struct {
	response string
}

func (s scriptedCompleter) Complete(context.Context, ports.CompletionRequest) (string, error) {
	return s.response, nil
}

type env struct {
	store  *sqlite.Store
	server *httptest.Server
	canvas *graph.Canvas
	client *clientcanvas.Client
}

func setup(t *testing.T, completer ports.ChatCompleter) *env {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "integration.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	project, err := store.CreateProject(ctx, "writer-1", "Novel")
	require.NoError(t, err)
	canvas, err := store.CreateCanvas(ctx, project.ID, "Act One")
	require.NoError(t, err)

	logger := zap.NewNop()
	validator, err := auth.NewJWTValidator(jwtConfig)
	require.NoError(t, err)
	if completer == nil {
		completer = scriptedCompleter{response: "{}"}
	}

	canvasService := services.NewCanvasService(store, nil, logger)
	generator := services.NewGenerator(store, completer, nil, logger, nil)
	router := rest.NewRouter(canvasService, generator, validator, nil, nil, false, logger)
	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)

	token, err := auth.SignToken(jwtConfig, "writer-1", time.Hour)
	require.NoError(t, err)

	return &env{
		store:  store,
		server: server,
		canvas: canvas,
		client: clientcanvas.NewClient(server.URL, token, server.Client()),
	}
}

func TestEditSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := setup(t, nil)

	model := clientcanvas.NewModel(e.client, e.canvas.ID, nil)
	require.NoError(t, model.Load(ctx))
	assert.Equal(t, "Act One", model.Title())

	// Build a small graph through the model.
	hero, err := model.AddNodeAt(ctx, 100, 100)
	require.NoError(t, err)
	model.SetLabel(ctx, hero, "Hero")
	model.SetType(ctx, hero, "character")

	villain, err := model.ConnectToEmpty(ctx, hero, 400, 100)
	require.NoError(t, err)
	model.SetLabel(ctx, villain, "Villain")

	// Everything the model did should be visible in a fresh load.
	fresh := clientcanvas.NewModel(e.client, e.canvas.ID, nil)
	require.NoError(t, fresh.Load(ctx))

	nodes := fresh.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "Hero", nodes[0].Label)
	require.NotNil(t, nodes[0].Type)
	assert.Equal(t, "character", *nodes[0].Type)
	assert.Equal(t, "Villain", nodes[1].Label)

	edges := fresh.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, nodes[0].ID, edges[0].FromNodeID)

	// Drag, persist, verify on the server.
	fresh.Drag(nodes[0].ID, 777, 42)
	fresh.EndDrag(ctx, nodes[0].ID)

	stored, err := e.store.GetNode(ctx, nodes[0].ID, e.canvas.ID, "writer-1")
	require.NoError(t, err)
	assert.Equal(t, 777.0, stored.PositionX)
	assert.Equal(t, 42.0, stored.PositionY)

	// Delete the villain; the edge goes with it server-side.
	fresh.Select(nodes[1].ID)
	fresh.DeleteSelection(ctx)

	remaining, err := e.store.ListNodes(ctx, e.canvas.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	serverEdges, err := e.store.ListEdges(ctx, e.canvas.ID)
	require.NoError(t, err)
	assert.Empty(t, serverEdges)
}

func TestGenerateFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	generated := map[string]interface{}{
		"nodes": []map[string]interface{}{
			{"label": "Mira", "type": "character", "content": "A tired cartographer"},
			{"label": "The Vault", "type": "location"},
			{"label": "The Heist", "type": "event"},
		},
		"edges": []map[string]interface{}{
			{"from": 0, "to": 2, "label": "plans"},
			{"from": 2, "to": 1},
		},
	}
	encoded, err := json.Marshal(generated)
	require.NoError(t, err)
	e := setup(t, scriptedCompleter{response: "```json\n" + string(encoded) + "\n```"})

	model := clientcanvas.NewModel(e.client, e.canvas.ID, nil)
	require.NoError(t, model.Load(ctx))

	nodes, edges, err := model.Generate(ctx, "a heist story")
	require.NoError(t, err)
	assert.Equal(t, 3, nodes)
	assert.Equal(t, 2, edges)

	// The model reloaded and laid the graph out after generation.
	views := model.Nodes()
	require.Len(t, views, 3)
	byLabel := make(map[string]clientcanvas.NodeView, len(views))
	for _, v := range views {
		byLabel[v.Label] = v
	}
	assert.Less(t, byLabel["Mira"].PositionX, byLabel["The Heist"].PositionX)
	assert.Less(t, byLabel["The Heist"].PositionX, byLabel["The Vault"].PositionX)

	// Layout positions were persisted, not just local.
	stored, err := e.store.ListNodes(ctx, e.canvas.ID)
	require.NoError(t, err)
	for _, v := range views {
		for _, s := range stored {
			if s.ID == v.ID {
				assert.Equal(t, v.PositionX, s.PositionX)
				assert.Equal(t, v.PositionY, s.PositionY)
			}
		}
	}

	// The snapshot carries the generated structure for the writing muse.
	snapshot := model.Snapshot()
	assert.Contains(t, snapshot, "[character] Mira")
	assert.Contains(t, snapshot, "Mira -> The Heist (plans)")
}

func TestTenantIsolationEndToEnd(t *testing.T) {
	ctx := context.Background()
	e := setup(t, nil)

	intruderToken, err := auth.SignToken(jwtConfig, "writer-2", time.Hour)
	require.NoError(t, err)
	intruder := clientcanvas.NewClient(e.server.URL, intruderToken, e.server.Client())

	_, err = intruder.Load(ctx, e.canvas.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
