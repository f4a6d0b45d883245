package canvas

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wbzero-canvas/domain/graph"
)

// fakeAPI is an in-memory server double. Each method can be forced to fail.
type fakeAPI struct {
	mu      sync.Mutex
	nodes   []graph.Node
	edges   []graph.Edge
	canvas  graph.Canvas
	nextID  int
	failing map[string]error

	updateCalls     map[string]int
	deleteCalls     []string
	edgeDeleteCalls []string
	generated       func() ([]graph.Node, []graph.Edge)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		canvas:      graph.Canvas{ID: "c1", Title: "Plot"},
		failing:     make(map[string]error),
		updateCalls: make(map[string]int),
	}
}

func (f *fakeAPI) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[op] = err
}

func (f *fakeAPI) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeAPI) Load(context.Context, string) (*Data, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing["load"]; err != nil {
		return nil, err
	}
	return &Data{
		Canvas: f.canvas,
		Nodes:  append([]graph.Node(nil), f.nodes...),
		Edges:  append([]graph.Edge(nil), f.edges...),
	}, nil
}

func (f *fakeAPI) CreateNode(_ context.Context, canvasID string, fields map[string]interface{}) (*graph.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing["create_node"]; err != nil {
		return nil, err
	}
	node := graph.Node{ID: f.id("n"), CanvasID: canvasID, Label: "New node"}
	if x, ok := fields["position_x"].(float64); ok {
		node.PositionX = x
	}
	if y, ok := fields["position_y"].(float64); ok {
		node.PositionY = y
	}
	f.nodes = append(f.nodes, node)
	return &node, nil
}

func (f *fakeAPI) UpdateNode(_ context.Context, _, nodeID string, fields map[string]interface{}) (*graph.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls[nodeID]++
	if err := f.failing["update_node"]; err != nil {
		return nil, err
	}
	for i := range f.nodes {
		if f.nodes[i].ID == nodeID {
			if label, ok := fields["label"].(string); ok {
				f.nodes[i].Label = label
			}
			if x, ok := fields["position_x"].(float64); ok {
				f.nodes[i].PositionX = x
			}
			if y, ok := fields["position_y"].(float64); ok {
				f.nodes[i].PositionY = y
			}
			n := f.nodes[i]
			return &n, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeAPI) DeleteNode(_ context.Context, _, nodeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, nodeID)
	if err := f.failing["delete_node"]; err != nil {
		return err
	}
	for i := range f.nodes {
		if f.nodes[i].ID == nodeID {
			f.nodes = append(f.nodes[:i], f.nodes[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeAPI) CreateEdge(_ context.Context, canvasID, fromID, toID string, label *string) (*graph.Edge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing["create_edge"]; err != nil {
		return nil, err
	}
	edge := graph.Edge{ID: f.id("e"), CanvasID: canvasID, FromNodeID: fromID, ToNodeID: toID, Label: label}
	f.edges = append(f.edges, edge)
	return &edge, nil
}

func (f *fakeAPI) DeleteEdge(_ context.Context, _, edgeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edgeDeleteCalls = append(f.edgeDeleteCalls, edgeID)
	if err := f.failing["delete_edge"]; err != nil {
		return err
	}
	for i := range f.edges {
		if f.edges[i].ID == edgeID {
			f.edges = append(f.edges[:i], f.edges[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeAPI) UpdateCanvas(_ context.Context, _ string, fields map[string]interface{}) (*graph.Canvas, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing["update_canvas"]; err != nil {
		return nil, err
	}
	if title, ok := fields["title"].(string); ok {
		f.canvas.Title = title
	}
	c := f.canvas
	return &c, nil
}

func (f *fakeAPI) Generate(context.Context, string, string) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing["generate"]; err != nil {
		return 0, 0, err
	}
	if f.generated != nil {
		nodes, edges := f.generated()
		f.nodes = append(f.nodes, nodes...)
		f.edges = append(f.edges, edges...)
		return len(nodes), len(edges), nil
	}
	return 0, 0, nil
}

// recorder counts notifications and remembers failures.
type recorder struct {
	mu       sync.Mutex
	changes  int
	failures []string
}

func (r *recorder) GraphChanged() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes++
}

func (r *recorder) OperationFailed(op string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, op)
}

func (r *recorder) failedOps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.failures...)
}

func TestLoadMirrorsServerState(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.nodes = []graph.Node{{ID: "n1", Label: "a"}, {ID: "n2", Label: "b"}}
	api.edges = []graph.Edge{{ID: "e1", FromNodeID: "n1", ToNodeID: "n2"}}

	m := NewModel(api, "c1", nil)
	require.NoError(t, m.Load(ctx))

	nodes := m.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "n1", nodes[0].ID)
	assert.Equal(t, StatePersisted, nodes[0].State)
	assert.Len(t, m.Edges(), 1)
	assert.Equal(t, "Plot", m.Title())
}

func TestAddNodeAdoptsServerID(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	m := NewModel(api, "c1", nil)

	id, err := m.AddNodeAt(ctx, 50, 60)
	require.NoError(t, err)
	assert.NotContains(t, id, "tmp-")

	node, ok := m.Node(id)
	require.True(t, ok)
	assert.Equal(t, StatePersisted, node.State)
	assert.Equal(t, 50.0, node.PositionX)
	require.Len(t, m.Nodes(), 1)
}

func TestFailedCreateRollsBack(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.fail("create_node", errors.New("offline"))
	rec := &recorder{}
	m := NewModel(api, "c1", rec)

	_, err := m.AddNodeAt(ctx, 0, 0)
	require.Error(t, err)
	assert.Empty(t, m.Nodes())
	assert.Contains(t, rec.failedOps(), "create node")
}

func TestFailedUpdateKeepsLocalState(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	rec := &recorder{}
	m := NewModel(api, "c1", rec)

	id, err := m.AddNodeAt(ctx, 0, 0)
	require.NoError(t, err)

	api.fail("update_node", errors.New("offline"))
	m.SetLabel(ctx, id, "Renamed")

	// Optimistic state survives the failure; only the notifier hears of it.
	node, ok := m.Node(id)
	require.True(t, ok)
	assert.Equal(t, "Renamed", node.Label)
	assert.Contains(t, rec.failedOps(), "update node")
}

func TestDragCoalescesIntoOneUpdate(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	m := NewModel(api, "c1", nil)

	id, err := m.AddNodeAt(ctx, 0, 0)
	require.NoError(t, err)

	for i := 0; i < 25; i++ {
		m.Drag(id, float64(i*10), 5)
	}
	m.EndDrag(ctx, id)

	assert.Equal(t, 1, api.updateCalls[id])
	node, _ := m.Node(id)
	assert.Equal(t, 240.0, node.PositionX)
}

func TestConnectToEmptyCreatesNodeAndEdge(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	m := NewModel(api, "c1", nil)

	from, err := m.AddNodeAt(ctx, 0, 0)
	require.NoError(t, err)

	to, err := m.ConnectToEmpty(ctx, from, 200, 100)
	require.NoError(t, err)

	require.Len(t, m.Nodes(), 2)
	edges := m.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, from, edges[0].FromNodeID)
	assert.Equal(t, to, edges[0].ToNodeID)
	assert.Equal(t, StatePersisted, edges[0].State)
}

func TestConnectRejectsUnknownNodes(t *testing.T) {
	ctx := context.Background()
	m := NewModel(newFakeAPI(), "c1", nil)
	_, err := m.Connect(ctx, "missing-a", "missing-b")
	assert.Error(t, err)
}

func TestDeleteSelection(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	m := NewModel(api, "c1", nil)

	a, err := m.AddNodeAt(ctx, 0, 0)
	require.NoError(t, err)
	b, err := m.AddNodeAt(ctx, 100, 0)
	require.NoError(t, err)
	c, err := m.AddNodeAt(ctx, 200, 0)
	require.NoError(t, err)
	_, err = m.Connect(ctx, a, b)
	require.NoError(t, err)

	m.ToggleSelect(a)
	m.ToggleSelect(b)
	require.Len(t, m.Selection(), 2)

	m.DeleteSelection(ctx)

	nodes := m.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, c, nodes[0].ID)
	// The edge between the deleted pair goes locally too.
	assert.Empty(t, m.Edges())
	assert.ElementsMatch(t, []string{a, b}, api.deleteCalls)
}

func TestDeleteSelectionRemovesSelectedEdge(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	m := NewModel(api, "c1", nil)

	a, err := m.AddNodeAt(ctx, 0, 0)
	require.NoError(t, err)
	b, err := m.AddNodeAt(ctx, 100, 0)
	require.NoError(t, err)
	edgeID, err := m.Connect(ctx, a, b)
	require.NoError(t, err)

	// Only the edge is selected; its endpoints stay.
	m.ToggleSelectEdge(edgeID)
	require.Equal(t, []string{edgeID}, m.EdgeSelection())

	m.DeleteSelection(ctx)

	assert.Len(t, m.Nodes(), 2)
	assert.Empty(t, m.Edges())
	assert.Empty(t, api.deleteCalls)
	assert.Equal(t, []string{edgeID}, api.edgeDeleteCalls)
	assert.Empty(t, api.edges)
}

func TestDeleteSelectionLeavesEdgeToNodeCascade(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	m := NewModel(api, "c1", nil)

	a, err := m.AddNodeAt(ctx, 0, 0)
	require.NoError(t, err)
	b, err := m.AddNodeAt(ctx, 100, 0)
	require.NoError(t, err)
	edgeID, err := m.Connect(ctx, a, b)
	require.NoError(t, err)

	m.ToggleSelect(a)
	m.ToggleSelectEdge(edgeID)
	m.DeleteSelection(ctx)

	// The edge rides the node delete; no standalone edge call is made.
	assert.Equal(t, []string{a}, api.deleteCalls)
	assert.Empty(t, api.edgeDeleteCalls)
	assert.Empty(t, m.Edges())
	require.Len(t, m.Nodes(), 1)
	assert.Equal(t, b, m.Nodes()[0].ID)
}

func TestDeleteSelectionKeepsRemovalOnFailure(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	rec := &recorder{}
	m := NewModel(api, "c1", rec)

	a, err := m.AddNodeAt(ctx, 0, 0)
	require.NoError(t, err)

	api.fail("delete_node", errors.New("offline"))
	m.Select(a)
	m.DeleteSelection(ctx)

	assert.Empty(t, m.Nodes())
	assert.Contains(t, rec.failedOps(), "delete node")
}

func TestUnlinkSendsExplicitNull(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	m := NewModel(api, "c1", nil)

	id, err := m.AddNodeAt(ctx, 0, 0)
	require.NoError(t, err)

	m.LinkChapter(ctx, id, "ch-1")
	node, _ := m.Node(id)
	require.NotNil(t, node.ChapterID)

	m.UnlinkChapter(ctx, id)
	node, _ = m.Node(id)
	assert.Nil(t, node.ChapterID)
}

func TestAutoLayoutPersistsPositions(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	m := NewModel(api, "c1", nil)

	a, err := m.AddNodeAt(ctx, 500, 500)
	require.NoError(t, err)
	b, err := m.AddNodeAt(ctx, 10, 10)
	require.NoError(t, err)
	_, err = m.Connect(ctx, a, b)
	require.NoError(t, err)

	m.AutoLayout(ctx)

	na, _ := m.Node(a)
	nb, _ := m.Node(b)
	assert.Less(t, na.PositionX, nb.PositionX)
	// One layout write per node on top of the two creates.
	assert.Equal(t, 1, api.updateCalls[a])
	assert.Equal(t, 1, api.updateCalls[b])
}

func TestGenerateReloadsAndLaysOut(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.generated = func() ([]graph.Node, []graph.Edge) {
		return []graph.Node{
				{ID: "g1", Label: "Mira"},
				{ID: "g2", Label: "Vault"},
			}, []graph.Edge{
				{ID: "ge1", FromNodeID: "g1", ToNodeID: "g2"},
			}
	}
	m := NewModel(api, "c1", nil)

	nodes, edges, err := m.Generate(ctx, "a heist")
	require.NoError(t, err)
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 1, edges)

	require.Len(t, m.Nodes(), 2)
	g1, _ := m.Node("g1")
	g2, _ := m.Node("g2")
	assert.Less(t, g1.PositionX, g2.PositionX)
}

func TestSetTitle(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	m := NewModel(api, "c1", nil)
	require.NoError(t, m.Load(ctx))

	m.SetTitle(ctx, "Act Two")
	assert.Equal(t, "Act Two", m.Title())
	assert.Equal(t, "Act Two", api.canvas.Title)
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	character := "character"
	content := "A tired cartographer"
	plans := "plans"
	api.nodes = []graph.Node{
		{ID: "n1", Label: "Mira", Type: &character, Content: &content},
		{ID: "n2", Label: "The Heist"},
	}
	api.edges = []graph.Edge{
		{ID: "e1", FromNodeID: "n1", ToNodeID: "n2", Label: &plans},
	}
	m := NewModel(api, "c1", nil)
	require.NoError(t, m.Load(ctx))

	snapshot := m.Snapshot()
	assert.Contains(t, snapshot, "Canvas: Plot")
	assert.Contains(t, snapshot, "- [character] Mira: A tired cartographer")
	assert.Contains(t, snapshot, "- The Heist")
	assert.Contains(t, snapshot, "- Mira -> The Heist (plans)")
}
