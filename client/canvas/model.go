package canvas

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"wbzero-canvas/application/layout"
	"wbzero-canvas/domain/graph"
)

// EntityState tracks where a local entity stands against the server.
type EntityState int

const (
	StatePersisted EntityState = iota
	StatePendingCreate
	StatePendingDelete
)

// Notifier receives model events. Implementations must not call back into
// the model from these methods.
type Notifier interface {
	GraphChanged()
	OperationFailed(op string, err error)
}

// nopNotifier is used when the caller does not care about events.
type nopNotifier struct{}

func (nopNotifier) GraphChanged()                 {}
func (nopNotifier) OperationFailed(string, error) {}

// NodeView is a node plus its sync state.
type NodeView struct {
	graph.Node
	State    EntityState
	Selected bool
}

// EdgeView is an edge plus its sync state.
type EdgeView struct {
	graph.Edge
	State    EntityState
	Selected bool
}

// Model mirrors one canvas. Edits apply to the local mirror first and are
// pushed to the server in the same call; a failed update or delete keeps
// the optimistic local state and reports the failure, a failed create rolls
// the pending entity back out.
type Model struct {
	mu       sync.Mutex
	api      API
	canvasID string
	notifier Notifier

	canvas    graph.Canvas
	nodes     map[string]*NodeView
	edges     map[string]*EdgeView
	nodeOrder []string
	edgeOrder []string

	layoutCfg layout.Config
}

// NewModel creates an empty model for one canvas. notifier may be nil.
func NewModel(api API, canvasID string, notifier Notifier) *Model {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Model{
		api:       api,
		canvasID:  canvasID,
		notifier:  notifier,
		nodes:     make(map[string]*NodeView),
		edges:     make(map[string]*EdgeView),
		layoutCfg: layout.DefaultConfig(),
	}
}

// Load replaces the local mirror with the server state.
func (m *Model) Load(ctx context.Context) error {
	data, err := m.api.Load(ctx, m.canvasID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.canvas = data.Canvas
	m.nodes = make(map[string]*NodeView, len(data.Nodes))
	m.edges = make(map[string]*EdgeView, len(data.Edges))
	m.nodeOrder = m.nodeOrder[:0]
	m.edgeOrder = m.edgeOrder[:0]
	for _, n := range data.Nodes {
		m.nodes[n.ID] = &NodeView{Node: n, State: StatePersisted}
		m.nodeOrder = append(m.nodeOrder, n.ID)
	}
	for _, e := range data.Edges {
		m.edges[e.ID] = &EdgeView{Edge: e, State: StatePersisted}
		m.edgeOrder = append(m.edgeOrder, e.ID)
	}
	m.mu.Unlock()

	m.notifier.GraphChanged()
	return nil
}

// Title returns the canvas title.
func (m *Model) Title() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canvas.Title
}

// Nodes returns the nodes in insertion order.
func (m *Model) Nodes() []NodeView {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]NodeView, 0, len(m.nodeOrder))
	for _, id := range m.nodeOrder {
		if n, ok := m.nodes[id]; ok {
			out = append(out, *n)
		}
	}
	return out
}

// Edges returns the edges in insertion order.
func (m *Model) Edges() []EdgeView {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EdgeView, 0, len(m.edgeOrder))
	for _, id := range m.edgeOrder {
		if e, ok := m.edges[id]; ok {
			out = append(out, *e)
		}
	}
	return out
}

// Node returns one node by ID.
func (m *Model) Node(id string) (NodeView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return NodeView{}, false
	}
	return *n, true
}

// AddNodeAt creates a node at a position. The node appears immediately with
// a temporary ID, which is swapped for the server ID once the create lands.
func (m *Model) AddNodeAt(ctx context.Context, x, y float64) (string, error) {
	tempID := "tmp-" + uuid.New().String()

	m.mu.Lock()
	m.nodes[tempID] = &NodeView{
		Node: graph.Node{
			ID:        tempID,
			CanvasID:  m.canvasID,
			Label:     "New node",
			PositionX: x,
			PositionY: y,
		},
		State: StatePendingCreate,
	}
	m.nodeOrder = append(m.nodeOrder, tempID)
	m.mu.Unlock()
	m.notifier.GraphChanged()

	created, err := m.api.CreateNode(ctx, m.canvasID, map[string]interface{}{
		"position_x": x,
		"position_y": y,
	})
	if err != nil {
		m.removeNodeLocal(tempID)
		m.notifier.OperationFailed("create node", err)
		m.notifier.GraphChanged()
		return "", err
	}

	m.adoptNodeID(tempID, created)
	m.notifier.GraphChanged()
	return created.ID, nil
}

// Connect creates an edge between two persisted nodes.
func (m *Model) Connect(ctx context.Context, fromID, toID string) (string, error) {
	m.mu.Lock()
	from, fromOK := m.nodes[fromID]
	to, toOK := m.nodes[toID]
	if !fromOK || !toOK || from.State != StatePersisted || to.State != StatePersisted {
		m.mu.Unlock()
		return "", fmt.Errorf("both nodes must exist before connecting")
	}
	tempID := "tmp-" + uuid.New().String()
	m.edges[tempID] = &EdgeView{
		Edge: graph.Edge{
			ID:         tempID,
			CanvasID:   m.canvasID,
			FromNodeID: fromID,
			ToNodeID:   toID,
		},
		State: StatePendingCreate,
	}
	m.edgeOrder = append(m.edgeOrder, tempID)
	m.mu.Unlock()
	m.notifier.GraphChanged()

	created, err := m.api.CreateEdge(ctx, m.canvasID, fromID, toID, nil)
	if err != nil {
		m.removeEdgeLocal(tempID)
		m.notifier.OperationFailed("create edge", err)
		m.notifier.GraphChanged()
		return "", err
	}

	m.mu.Lock()
	if view, ok := m.edges[tempID]; ok {
		delete(m.edges, tempID)
		view.Edge = *created
		view.State = StatePersisted
		m.edges[created.ID] = view
		for i, id := range m.edgeOrder {
			if id == tempID {
				m.edgeOrder[i] = created.ID
			}
		}
	}
	m.mu.Unlock()
	m.notifier.GraphChanged()
	return created.ID, nil
}

// ConnectToEmpty is the drag-to-empty-space gesture: create a node at the
// drop point, then an edge to it from the source node.
func (m *Model) ConnectToEmpty(ctx context.Context, fromID string, x, y float64) (string, error) {
	nodeID, err := m.AddNodeAt(ctx, x, y)
	if err != nil {
		return "", err
	}
	if _, err := m.Connect(ctx, fromID, nodeID); err != nil {
		return nodeID, err
	}
	return nodeID, nil
}

// Drag moves a node locally. Nothing is sent to the server until EndDrag,
// so a continuous drag costs one request.
func (m *Model) Drag(nodeID string, x, y float64) {
	m.mu.Lock()
	node, ok := m.nodes[nodeID]
	if ok {
		node.PositionX = x
		node.PositionY = y
	}
	m.mu.Unlock()
	if ok {
		m.notifier.GraphChanged()
	}
}

// EndDrag persists the node's final position.
func (m *Model) EndDrag(ctx context.Context, nodeID string) {
	m.mu.Lock()
	node, ok := m.nodes[nodeID]
	if !ok || node.State != StatePersisted {
		m.mu.Unlock()
		return
	}
	x, y := node.PositionX, node.PositionY
	m.mu.Unlock()

	if _, err := m.api.UpdateNode(ctx, m.canvasID, nodeID, map[string]interface{}{
		"position_x": x,
		"position_y": y,
	}); err != nil {
		m.notifier.OperationFailed("move node", err)
	}
}

// SetLabel updates a node's label.
func (m *Model) SetLabel(ctx context.Context, nodeID, label string) {
	m.updateNodeField(ctx, nodeID, "label", label, func(n *NodeView) { n.Label = label })
}

// SetContent updates a node's content.
func (m *Model) SetContent(ctx context.Context, nodeID, content string) {
	m.updateNodeField(ctx, nodeID, "content", content, func(n *NodeView) { n.Content = &content })
}

// SetType updates a node's type.
func (m *Model) SetType(ctx context.Context, nodeID, nodeType string) {
	m.updateNodeField(ctx, nodeID, "type", nodeType, func(n *NodeView) { n.Type = &nodeType })
}

// SetColor updates a node's color.
func (m *Model) SetColor(ctx context.Context, nodeID, color string) {
	m.updateNodeField(ctx, nodeID, "color", color, func(n *NodeView) { n.Color = &color })
}

// LinkChapter attaches a chapter to a node.
func (m *Model) LinkChapter(ctx context.Context, nodeID, chapterID string) {
	m.updateNodeField(ctx, nodeID, "chapter_id", chapterID, func(n *NodeView) { n.ChapterID = &chapterID })
}

// UnlinkChapter clears a node's chapter link. The field is sent as an
// explicit null so the server clears the column.
func (m *Model) UnlinkChapter(ctx context.Context, nodeID string) {
	m.updateNodeField(ctx, nodeID, "chapter_id", nil, func(n *NodeView) { n.ChapterID = nil })
}

// LinkImage attaches an image to a node.
func (m *Model) LinkImage(ctx context.Context, nodeID, imageID string) {
	m.updateNodeField(ctx, nodeID, "image_id", imageID, func(n *NodeView) { n.ImageID = &imageID })
}

// UnlinkImage clears a node's image link.
func (m *Model) UnlinkImage(ctx context.Context, nodeID string) {
	m.updateNodeField(ctx, nodeID, "image_id", nil, func(n *NodeView) { n.ImageID = nil })
}

func (m *Model) updateNodeField(ctx context.Context, nodeID, field string, value interface{}, apply func(*NodeView)) {
	m.mu.Lock()
	node, ok := m.nodes[nodeID]
	if !ok {
		m.mu.Unlock()
		return
	}
	apply(node)
	m.mu.Unlock()
	m.notifier.GraphChanged()

	if _, err := m.api.UpdateNode(ctx, m.canvasID, nodeID, map[string]interface{}{field: value}); err != nil {
		m.notifier.OperationFailed("update node", err)
	}
}

// SetTitle renames the canvas.
func (m *Model) SetTitle(ctx context.Context, title string) {
	m.mu.Lock()
	m.canvas.Title = title
	m.mu.Unlock()
	m.notifier.GraphChanged()

	if _, err := m.api.UpdateCanvas(ctx, m.canvasID, map[string]interface{}{"title": title}); err != nil {
		m.notifier.OperationFailed("rename canvas", err)
	}
}

// Select marks a node selected, clearing any previous selection.
func (m *Model) Select(nodeID string) {
	m.mu.Lock()
	for _, n := range m.nodes {
		n.Selected = n.ID == nodeID
	}
	for _, e := range m.edges {
		e.Selected = false
	}
	m.mu.Unlock()
	m.notifier.GraphChanged()
}

// SelectEdge marks an edge selected, clearing any previous selection.
func (m *Model) SelectEdge(edgeID string) {
	m.mu.Lock()
	for _, n := range m.nodes {
		n.Selected = false
	}
	for _, e := range m.edges {
		e.Selected = e.ID == edgeID
	}
	m.mu.Unlock()
	m.notifier.GraphChanged()
}

// ToggleSelect flips one node's selection without touching the others.
func (m *Model) ToggleSelect(nodeID string) {
	m.mu.Lock()
	if n, ok := m.nodes[nodeID]; ok {
		n.Selected = !n.Selected
	}
	m.mu.Unlock()
	m.notifier.GraphChanged()
}

// ToggleSelectEdge flips one edge's selection without touching the others.
func (m *Model) ToggleSelectEdge(edgeID string) {
	m.mu.Lock()
	if e, ok := m.edges[edgeID]; ok {
		e.Selected = !e.Selected
	}
	m.mu.Unlock()
	m.notifier.GraphChanged()
}

// ClearSelection deselects everything.
func (m *Model) ClearSelection() {
	m.mu.Lock()
	for _, n := range m.nodes {
		n.Selected = false
	}
	for _, e := range m.edges {
		e.Selected = false
	}
	m.mu.Unlock()
	m.notifier.GraphChanged()
}

// Selection returns the selected node IDs in insertion order.
func (m *Model) Selection() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, id := range m.nodeOrder {
		if n, ok := m.nodes[id]; ok && n.Selected {
			ids = append(ids, id)
		}
	}
	return ids
}

// EdgeSelection returns the selected edge IDs in insertion order.
func (m *Model) EdgeSelection() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, id := range m.edgeOrder {
		if e, ok := m.edges[id]; ok && e.Selected {
			ids = append(ids, id)
		}
	}
	return ids
}

// DeleteSelection removes every selected node and edge. Entities vanish
// locally at once; the server deletes run in parallel, and a failed delete
// is reported but not resurrected. Selected edges touching a selected node
// are left to the node's cascade rather than deleted twice.
func (m *Model) DeleteSelection(ctx context.Context) {
	m.mu.Lock()
	var nodeIDs []string
	doomed := make(map[string]bool)
	for _, id := range m.nodeOrder {
		if n, ok := m.nodes[id]; ok && n.Selected && n.State == StatePersisted {
			n.State = StatePendingDelete
			nodeIDs = append(nodeIDs, id)
			doomed[id] = true
		}
	}
	var edgeIDs []string
	for _, id := range m.edgeOrder {
		e, ok := m.edges[id]
		if !ok || !e.Selected || e.State != StatePersisted {
			continue
		}
		if doomed[e.FromNodeID] || doomed[e.ToNodeID] {
			continue
		}
		e.State = StatePendingDelete
		edgeIDs = append(edgeIDs, id)
	}
	m.mu.Unlock()
	if len(nodeIDs) == 0 && len(edgeIDs) == 0 {
		return
	}

	for _, id := range nodeIDs {
		m.removeNodeLocal(id)
	}
	for _, id := range edgeIDs {
		m.removeEdgeLocal(id)
	}
	m.notifier.GraphChanged()

	var wg sync.WaitGroup
	for _, id := range nodeIDs {
		wg.Add(1)
		go func(nodeID string) {
			defer wg.Done()
			if err := m.api.DeleteNode(ctx, m.canvasID, nodeID); err != nil {
				m.notifier.OperationFailed("delete node", err)
			}
		}(id)
	}
	for _, id := range edgeIDs {
		wg.Add(1)
		go func(edgeID string) {
			defer wg.Done()
			if err := m.api.DeleteEdge(ctx, m.canvasID, edgeID); err != nil {
				m.notifier.OperationFailed("delete edge", err)
			}
		}(id)
	}
	wg.Wait()
}

// DeleteEdge removes an edge.
func (m *Model) DeleteEdge(ctx context.Context, edgeID string) {
	m.mu.Lock()
	edge, ok := m.edges[edgeID]
	if !ok || edge.State != StatePersisted {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.removeEdgeLocal(edgeID)
	m.notifier.GraphChanged()

	if err := m.api.DeleteEdge(ctx, m.canvasID, edgeID); err != nil {
		m.notifier.OperationFailed("delete edge", err)
	}
}

// AutoLayout recomputes positions for the whole graph and persists them.
// Position writes run in parallel; the local positions stand regardless.
func (m *Model) AutoLayout(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.nodeOrder))
	for _, id := range m.nodeOrder {
		if _, ok := m.nodes[id]; ok {
			ids = append(ids, id)
		}
	}
	edges := make([]layout.Edge, 0, len(m.edgeOrder))
	for _, id := range m.edgeOrder {
		if e, ok := m.edges[id]; ok {
			edges = append(edges, layout.Edge{From: e.FromNodeID, To: e.ToNodeID})
		}
	}
	cfg := m.layoutCfg
	m.mu.Unlock()

	positions := layout.Compute(ids, edges, cfg)
	if len(positions) == 0 {
		return
	}

	m.mu.Lock()
	for id, pos := range positions {
		if n, ok := m.nodes[id]; ok {
			n.PositionX = pos.X
			n.PositionY = pos.Y
		}
	}
	m.mu.Unlock()
	m.notifier.GraphChanged()

	var wg sync.WaitGroup
	for id, pos := range positions {
		wg.Add(1)
		go func(nodeID string, x, y float64) {
			defer wg.Done()
			if _, err := m.api.UpdateNode(ctx, m.canvasID, nodeID, map[string]interface{}{
				"position_x": x,
				"position_y": y,
			}); err != nil {
				m.notifier.OperationFailed("layout", err)
			}
		}(id, pos.X, pos.Y)
	}
	wg.Wait()
}

// Generate populates the canvas from a prompt, reloads the server state,
// and lays the result out.
func (m *Model) Generate(ctx context.Context, prompt string) (int, int, error) {
	nodes, edges, err := m.api.Generate(ctx, m.canvasID, prompt)
	if err != nil {
		m.notifier.OperationFailed("generate", err)
		return 0, 0, err
	}
	if err := m.Load(ctx); err != nil {
		return nodes, edges, err
	}
	m.AutoLayout(ctx)
	return nodes, edges, nil
}

// Snapshot renders the graph as text for use as writing-assistant context:
// the canvas title, each node with its type and content, and each relation.
func (m *Model) Snapshot() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Canvas: %s\n", m.canvas.Title)

	if len(m.nodeOrder) > 0 {
		b.WriteString("Elements:\n")
	}
	labels := make(map[string]string, len(m.nodes))
	for _, id := range m.nodeOrder {
		n, ok := m.nodes[id]
		if !ok {
			continue
		}
		labels[id] = n.Label
		if n.Type != nil && *n.Type != "" {
			fmt.Fprintf(&b, "- [%s] %s", *n.Type, n.Label)
		} else {
			fmt.Fprintf(&b, "- %s", n.Label)
		}
		if n.Content != nil && *n.Content != "" {
			fmt.Fprintf(&b, ": %s", *n.Content)
		}
		b.WriteString("\n")
	}

	var relations []string
	for _, id := range m.edgeOrder {
		e, ok := m.edges[id]
		if !ok {
			continue
		}
		from, fromOK := labels[e.FromNodeID]
		to, toOK := labels[e.ToNodeID]
		if !fromOK || !toOK {
			continue
		}
		line := fmt.Sprintf("- %s -> %s", from, to)
		if e.Label != nil && *e.Label != "" {
			line += fmt.Sprintf(" (%s)", *e.Label)
		}
		relations = append(relations, line)
	}
	if len(relations) > 0 {
		b.WriteString("Relations:\n")
		sort.Strings(relations)
		for _, line := range relations {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m *Model) adoptNodeID(tempID string, created *graph.Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	view, ok := m.nodes[tempID]
	if !ok {
		return
	}
	delete(m.nodes, tempID)
	view.Node = *created
	view.State = StatePersisted
	m.nodes[created.ID] = view
	for i, id := range m.nodeOrder {
		if id == tempID {
			m.nodeOrder[i] = created.ID
		}
	}
}

func (m *Model) removeNodeLocal(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, nodeID)
	for i, id := range m.nodeOrder {
		if id == nodeID {
			m.nodeOrder = append(m.nodeOrder[:i], m.nodeOrder[i+1:]...)
			break
		}
	}
	// Edges touching the node go with it, mirroring the server cascade.
	for id, e := range m.edges {
		if e.FromNodeID == nodeID || e.ToNodeID == nodeID {
			delete(m.edges, id)
			for i, ordered := range m.edgeOrder {
				if ordered == id {
					m.edgeOrder = append(m.edgeOrder[:i], m.edgeOrder[i+1:]...)
					break
				}
			}
		}
	}
}

func (m *Model) removeEdgeLocal(edgeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.edges, edgeID)
	for i, id := range m.edgeOrder {
		if id == edgeID {
			m.edgeOrder = append(m.edgeOrder[:i], m.edgeOrder[i+1:]...)
			break
		}
	}
}
