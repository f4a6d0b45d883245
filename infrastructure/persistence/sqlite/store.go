// Package sqlite implements the graph store on modernc.org/sqlite. Every
// ownership-scoped read joins entity -> canvas -> project -> user and
// collapses any miss into a uniform not-found.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"wbzero-canvas/domain/graph"
	appErrors "wbzero-canvas/pkg/errors"
)

// Store is the sqlite-backed graph store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and initializes the schema.
// WAL mode and foreign key enforcement are set per connection via the DSN so
// pooled connections behave identically.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateProject creates a project owned by userID. Projects belong to the
// wider product; the store carries them for ownership scoping.
func (s *Store) CreateProject(ctx context.Context, userID, name string) (*graph.Project, error) {
	p := &graph.Project{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO project (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, p.CreatedAt,
	)
	if err != nil {
		return nil, appErrors.NewDatabaseError("create project", err)
	}
	return p, nil
}

// CreateChapter creates a chapter in a project.
func (s *Store) CreateChapter(ctx context.Context, projectID, title string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chapter (id, project_id, title, created_at) VALUES (?, ?, ?, ?)`,
		id, projectID, title, time.Now().UTC(),
	)
	if err != nil {
		return "", appErrors.NewDatabaseError("create chapter", err)
	}
	return id, nil
}

// CreateImage creates an image attached to a chapter.
func (s *Store) CreateImage(ctx context.Context, chapterID string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO image (id, chapter_id, created_at) VALUES (?, ?, ?)`,
		id, chapterID, time.Now().UTC(),
	)
	if err != nil {
		return "", appErrors.NewDatabaseError("create image", err)
	}
	return id, nil
}

// SoftDeleteImage marks an image deleted. Soft-deleted images no longer
// validate as node links.
func (s *Store) SoftDeleteImage(ctx context.Context, imageID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE image SET deleted_at = ? WHERE id = ?`, time.Now().UTC(), imageID)
	if err != nil {
		return appErrors.NewDatabaseError("soft delete image", err)
	}
	return nil
}

// ProjectOwned reports whether the project exists and belongs to userID.
func (s *Store) ProjectOwned(ctx context.Context, projectID, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM project WHERE id = ? AND user_id = ?`, projectID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, appErrors.NewDatabaseError("project owned", err)
	}
	return true, nil
}

// CreateCanvas creates a canvas in a project.
func (s *Store) CreateCanvas(ctx context.Context, projectID, title string) (*graph.Canvas, error) {
	c := &graph.Canvas{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO canvas (id, project_id, title, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.ProjectID, c.Title, c.CreatedAt,
	)
	if err != nil {
		return nil, appErrors.NewDatabaseError("create canvas", err)
	}
	return c, nil
}

// GetCanvas fetches a canvas scoped to its owner.
func (s *Store) GetCanvas(ctx context.Context, canvasID, userID string) (*graph.Canvas, error) {
	var c graph.Canvas
	err := s.db.QueryRowContext(ctx,
		`SELECT c.id, c.project_id, c.title, c.created_at
		 FROM canvas c
		 JOIN project p ON c.project_id = p.id
		 WHERE c.id = ? AND p.user_id = ?`,
		canvasID, userID,
	).Scan(&c.ID, &c.ProjectID, &c.Title, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFoundError("canvas")
	}
	if err != nil {
		return nil, appErrors.NewDatabaseError("get canvas", err)
	}
	return &c, nil
}

// ListCanvases lists a project's canvases, newest first.
func (s *Store) ListCanvases(ctx context.Context, projectID string) ([]graph.Canvas, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, title, created_at FROM canvas
		 WHERE project_id = ? ORDER BY created_at DESC, rowid DESC`, projectID)
	if err != nil {
		return nil, appErrors.NewDatabaseError("list canvases", err)
	}
	defer rows.Close()

	canvases := []graph.Canvas{}
	for rows.Next() {
		var c graph.Canvas
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Title, &c.CreatedAt); err != nil {
			return nil, appErrors.NewDatabaseError("scan canvas", err)
		}
		canvases = append(canvases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.NewDatabaseError("list canvases", err)
	}
	return canvases, nil
}

// UpdateCanvas applies a partial canvas update and returns the current row.
func (s *Store) UpdateCanvas(ctx context.Context, canvasID string, patch graph.CanvasPatch) (*graph.Canvas, error) {
	if patch.Title.Present {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE canvas SET title = ? WHERE id = ?`, patch.Title.Value, canvasID); err != nil {
			return nil, appErrors.NewDatabaseError("update canvas", err)
		}
	}
	return s.getCanvasByID(ctx, canvasID)
}

func (s *Store) getCanvasByID(ctx context.Context, canvasID string) (*graph.Canvas, error) {
	var c graph.Canvas
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, title, created_at FROM canvas WHERE id = ?`, canvasID,
	).Scan(&c.ID, &c.ProjectID, &c.Title, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFoundError("canvas")
	}
	if err != nil {
		return nil, appErrors.NewDatabaseError("get canvas", err)
	}
	return &c, nil
}

// DeleteCanvas deletes a canvas. Nodes and edges go with it via foreign key
// cascade.
func (s *Store) DeleteCanvas(ctx context.Context, canvasID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM canvas WHERE id = ?`, canvasID); err != nil {
		return appErrors.NewDatabaseError("delete canvas", err)
	}
	return nil
}

const nodeColumns = `id, canvas_id, type, label, content, chapter_id, image_id, position_x, position_y, color, created_at`

func scanNode(row interface{ Scan(...interface{}) error }) (*graph.Node, error) {
	var n graph.Node
	err := row.Scan(&n.ID, &n.CanvasID, &n.Type, &n.Label, &n.Content,
		&n.ChapterID, &n.ImageID, &n.PositionX, &n.PositionY, &n.Color, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNodes lists a canvas's nodes in insertion order.
func (s *Store) ListNodes(ctx context.Context, canvasID string) ([]graph.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM canvas_node WHERE canvas_id = ? ORDER BY rowid ASC`, canvasID)
	if err != nil {
		return nil, appErrors.NewDatabaseError("list nodes", err)
	}
	defer rows.Close()

	nodes := []graph.Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, appErrors.NewDatabaseError("scan node", err)
		}
		nodes = append(nodes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.NewDatabaseError("list nodes", err)
	}
	return nodes, nil
}

// GetNode fetches a node scoped to its canvas and owner.
func (s *Store) GetNode(ctx context.Context, nodeID, canvasID, userID string) (*graph.Node, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT n.id, n.canvas_id, n.type, n.label, n.content, n.chapter_id, n.image_id,
		        n.position_x, n.position_y, n.color, n.created_at
		 FROM canvas_node n
		 JOIN canvas c ON n.canvas_id = c.id
		 JOIN project p ON c.project_id = p.id
		 WHERE n.id = ? AND c.id = ? AND p.user_id = ?`,
		nodeID, canvasID, userID)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFoundError("node")
	}
	if err != nil {
		return nil, appErrors.NewDatabaseError("get node", err)
	}
	return n, nil
}

// CreateNode inserts a node. The caller assigns the ID.
func (s *Store) CreateNode(ctx context.Context, node *graph.Node) error {
	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO canvas_node (`+nodeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		node.ID, node.CanvasID, node.Type, node.Label, node.Content,
		node.ChapterID, node.ImageID, node.PositionX, node.PositionY, node.Color, node.CreatedAt,
	)
	if err != nil {
		return appErrors.NewDatabaseError("create node", err)
	}
	return nil
}

// UpdateNode applies a partial node update: only present fields are written,
// an explicit null clears the column. Returns the row after the update.
func (s *Store) UpdateNode(ctx context.Context, nodeID string, patch graph.NodePatch) (*graph.Node, error) {
	var sets []string
	var args []interface{}
	set := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.Label.Present {
		set("label", patch.Label.Ptr())
	}
	if patch.Content.Present {
		set("content", patch.Content.Ptr())
	}
	if patch.Type.Present {
		set("type", patch.Type.Ptr())
	}
	if patch.Color.Present {
		set("color", patch.Color.Ptr())
	}
	if patch.ChapterID.Present {
		set("chapter_id", patch.ChapterID.Ptr())
	}
	if patch.ImageID.Present {
		set("image_id", patch.ImageID.Ptr())
	}
	if patch.PositionX.Present {
		set("position_x", patch.PositionX.Value)
	}
	if patch.PositionY.Present {
		set("position_y", patch.PositionY.Value)
	}

	if len(sets) > 0 {
		args = append(args, nodeID)
		query := "UPDATE canvas_node SET " + strings.Join(sets, ", ") + " WHERE id = ?"
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return nil, appErrors.NewDatabaseError("update node", err)
		}
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM canvas_node WHERE id = ?`, nodeID)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFoundError("node")
	}
	if err != nil {
		return nil, appErrors.NewDatabaseError("get node", err)
	}
	return n, nil
}

// DeleteNode deletes a node. Its edges go with it via foreign key cascade.
func (s *Store) DeleteNode(ctx context.Context, nodeID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM canvas_node WHERE id = ?`, nodeID); err != nil {
		return appErrors.NewDatabaseError("delete node", err)
	}
	return nil
}

const edgeColumns = `id, canvas_id, from_node_id, to_node_id, label, created_at`

// ListEdges lists a canvas's edges in insertion order.
func (s *Store) ListEdges(ctx context.Context, canvasID string) ([]graph.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+edgeColumns+` FROM canvas_edge WHERE canvas_id = ? ORDER BY rowid ASC`, canvasID)
	if err != nil {
		return nil, appErrors.NewDatabaseError("list edges", err)
	}
	defer rows.Close()

	edges := []graph.Edge{}
	for rows.Next() {
		var e graph.Edge
		if err := rows.Scan(&e.ID, &e.CanvasID, &e.FromNodeID, &e.ToNodeID, &e.Label, &e.CreatedAt); err != nil {
			return nil, appErrors.NewDatabaseError("scan edge", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.NewDatabaseError("list edges", err)
	}
	return edges, nil
}

// GetEdge fetches an edge scoped to its canvas and owner.
func (s *Store) GetEdge(ctx context.Context, edgeID, canvasID, userID string) (*graph.Edge, error) {
	var e graph.Edge
	err := s.db.QueryRowContext(ctx,
		`SELECT e.id, e.canvas_id, e.from_node_id, e.to_node_id, e.label, e.created_at
		 FROM canvas_edge e
		 JOIN canvas c ON e.canvas_id = c.id
		 JOIN project p ON c.project_id = p.id
		 WHERE e.id = ? AND c.id = ? AND p.user_id = ?`,
		edgeID, canvasID, userID,
	).Scan(&e.ID, &e.CanvasID, &e.FromNodeID, &e.ToNodeID, &e.Label, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFoundError("edge")
	}
	if err != nil {
		return nil, appErrors.NewDatabaseError("get edge", err)
	}
	return &e, nil
}

// CreateEdge inserts an edge. The caller assigns the ID.
func (s *Store) CreateEdge(ctx context.Context, edge *graph.Edge) error {
	if edge.ID == "" {
		edge.ID = uuid.New().String()
	}
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO canvas_edge (`+edgeColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		edge.ID, edge.CanvasID, edge.FromNodeID, edge.ToNodeID, edge.Label, edge.CreatedAt,
	)
	if err != nil {
		return appErrors.NewDatabaseError("create edge", err)
	}
	return nil
}

// DeleteEdge deletes an edge.
func (s *Store) DeleteEdge(ctx context.Context, edgeID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM canvas_edge WHERE id = ?`, edgeID); err != nil {
		return appErrors.NewDatabaseError("delete edge", err)
	}
	return nil
}

// NodesInCanvas counts how many of the given node IDs exist in the canvas.
// Duplicate IDs collapse, so an edge endpoint check passes only when both
// distinct endpoints are present.
func (s *Store) NodesInCanvas(ctx context.Context, canvasID string, nodeIDs []string) (int, error) {
	if len(nodeIDs) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(nodeIDs)), ",")
	args := make([]interface{}, 0, len(nodeIDs)+1)
	args = append(args, canvasID)
	for _, id := range nodeIDs {
		args = append(args, id)
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM canvas_node WHERE canvas_id = ? AND id IN (`+placeholders+`)`,
		args...,
	).Scan(&count)
	if err != nil {
		return 0, appErrors.NewDatabaseError("nodes in canvas", err)
	}
	return count, nil
}

// ChapterInProject reports whether the chapter belongs to the project.
func (s *Store) ChapterInProject(ctx context.Context, chapterID, projectID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM chapter WHERE id = ? AND project_id = ?`, chapterID, projectID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, appErrors.NewDatabaseError("chapter in project", err)
	}
	return true, nil
}

// ImageInProject reports whether the image belongs to the project through its
// chapter and has not been soft-deleted.
func (s *Store) ImageInProject(ctx context.Context, imageID, projectID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM image i
		 JOIN chapter c ON i.chapter_id = c.id
		 WHERE i.id = ? AND c.project_id = ? AND i.deleted_at IS NULL`,
		imageID, projectID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, appErrors.NewDatabaseError("image in project", err)
	}
	return true, nil
}

// MaxNodeX returns the largest node X on the canvas and whether the canvas
// has any nodes at all.
func (s *Store) MaxNodeX(ctx context.Context, canvasID string) (float64, bool, error) {
	var maxX sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(position_x) FROM canvas_node WHERE canvas_id = ?`, canvasID).Scan(&maxX)
	if err != nil {
		return 0, false, appErrors.NewDatabaseError("max node x", err)
	}
	if !maxX.Valid {
		return 0, false, nil
	}
	return maxX.Float64, true, nil
}
