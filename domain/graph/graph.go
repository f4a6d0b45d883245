// Package graph holds the canvas graph entities shared by the store, the
// mutation services and the client model.
package graph

import "time"

// Project owns canvases and chapters. A project belongs to exactly one user;
// every graph operation is authorized by walking entity -> canvas -> project
// -> user.
type Project struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Canvas is a named container for one idea graph inside a project.
type Canvas struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Node is a labeled, positioned vertex. Type is a free-text tag; ChapterID
// and ImageID are optional cross-references that must resolve inside the
// canvas's project at write time but may dangle later (readers treat a
// dangling reference as unlinked).
type Node struct {
	ID        string    `json:"id"`
	CanvasID  string    `json:"canvas_id"`
	Type      *string   `json:"type"`
	Label     string    `json:"label"`
	Content   *string   `json:"content"`
	ChapterID *string   `json:"chapter_id"`
	ImageID   *string   `json:"image_id"`
	PositionX float64   `json:"position_x"`
	PositionY float64   `json:"position_y"`
	Color     *string   `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// Edge is a directed, optionally labeled connection between two distinct
// nodes of the same canvas. Parallel edges are allowed; self-loops are
// rejected by the endpoint membership check at create time.
type Edge struct {
	ID         string    `json:"id"`
	CanvasID   string    `json:"canvas_id"`
	FromNodeID string    `json:"from_node_id"`
	ToNodeID   string    `json:"to_node_id"`
	Label      *string   `json:"label"`
	CreatedAt  time.Time `json:"created_at"`
}
