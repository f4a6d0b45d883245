package sqlite

// Schema for the canvas subsystem. Projects, chapters and images belong to
// the wider product; the canvas tables reference them for ownership scoping
// and link validation. Foreign keys carry the cascades: node deletion removes
// its edges, canvas deletion removes nodes and edges.
const schema = `
CREATE TABLE IF NOT EXISTS project (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_project_user ON project(user_id);

CREATE TABLE IF NOT EXISTS chapter (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES project(id) ON DELETE CASCADE,
	title      TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chapter_project ON chapter(project_id);

CREATE TABLE IF NOT EXISTS image (
	id         TEXT PRIMARY KEY,
	chapter_id TEXT NOT NULL REFERENCES chapter(id) ON DELETE CASCADE,
	deleted_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_image_chapter ON image(chapter_id);

CREATE TABLE IF NOT EXISTS canvas (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES project(id) ON DELETE CASCADE,
	title      TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_canvas_project ON canvas(project_id);

CREATE TABLE IF NOT EXISTS canvas_node (
	id         TEXT PRIMARY KEY,
	canvas_id  TEXT NOT NULL REFERENCES canvas(id) ON DELETE CASCADE,
	type       TEXT,
	label      TEXT NOT NULL,
	content    TEXT,
	chapter_id TEXT,
	image_id   TEXT,
	position_x REAL NOT NULL DEFAULT 0,
	position_y REAL NOT NULL DEFAULT 0,
	color      TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_canvas_node_canvas ON canvas_node(canvas_id);

CREATE TABLE IF NOT EXISTS canvas_edge (
	id           TEXT PRIMARY KEY,
	canvas_id    TEXT NOT NULL REFERENCES canvas(id) ON DELETE CASCADE,
	from_node_id TEXT NOT NULL REFERENCES canvas_node(id) ON DELETE CASCADE,
	to_node_id   TEXT NOT NULL REFERENCES canvas_node(id) ON DELETE CASCADE,
	label        TEXT,
	created_at   TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_canvas_edge_canvas ON canvas_edge(canvas_id);
CREATE INDEX IF NOT EXISTS idx_canvas_edge_from ON canvas_edge(from_node_id);
CREATE INDEX IF NOT EXISTS idx_canvas_edge_to ON canvas_edge(to_node_id);
`
