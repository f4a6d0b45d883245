// Package canvas is the client-side model of a canvas: a local mirror of
// the graph that applies edits optimistically and reconciles them with the
// API.
package canvas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"wbzero-canvas/domain/graph"
)

// Data is the full graph payload returned by the data endpoint.
type Data struct {
	Canvas graph.Canvas `json:"canvas"`
	Nodes  []graph.Node `json:"nodes"`
	Edges  []graph.Edge `json:"edges"`
}

// API is the server surface the model talks to. Patch payloads are maps so
// an explicit nil value serializes as JSON null and clears the field.
type API interface {
	Load(ctx context.Context, canvasID string) (*Data, error)
	CreateNode(ctx context.Context, canvasID string, fields map[string]interface{}) (*graph.Node, error)
	UpdateNode(ctx context.Context, canvasID, nodeID string, fields map[string]interface{}) (*graph.Node, error)
	DeleteNode(ctx context.Context, canvasID, nodeID string) error
	CreateEdge(ctx context.Context, canvasID, fromNodeID, toNodeID string, label *string) (*graph.Edge, error)
	DeleteEdge(ctx context.Context, canvasID, edgeID string) error
	UpdateCanvas(ctx context.Context, canvasID string, fields map[string]interface{}) (*graph.Canvas, error)
	Generate(ctx context.Context, canvasID, prompt string) (nodesCreated, edgesCreated int, err error)
}

// Client is the HTTP implementation of API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates an API client. baseURL is the server root without a
// trailing slash, token is the bearer token sent on every request.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, token: token, http: httpClient}
}

// Load fetches the canvas with all nodes and edges.
func (c *Client) Load(ctx context.Context, canvasID string) (*Data, error) {
	var data Data
	if err := c.do(ctx, http.MethodGet, "/api/v1/canvases/"+canvasID+"/data", nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// CreateNode creates a node and returns the server row.
func (c *Client) CreateNode(ctx context.Context, canvasID string, fields map[string]interface{}) (*graph.Node, error) {
	var out struct {
		Node graph.Node `json:"node"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/canvases/"+canvasID+"/nodes", fields, &out); err != nil {
		return nil, err
	}
	return &out.Node, nil
}

// UpdateNode sends a partial node update and returns the updated row.
func (c *Client) UpdateNode(ctx context.Context, canvasID, nodeID string, fields map[string]interface{}) (*graph.Node, error) {
	var out struct {
		Node graph.Node `json:"node"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/v1/canvases/"+canvasID+"/nodes/"+nodeID, fields, &out); err != nil {
		return nil, err
	}
	return &out.Node, nil
}

// DeleteNode deletes a node.
func (c *Client) DeleteNode(ctx context.Context, canvasID, nodeID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/canvases/"+canvasID+"/nodes/"+nodeID, nil, nil)
}

// CreateEdge creates an edge between two existing nodes.
func (c *Client) CreateEdge(ctx context.Context, canvasID, fromNodeID, toNodeID string, label *string) (*graph.Edge, error) {
	body := map[string]interface{}{
		"from_node_id": fromNodeID,
		"to_node_id":   toNodeID,
	}
	if label != nil {
		body["label"] = *label
	}
	var out struct {
		Edge graph.Edge `json:"edge"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/canvases/"+canvasID+"/edges", body, &out); err != nil {
		return nil, err
	}
	return &out.Edge, nil
}

// DeleteEdge deletes an edge.
func (c *Client) DeleteEdge(ctx context.Context, canvasID, edgeID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/canvases/"+canvasID+"/edges/"+edgeID, nil, nil)
}

// UpdateCanvas sends a partial canvas update.
func (c *Client) UpdateCanvas(ctx context.Context, canvasID string, fields map[string]interface{}) (*graph.Canvas, error) {
	var out struct {
		Canvas graph.Canvas `json:"canvas"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/v1/canvases/"+canvasID, fields, &out); err != nil {
		return nil, err
	}
	return &out.Canvas, nil
}

// Generate asks the server to populate the canvas from a prompt.
func (c *Client) Generate(ctx context.Context, canvasID, prompt string) (int, int, error) {
	var out struct {
		Success      bool `json:"success"`
		NodesCreated int  `json:"nodesCreated"`
		EdgesCreated int  `json:"edgesCreated"`
	}
	body := map[string]interface{}{"prompt": prompt}
	if err := c.do(ctx, http.MethodPost, "/api/v1/canvases/"+canvasID+"/generate", body, &out); err != nil {
		return 0, 0, err
	}
	return out.NodesCreated, out.EdgesCreated, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr == nil && payload.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, payload.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
