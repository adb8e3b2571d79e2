// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the note lists as tools for LLM integration via stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notekeep/internal/imaging"
	"github.com/starford/notekeep/internal/models"
	"github.com/starford/notekeep/internal/notestore"
	"github.com/starford/notekeep/internal/richtext"
)

// MarkupFormatURI identifies the markup format resource.
const MarkupFormatURI = "notekeep://markup-format"

// Server wraps the MCP server with note tools.
type Server struct {
	mcp   *server.MCPServer
	store *notestore.Store
	enc   *imaging.Encoder
}

// New creates a new MCP server with all note tools registered.
func New(store *notestore.Store, enc *imaging.Encoder) *Server {
	s := &Server{store: store, enc: enc}

	s.mcp = server.NewMCPServer(
		"notekeep",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes with their positions, titles and one-line previews."),
		mcp.WithString("list", mcp.Description("active, completed or all (default all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note's title and text. Images appear as [IMG] placeholders."),
		mcp.WithString("list", mcp.Required(), mcp.Description("active or completed")),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based position in the list")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("add_note",
		mcp.WithDescription("Add a note at the top of the active list."),
		mcp.WithString("title", mcp.Description("Note title")),
		mcp.WithString("text", mcp.Description("Plain text body; newlines are kept")),
	), s.addNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace the title and text of an active note. Existing images stay bound "+
			"to the [IMG] placeholders by position; read the markup-format resource first."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based position in the active list")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("text", mcp.Description("New text, keeping one [IMG] per image to preserve")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("complete_notes",
		mcp.WithDescription("Move active notes to the completed list."),
		mcp.WithString("indices", mcp.Required(), mcp.Description("Comma-separated active positions, e.g. 0,2")),
	), s.completeNotes)

	s.mcp.AddTool(mcp.NewTool("delete_notes",
		mcp.WithDescription("Delete notes from a list."),
		mcp.WithString("list", mcp.Required(), mcp.Description("active or completed")),
		mcp.WithString("indices", mcp.Required(), mcp.Description("Comma-separated positions, e.g. 1,3")),
	), s.deleteNotes)

	s.mcp.AddTool(mcp.NewTool("attach_image",
		mcp.WithDescription("Download an image (http/https URL or data: URI), downscale it and embed it "+
			"into an active note."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based position in the active list")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Image URL or base64 data URI")),
		mcp.WithNumber("position", mcp.Description("Byte offset in the note text; omit to append")),
	), s.attachImage)

	s.mcp.AddTool(mcp.NewTool("get_markup_format",
		mcp.WithDescription("Returns how note text, placeholders and images relate."),
	), s.getMarkupFormat)

	s.mcp.AddResource(
		mcp.NewResource(MarkupFormatURI, "Note Markup Format",
			mcp.WithResourceDescription("How note bodies store text and inline images."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMarkupFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type noteRow struct {
	List     string `json:"list"`
	Index    int    `json:"index"`
	Title    string `json:"title"`
	Preview  string `json:"preview"`
	HasImage bool   `json:"has_image,omitempty"`
}

type noteText struct {
	List      string `json:"list"`
	Index     int    `json:"index"`
	ID        string `json:"id"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Images    int    `json:"images"`
	Degraded  bool   `json:"degraded,omitempty"`
	Completed bool   `json:"completed"`
}

func textOf(v notestore.View) noteText {
	return noteText{
		List:      string(v.List),
		Index:     v.Index,
		ID:        v.Note.ID,
		Title:     v.Note.Title,
		Text:      v.Document.Text,
		Images:    len(v.Document.Images),
		Degraded:  v.Document.Degraded,
		Completed: v.Note.Completed,
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	which := req.GetString("list", "all")

	rows := []noteRow{}
	add := func(list models.List, notes []models.Note) {
		for i, n := range notes {
			rows = append(rows, noteRow{
				List:     string(list),
				Index:    i,
				Title:    n.Title,
				Preview:  richtext.Preview(n.Body, richtext.DefaultPreviewLimit),
				HasImage: n.HasLegacyImage() || richtext.HasImages(n.Body),
			})
		}
	}
	switch which {
	case "all":
		add(models.ListActive, s.store.ListActive())
		add(models.ListCompleted, s.store.ListCompleted())
	case string(models.ListActive):
		add(models.ListActive, s.store.ListActive())
	case string(models.ListCompleted):
		add(models.ListCompleted, s.store.ListCompleted())
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown list %q", which)), nil
	}
	return jsonResult(rows), nil
}

func (s *Server) readNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := requireList(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	index, err := req.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.store.View(list, index)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(textOf(v)), nil
}

func (s *Server) addNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, err := s.store.Create(notestore.Draft{
		Title: req.GetString("title", ""),
		Text:  req.GetString("text", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(textOf(v)), nil
}

func (s *Server) updateNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := req.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.store.Revise(index, req.GetString("title", ""), req.GetString("text", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(textOf(v)), nil
}

func (s *Server) completeNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	indices, err := requireIndices(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.CompleteMany(indices); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("completed %d note(s)", len(indices))), nil
}

func (s *Server) deleteNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := requireList(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	indices, err := requireIndices(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.Delete(list, indices); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted %d note(s) from %s", len(indices), list)), nil
}

func (s *Server) getMarkupFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MarkupFormat), nil
}

func (s *Server) readMarkupFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      MarkupFormatURI,
			MIMEType: "text/markdown",
			Text:     MarkupFormat,
		},
	}, nil
}

func requireList(req mcp.CallToolRequest) (models.List, error) {
	raw, err := req.RequireString("list")
	if err != nil {
		return "", err
	}
	list := models.List(raw)
	if !list.Valid() {
		return "", fmt.Errorf("list must be %q or %q, got %q", models.ListActive, models.ListCompleted, raw)
	}
	return list, nil
}

// requireIndices parses the comma-separated "indices" argument into distinct
// positions.
func requireIndices(req mcp.CallToolRequest) ([]int, error) {
	raw, err := req.RequireString("indices")
	if err != nil {
		return nil, err
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid index %q", part)
		}
		out = append(out, i)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("indices is empty")
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
