package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSProvider talks JSON-RPC frames to a provider process over a WebSocket
// connection, mirroring the gateway's own frame-envelope conventions.
type WSProvider struct {
	name string
	conn *websocket.Conn

	mu          sync.Mutex
	cancelQuery context.CancelFunc
}

// DialWSProvider opens a WebSocket connection to a provider endpoint.
func DialWSProvider(name, url string) (*WSProvider, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("provider: dial %s: %w", url, err)
	}
	return &WSProvider{name: name, conn: conn}, nil
}

func (p *WSProvider) Name() string { return p.name }
func (p *WSProvider) Type() string { return "websocket" }

type wsQueryFrame struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt"`
}

type wsChunkFrame struct {
	Kind    string   `json:"kind"`
	Text    string   `json:"text,omitempty"`
	ToolUse *ToolUse `json:"tool_use,omitempty"`
	Done    bool     `json:"done,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Query sends a query frame and streams response chunks until Done.
func (p *WSProvider) Query(ctx context.Context, prompt string) (<-chan Chunk, error) {
	p.mu.Lock()
	queryCtx, cancel := context.WithCancel(ctx)
	p.cancelQuery = cancel
	p.mu.Unlock()

	if err := p.conn.WriteJSON(wsQueryFrame{Type: "query", Prompt: prompt}); err != nil {
		cancel()
		return nil, fmt.Errorf("provider: write query: %w", err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		for {
			select {
			case <-queryCtx.Done():
				return
			default:
			}
			_ = p.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, payload, err := p.conn.ReadMessage()
			if err != nil {
				out <- Chunk{Kind: ChunkAssistant, Err: fmt.Errorf("provider: read: %w", err)}
				return
			}
			var frame wsChunkFrame
			if err := json.Unmarshal(payload, &frame); err != nil {
				out <- Chunk{Kind: ChunkAssistant, Err: fmt.Errorf("provider: decode: %w", err)}
				return
			}
			out <- toWSChunk(frame)
			if frame.Done {
				return
			}
		}
	}()
	return out, nil
}

func toWSChunk(f wsChunkFrame) Chunk {
	c := Chunk{Kind: ChunkKind(f.Kind), Text: f.Text, ToolUse: f.ToolUse}
	if f.Error != "" {
		c.Err = fmt.Errorf("provider: %s", f.Error)
	}
	return c
}

// Interrupt cancels the in-flight query, if any.
func (p *WSProvider) Interrupt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelQuery != nil {
		p.cancelQuery()
	}
}

// Dispose closes the connection.
func (p *WSProvider) Dispose() error {
	p.Interrupt()
	return p.conn.Close()
}
