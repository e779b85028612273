package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// StdioProvider talks newline-delimited JSON-RPC to a subprocess over its
// stdin/stdout.
type StdioProvider struct {
	name string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner

	cancelQuery context.CancelFunc
}

type stdioRequest struct {
	Method string `json:"method"`
	Prompt string `json:"prompt"`
}

type stdioChunk struct {
	Kind    string   `json:"kind"`
	Text    string   `json:"text,omitempty"`
	ToolUse *ToolUse `json:"tool_use,omitempty"`
	Done    bool     `json:"done,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// NewStdioProvider starts command and wires its stdio pipes.
func NewStdioProvider(name string, command string, args ...string) (*StdioProvider, error) {
	cmd := exec.Command(command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("provider: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("provider: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("provider: start %s: %w", command, err)
	}
	return &StdioProvider{
		name:   name,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewScanner(stdout),
	}, nil
}

func (p *StdioProvider) Name() string { return p.name }
func (p *StdioProvider) Type() string { return "stdio" }

// Query sends prompt and streams chunks until the subprocess reports done.
func (p *StdioProvider) Query(ctx context.Context, prompt string) (<-chan Chunk, error) {
	p.mu.Lock()
	queryCtx, cancel := context.WithCancel(ctx)
	p.cancelQuery = cancel
	p.mu.Unlock()

	req, err := json.Marshal(stdioRequest{Method: "query", Prompt: prompt})
	if err != nil {
		cancel()
		return nil, err
	}
	if _, err := p.stdin.Write(append(req, '\n')); err != nil {
		cancel()
		return nil, fmt.Errorf("provider: write request: %w", err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		for p.stdout.Scan() {
			select {
			case <-queryCtx.Done():
				return
			default:
			}
			var c stdioChunk
			if err := json.Unmarshal(p.stdout.Bytes(), &c); err != nil {
				out <- Chunk{Kind: ChunkAssistant, Err: fmt.Errorf("provider: decode chunk: %w", err)}
				return
			}
			out <- toChunk(c)
			if c.Done {
				return
			}
		}
	}()
	return out, nil
}

func toChunk(c stdioChunk) Chunk {
	ch := Chunk{Kind: ChunkKind(c.Kind), Text: c.Text, ToolUse: c.ToolUse}
	if c.Error != "" {
		ch.Err = fmt.Errorf("provider: %s", c.Error)
	}
	return ch
}

// Interrupt cancels the in-flight query, if any.
func (p *StdioProvider) Interrupt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelQuery != nil {
		p.cancelQuery()
	}
}

// Dispose terminates the subprocess.
func (p *StdioProvider) Dispose() error {
	p.Interrupt()
	p.stdin.Close()
	return p.cmd.Process.Kill()
}
