package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultCallTimeout = 10 * time.Second

// ProcessFactory starts one worker process per game. The worker speaks
// length-prefixed frames over stdin/stdout with JSON payloads.
type ProcessFactory struct {
	Path    string
	Args    []string
	Env     []string
	Timeout time.Duration
}

func (f ProcessFactory) Create(ctx context.Context, opts CreateOptions) (Session, error) {
	if f.Path == "" {
		return nil, errors.New("engine path required")
	}
	cmd := exec.Command(f.Path, f.Args...)
	cmd.Env = append(os.Environ(), f.Env...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	s := &processSession{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  bufio.NewReader(stdout),
		timeout: timeout,
	}
	if err := s.call(ctx, opCreate, opts, nil); err != nil {
		s.kill()
		return nil, err
	}
	log.Debug().Int("pid", cmd.Process.Pid).Uint64("seed", opts.Seed).Msg("engine worker started")
	return s, nil
}

type processSession struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	timeout time.Duration
	closed  bool
}

type queryCardRequest struct {
	Player   int      `json:"player"`
	Location Location `json:"location"`
	Sequence int      `json:"sequence"`
}

type responseRequest struct {
	Data []byte `json:"data"`
}

type countReply struct {
	Count int `json:"count"`
}

type infoReply struct {
	Data []byte `json:"data"`
}

type errorReply struct {
	Error string `json:"error"`
}

func (s *processSession) Advance(ctx context.Context) (Batch, error) {
	var b Batch
	err := s.call(ctx, opAdvance, nil, &b)
	return b, err
}

func (s *processSession) SetResponse(ctx context.Context, data []byte) error {
	return s.call(ctx, opSetResponse, responseRequest{Data: data}, nil)
}

func (s *processSession) QueryFieldCard(ctx context.Context, player int, loc Location, seq int) ([]CardQuery, error) {
	var cards []CardQuery
	err := s.call(ctx, opQueryCard, queryCardRequest{Player: player, Location: loc, Sequence: seq}, &cards)
	return cards, err
}

func (s *processSession) QueryFieldCount(ctx context.Context, player int, loc Location) (int, error) {
	var reply countReply
	err := s.call(ctx, opQueryCount, queryCardRequest{Player: player, Location: loc, Sequence: -1}, &reply)
	return reply.Count, err
}

func (s *processSession) QueryFieldInfo(ctx context.Context) ([]byte, error) {
	var reply infoReply
	err := s.call(ctx, opQueryInfo, nil, &reply)
	return reply.Data, err
}

func (s *processSession) Dispose(ctx context.Context) (map[string]string, error) {
	var registry map[string]string
	err := s.call(ctx, opDispose, nil, &registry)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.stdin.Close()
		waitOrKill(s.cmd, s.timeout)
	}
	return registry, err
}

// call sends one request and waits for its reply. A timeout or cancelled
// context kills the worker, since a half-answered call leaves the stream out
// of step.
func (s *processSession) call(ctx context.Context, o op, req any, reply any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	var payload []byte
	if req != nil {
		var err error
		if payload, err = json.Marshal(req); err != nil {
			return fmt.Errorf("encode %s: %w", o, err)
		}
	}
	if err := writeFrame(s.stdin, byte(o), payload); err != nil {
		s.killLocked()
		return fmt.Errorf("send %s: %w", o, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		status byte
		body   []byte
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		status, body, err := readFrame(s.stdout)
		ch <- result{status: status, body: body, err: err}
	}()

	var res result
	select {
	case <-callCtx.Done():
		s.killLocked()
		return fmt.Errorf("engine %s: %w", o, callCtx.Err())
	case res = <-ch:
	}
	if res.err != nil {
		s.killLocked()
		return fmt.Errorf("read %s: %w", o, res.err)
	}
	switch res.status {
	case statusOK:
	case statusErr:
		var e errorReply
		_ = json.Unmarshal(res.body, &e)
		return fmt.Errorf("engine %s: %s", o, e.Error)
	default:
		s.killLocked()
		return fmt.Errorf("%w: status %d on %s", ErrProtocol, res.status, o)
	}
	if reply == nil || len(res.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.body, reply); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrProtocol, o, err)
	}
	return nil
}

func (s *processSession) kill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killLocked()
}

func (s *processSession) killLocked() {
	if s.closed {
		return
	}
	s.closed = true
	s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
}

func waitOrKill(cmd *exec.Cmd, grace time.Duration) {
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
	}
}
