package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/dshills/skiff/internal/logging"
)

// LSP method names in scope for the client.
const (
	methodInitialize         = "initialize"
	methodInitialized        = "initialized"
	methodShutdown           = "shutdown"
	methodExit               = "exit"
	methodDidOpen            = "textDocument/didOpen"
	methodDidChange          = "textDocument/didChange"
	methodDidClose           = "textDocument/didClose"
	methodDiagnostic         = "textDocument/diagnostic"
	methodInlayHint          = "textDocument/inlayHint"
	methodFoldingRange       = "textDocument/foldingRange"
	methodPublishDiagnostics = "textDocument/publishDiagnostics"
	methodShowMessage        = "window/showMessage"
	methodLogMessage         = "window/logMessage"
	methodCancelRequest      = "$/cancelRequest"
)

// SessionStatus is the lifecycle state of a server session.
type SessionStatus int32

const (
	StatusUnstarted SessionStatus = iota
	StatusInitializing
	StatusReady
	StatusShuttingDown
	StatusTerminated
	StatusFailed
)

// String returns the string representation of the status.
func (st SessionStatus) String() string {
	switch st {
	case StatusUnstarted:
		return "unstarted"
	case StatusInitializing:
		return "initializing"
	case StatusReady:
		return "ready"
	case StatusShuttingDown:
		return "shutting-down"
	case StatusTerminated:
		return "terminated"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// command is the union of operations the synchronous side can ask a session
// to perform. Commands are processed strictly in enqueue order.
type command interface {
	command()
}

type cmdInitialize struct {
	rootURI DocumentURI
	reply   *Slot
}

type cmdDidOpen struct {
	path string
	text string
}

type cmdDidChange struct {
	path string
	text string
}

type cmdDidClose struct {
	path string
}

type cmdDiagnostic struct {
	requestID        uint64
	uri              DocumentURI
	previousResultID string
}

type cmdInlayHints struct {
	requestID uint64
	uri       DocumentURI
	rng       Range
}

type cmdFoldingRange struct {
	requestID uint64
	uri       DocumentURI
}

type cmdCancelPull struct {
	requestID uint64
}

type cmdShutdown struct {
	done chan error
}

func (cmdInitialize) command()   {}
func (cmdDidOpen) command()      {}
func (cmdDidChange) command()    {}
func (cmdDidClose) command()     {}
func (cmdDiagnostic) command()   {}
func (cmdInlayHints) command()   {}
func (cmdFoldingRange) command() {}
func (cmdCancelPull) command()   {}
func (cmdShutdown) command()     {}

// Session owns one language server child process. Its event loop races
// queued commands against inbound wire frames and process exit, so a slow
// server never blocks command intake and a burst of commands never starves
// message reading. All mutable session state (version table, ledger,
// capabilities) is touched only from the loop goroutine.
type Session struct {
	language string
	config   ServerConfig
	logger   *logging.Logger
	bridge   *Sender

	commands chan command
	done     chan struct{}
	status   atomic.Int32

	// Everything below is owned by the run goroutine.
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	codec      *Codec
	procCtx    context.Context
	procCancel context.CancelFunc
	inbound    chan *Message
	readErr    chan error
	exited     chan error

	ledger   *Ledger
	versions map[string]int
	pullWire map[uint64]int64
	caps     *ServerCapabilities
	failed   bool
}

// newSession creates a session in the Unstarted state. Start launches the
// event loop; the process itself is spawned by the Initialize command.
func newSession(language string, cfg ServerConfig, bridge *Sender, logger *logging.Logger) *Session {
	if logger == nil {
		logger = logging.Null
	}
	cfg.Limits = cfg.Limits.withDefaults()
	return &Session{
		language: language,
		config:   cfg,
		logger:   logger.WithComponent("lsp").WithField("language", language),
		bridge:   bridge,
		commands: make(chan command, cfg.Limits.QueueDepth),
		done:     make(chan struct{}),
		ledger:   NewLedger(),
		versions: make(map[string]int),
		pullWire: make(map[uint64]int64),
	}
}

// Start launches the session event loop.
func (s *Session) Start() {
	go s.run()
}

// Status reports the observed lifecycle state.
func (s *Session) Status() SessionStatus {
	return SessionStatus(s.status.Load())
}

func (s *Session) setStatus(st SessionStatus) {
	s.status.Store(int32(st))
}

func (s *Session) run() {
	defer close(s.done)
	defer s.kill()

	for {
		select {
		case c := <-s.commands:
			if s.handleCommand(c) {
				return
			}
		case msg := <-s.inbound:
			if s.handleInbound(msg) {
				return
			}
		case err := <-s.readErr:
			s.fail(err)
			return
		case err := <-s.exited:
			s.fail(describeExit(err))
			return
		}
	}
}

// handleCommand processes one queued command. It reports whether the event
// loop should exit.
func (s *Session) handleCommand(c command) bool {
	switch c := c.(type) {
	case cmdInitialize:
		return s.handleInitialize(c)

	case cmdDidOpen:
		if !s.requireReady(methodDidOpen) {
			return false
		}
		s.versions[c.path] = 1
		params := DidOpenTextDocumentParams{
			TextDocument: TextDocumentItem{
				URI:        FilePathToURI(c.path),
				LanguageID: s.language,
				Version:    1,
				Text:       c.text,
			},
		}
		return !s.notify(methodDidOpen, params)

	case cmdDidChange:
		if !s.requireReady(methodDidChange) {
			return false
		}
		version, open := s.versions[c.path]
		if !open {
			// Caller bug: a change for a document that was never opened.
			// Fabricating a version would desync the server, so drop it.
			s.logger.Warn("didChange for %s with no version entry, dropping", c.path)
			return false
		}
		version++
		s.versions[c.path] = version
		params := DidChangeTextDocumentParams{
			TextDocument: VersionedTextDocumentIdentifier{
				TextDocumentIdentifier: TextDocumentIdentifier{URI: FilePathToURI(c.path)},
				Version:                version,
			},
			ContentChanges: []TextDocumentContentChangeEvent{{Text: c.text}},
		}
		return !s.notify(methodDidChange, params)

	case cmdDidClose:
		if !s.requireReady(methodDidClose) {
			return false
		}
		delete(s.versions, c.path)
		params := DidCloseTextDocumentParams{
			TextDocument: TextDocumentIdentifier{URI: FilePathToURI(c.path)},
		}
		return !s.notify(methodDidClose, params)

	case cmdDiagnostic:
		if !s.requireReady(methodDiagnostic) {
			return false
		}
		id := s.ledger.NextID()
		s.ledger.Register(id, &Pending{
			Method: methodDiagnostic,
			Pull:   &PullTag{Kind: PullDiagnostic, RequestID: c.requestID, URI: c.uri},
		})
		s.pullWire[c.requestID] = id
		params := DocumentDiagnosticParams{
			TextDocument:     TextDocumentIdentifier{URI: c.uri},
			PreviousResultID: c.previousResultID,
		}
		return !s.request(id, methodDiagnostic, params)

	case cmdInlayHints:
		if !s.requireReady(methodInlayHint) {
			return false
		}
		id := s.ledger.NextID()
		s.ledger.Register(id, &Pending{
			Method: methodInlayHint,
			Pull:   &PullTag{Kind: PullInlayHint, RequestID: c.requestID, URI: c.uri},
		})
		s.pullWire[c.requestID] = id
		params := InlayHintParams{
			TextDocument: TextDocumentIdentifier{URI: c.uri},
			Range:        c.rng,
		}
		return !s.request(id, methodInlayHint, params)

	case cmdFoldingRange:
		if !s.requireReady(methodFoldingRange) {
			return false
		}
		id := s.ledger.NextID()
		s.ledger.Register(id, &Pending{
			Method: methodFoldingRange,
			Pull:   &PullTag{Kind: PullFoldingRange, RequestID: c.requestID, URI: c.uri},
		})
		s.pullWire[c.requestID] = id
		params := FoldingRangeParams{
			TextDocument: TextDocumentIdentifier{URI: c.uri},
		}
		return !s.request(id, methodFoldingRange, params)

	case cmdCancelPull:
		wireID, ok := s.pullWire[c.requestID]
		if !ok {
			s.logger.Debug("cancel for unknown request %d", c.requestID)
			return false
		}
		return !s.notify(methodCancelRequest, CancelParams{ID: wireID})

	case cmdShutdown:
		if st := s.Status(); st == StatusUnstarted {
			s.setStatus(StatusTerminated)
			c.done <- nil
			return true
		}
		return s.performShutdown(c.done)

	default:
		s.logger.Error("unhandled command %T", c)
		return false
	}
}

func (s *Session) handleInitialize(c cmdInitialize) bool {
	if s.Status() != StatusUnstarted {
		c.reply.Fulfill(Outcome{Err: ErrAlreadyInitialized})
		return false
	}

	if err := s.spawn(); err != nil {
		s.logger.Error("spawn failed: %v", err)
		s.setStatus(StatusFailed)
		c.reply.Fulfill(Outcome{Err: err})
		return true
	}
	s.setStatus(StatusInitializing)

	id := s.ledger.NextID()
	s.ledger.Register(id, &Pending{Method: methodInitialize, Slot: c.reply})

	rootPath := URIToFilePath(c.rootURI)
	params := InitializeParams{
		ProcessID:    os.Getpid(),
		ClientInfo:   &ClientInfo{Name: "skiff"},
		RootURI:      c.rootURI,
		RootPath:     rootPath,
		Capabilities: DefaultClientCapabilities(),
		Trace:        "off",
	}
	if c.rootURI != "" {
		params.WorkspaceFolders = []WorkspaceFolder{{URI: c.rootURI, Name: rootPath}}
	}
	// On write failure fail() drains the ledger, which fulfills the reply.
	return !s.request(id, methodInitialize, params)
}

// spawn starts the child process and the goroutines feeding the event loop.
func (s *Session) spawn() error {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, s.config.Command, s.config.Args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return &SpawnError{Command: s.config.Command, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		cancel()
		return &SpawnError{Command: s.config.Command, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdin.Close()
		cancel()
		return &SpawnError{Command: s.config.Command, Err: err}
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		cancel()
		return &SpawnError{Command: s.config.Command, Err: err}
	}

	s.procCtx = ctx
	s.procCancel = cancel
	s.cmd = cmd
	s.stdin = stdin
	s.codec = NewCodec(stdout, stdin)
	s.inbound = make(chan *Message)
	s.readErr = make(chan error, 1)
	s.exited = make(chan error, 1)

	go s.readLoop()
	go s.drainStderr(stderr)
	go func() { s.exited <- cmd.Wait() }()

	s.logger.Info("spawned %s (pid %d)", s.config.Command, cmd.Process.Pid)
	return nil
}

// readLoop feeds decoded frames to the event loop. Transport errors end the
// loop; protocol errors skip the offending message.
func (s *Session) readLoop() {
	for {
		msg, err := s.codec.Read()
		if err != nil {
			var te *TransportError
			if errors.As(err, &te) {
				select {
				case s.readErr <- err:
				case <-s.procCtx.Done():
				}
				return
			}
			s.logger.Warn("skipping unreadable message: %v", err)
			continue
		}
		select {
		case s.inbound <- msg:
		case <-s.procCtx.Done():
			return
		}
	}
}

// drainStderr logs the child's stderr line by line. A blocked stderr pipe
// would stall the child, so this runs for the life of the process.
func (s *Session) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		s.logger.Debug("stderr: %s", scanner.Text())
	}
}

// handleInbound processes one decoded frame. It reports whether the event
// loop should exit.
func (s *Session) handleInbound(msg *Message) bool {
	switch msg.Kind {
	case KindResponse:
		return s.handleResponse(msg)
	case KindNotification:
		return s.handleNotification(msg)
	case KindRequest:
		return s.handleServerRequest(msg)
	default:
		return false
	}
}

func (s *Session) handleResponse(msg *Message) bool {
	p := s.ledger.Resolve(msg.ID)
	if p == nil {
		// Post-shutdown stragglers and replies to cancelled work land here.
		s.logger.Debug("dropping response for unknown id %d", msg.ID)
		return false
	}

	o := Outcome{Result: msg.Result, RPCErr: msg.Error}
	switch {
	case p.Pull != nil:
		s.deliverPull(p, o)
		return false
	case p.Method == methodInitialize:
		return s.finishInitialize(p.Slot, o)
	default:
		p.Slot.Fulfill(o)
		return false
	}
}

func (s *Session) finishInitialize(reply *Slot, o Outcome) bool {
	if s.Status() != StatusInitializing {
		// Reply raced a shutdown; the waiter is gone.
		s.logger.Debug("late initialize reply")
		reply.Fulfill(o)
		return false
	}
	if err := o.Failure(); err != nil {
		s.logger.Error("initialize failed: %v", err)
		reply.Fulfill(o)
		return false
	}

	var res InitializeResult
	if err := json.Unmarshal(o.Result, &res); err != nil {
		perr := &ProtocolError{Method: methodInitialize, Err: err}
		s.logger.Error("%v", perr)
		reply.Fulfill(Outcome{Err: perr})
		return false
	}
	s.caps = &res.Capabilities

	if !s.notify(methodInitialized, InitializedParams{}) {
		reply.Fulfill(Outcome{Err: ErrSessionFailed})
		return true
	}

	s.setStatus(StatusReady)
	if res.ServerInfo != nil {
		s.logger.Info("initialized %s %s", res.ServerInfo.Name, res.ServerInfo.Version)
	} else {
		s.logger.Info("initialized")
	}
	s.bridge.Send(InitializedEvent{Language: s.language})
	reply.Fulfill(o)
	return false
}

func (s *Session) deliverPull(p *Pending, o Outcome) {
	tag := p.Pull
	delete(s.pullWire, tag.RequestID)

	if err := o.Failure(); err != nil {
		s.logger.Warn("%s request failed: %v", p.Method, err)
		s.sendPullError(tag, err)
		return
	}

	switch tag.Kind {
	case PullDiagnostic:
		var report DocumentDiagnosticReport
		if err := json.Unmarshal(o.Result, &report); err != nil {
			s.sendPullError(tag, &ProtocolError{Method: p.Method, Err: err})
			return
		}
		s.bridge.Send(DiagnosticReportEvent{RequestID: tag.RequestID, URI: tag.URI, Report: report})

	case PullInlayHint:
		var hints []InlayHint // null decodes as nil
		if len(o.Result) > 0 {
			if err := json.Unmarshal(o.Result, &hints); err != nil {
				s.sendPullError(tag, &ProtocolError{Method: p.Method, Err: err})
				return
			}
		}
		s.bridge.Send(InlayHintsEvent{RequestID: tag.RequestID, URI: tag.URI, Hints: hints})

	case PullFoldingRange:
		var ranges []FoldingRange
		if len(o.Result) > 0 {
			if err := json.Unmarshal(o.Result, &ranges); err != nil {
				s.sendPullError(tag, &ProtocolError{Method: p.Method, Err: err})
				return
			}
		}
		s.bridge.Send(FoldingRangesEvent{RequestID: tag.RequestID, URI: tag.URI, Ranges: ranges})
	}
}

func (s *Session) sendPullError(tag *PullTag, err error) {
	switch tag.Kind {
	case PullDiagnostic:
		s.bridge.Send(DiagnosticReportEvent{RequestID: tag.RequestID, URI: tag.URI, Err: err})
	case PullInlayHint:
		s.bridge.Send(InlayHintsEvent{RequestID: tag.RequestID, URI: tag.URI, Err: err})
	case PullFoldingRange:
		s.bridge.Send(FoldingRangesEvent{RequestID: tag.RequestID, URI: tag.URI, Err: err})
	}
}

func (s *Session) handleNotification(msg *Message) bool {
	switch msg.Method {
	case methodPublishDiagnostics:
		var params PublishDiagnosticsParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.logger.Warn("%v", &ProtocolError{Method: msg.Method, Err: err})
			return false
		}
		s.bridge.Send(DiagnosticsEvent{URI: params.URI, Items: params.Diagnostics})

	case methodShowMessage:
		var params ShowMessageParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.logger.Warn("%v", &ProtocolError{Method: msg.Method, Err: err})
			return false
		}
		s.logAt(params.Type, "showMessage: %s", params.Message)
		s.bridge.Send(ShowMessageEvent{Language: s.language, Type: params.Type, Message: params.Message})

	case methodLogMessage:
		var params LogMessageParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.logger.Warn("%v", &ProtocolError{Method: msg.Method, Err: err})
			return false
		}
		s.logAt(params.Type, "logMessage: %s", params.Message)

	default:
		s.logger.Debug("ignoring notification %s", msg.Method)
	}
	return false
}

// handleServerRequest answers server-to-client requests with MethodNotFound
// so conforming servers do not hang waiting for a reply.
func (s *Session) handleServerRequest(msg *Message) bool {
	s.logger.Debug("rejecting server request %s", msg.Method)
	rpcErr := &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not supported: %s", msg.Method)}
	if err := s.codec.WriteResponse(msg.RawID, nil, rpcErr); err != nil {
		s.fail(err)
		return true
	}
	return false
}

// logAt maps an LSP message type to a log level (1=error .. 4+=debug).
func (s *Session) logAt(t MessageType, format string, args ...any) {
	switch t {
	case MessageTypeError:
		s.logger.Error(format, args...)
	case MessageTypeWarning:
		s.logger.Warn(format, args...)
	case MessageTypeInfo:
		s.logger.Info(format, args...)
	default:
		s.logger.Debug(format, args...)
	}
}

// performShutdown runs the shutdown handshake with a bounded timeout, then
// terminates the process. Always exits the event loop.
func (s *Session) performShutdown(done chan<- error) bool {
	s.setStatus(StatusShuttingDown)

	slot := NewSlot()
	id := s.ledger.NextID()
	s.ledger.Register(id, &Pending{Method: methodShutdown, Slot: slot})

	if err := s.codec.WriteRequest(id, methodShutdown, nil); err != nil {
		s.logger.Debug("shutdown write failed: %v", err)
	} else {
		s.awaitShutdownReply(slot)
		_ = s.codec.WriteNotification(methodExit, nil)
	}

	s.dropPending()
	s.kill()
	s.setStatus(StatusTerminated)
	s.logger.Info("session terminated")
	done <- nil
	return true
}

// awaitShutdownReply keeps servicing inbound traffic while waiting for the
// shutdown response, giving up after the configured timeout so a hung
// server cannot hang the exit path.
func (s *Session) awaitShutdownReply(slot *Slot) {
	timer := time.NewTimer(s.config.Limits.ShutdownTimeout)
	defer timer.Stop()

	for {
		select {
		case o := <-slot.Done():
			if err := o.Failure(); err != nil {
				s.logger.Warn("shutdown request failed: %v", err)
			}
			return
		case msg := <-s.inbound:
			if s.handleInbound(msg) {
				return
			}
		case err := <-s.readErr:
			s.logger.Debug("read error during shutdown: %v", err)
			return
		case err := <-s.exited:
			s.logger.Debug("server exited during shutdown: %v", err)
			return
		case <-timer.C:
			s.logger.Warn("shutdown request timed out after %s", s.config.Limits.ShutdownTimeout)
			return
		}
	}
}

// dropPending fails synchronous waiters and drops pull entries. Dropping is
// deliberate: the failure surfaced through other channels already, and a
// late pull result for a dead session has no consumer.
func (s *Session) dropPending() {
	for _, p := range s.ledger.Drain() {
		if p.Slot != nil {
			p.Slot.Fulfill(Outcome{Err: ErrSessionFailed})
			continue
		}
		s.logger.Debug("dropping outstanding %s request", p.Method)
	}
	s.pullWire = make(map[uint64]int64)
}

// fail records a fatal session error. The first failure pushes exactly one
// ErrorEvent; a requested shutdown suppresses the event since the caller
// already knows the session is going away.
func (s *Session) fail(err error) {
	if s.failed {
		return
	}
	s.failed = true

	s.logger.Error("session failed: %v", err)
	if s.Status() != StatusShuttingDown {
		s.bridge.Send(ErrorEvent{Language: s.language, Err: err})
	}
	s.dropPending()
	s.setStatus(StatusFailed)
	s.kill()
}

// kill guarantees child termination on every exit path.
func (s *Session) kill() {
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.procCancel != nil {
		s.procCancel()
	}
}

func describeExit(err error) error {
	if err == nil {
		return errors.New("server process exited unexpectedly")
	}
	return fmt.Errorf("server process exited unexpectedly: %w", err)
}

// notify writes a notification frame. On failure the session fails and the
// caller must exit the loop.
func (s *Session) notify(method string, params any) bool {
	if err := s.codec.WriteNotification(method, params); err != nil {
		s.fail(err)
		return false
	}
	return true
}

// request writes a request frame. On failure the session fails and the
// caller must exit the loop.
func (s *Session) request(id int64, method string, params any) bool {
	if err := s.codec.WriteRequest(id, method, params); err != nil {
		s.fail(err)
		return false
	}
	return true
}

// requireReady gates commands that are only valid after the handshake.
func (s *Session) requireReady(method string) bool {
	if s.Status() != StatusReady {
		s.logger.Warn("dropping %s: %v", method, ErrNotInitialized)
		return false
	}
	return true
}
