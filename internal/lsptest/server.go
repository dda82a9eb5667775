// Package lsptest implements a scriptable fake language server for tests.
//
// The fake runs as a real child process using the re-exec pattern: a test
// binary whose TestMain calls Main when EnvServer is set becomes the server
// when a session spawns os.Args[0]. Behavior is selected through the
// environment, which the child inherits from the test process:
//
//	LSPTEST_SERVER=1          run as fake server instead of tests
//	LSPTEST_MODE=<mode>       optional misbehavior, see the Mode* constants
//	LSPTEST_TRANSCRIPT=<path> append one line per inbound client message
//	LSPTEST_PUBLISH_ON_OPEN=1 publish a diagnostic after each didOpen
//	LSPTEST_RECORD_TEXT=1     append the quoted document text to
//	                          didOpen/didChange transcript lines
//
// The transcript lets tests assert on what the server actually received:
// each line is the method name, followed by the document version when the
// message carries one. A -transcript=PATH argument overrides the
// environment, for tests that run one server per language.
package lsptest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Environment variable names understood by Main.
const (
	EnvServer        = "LSPTEST_SERVER"
	EnvMode          = "LSPTEST_MODE"
	EnvTranscript    = "LSPTEST_TRANSCRIPT"
	EnvPublishOnOpen = "LSPTEST_PUBLISH_ON_OPEN"
	EnvRecordText    = "LSPTEST_RECORD_TEXT"
)

// Modes for EnvMode.
const (
	// ModeDieAfterInit exits with status 3 right after the initialized
	// notification, simulating a server crash.
	ModeDieAfterInit = "die-after-init"
	// ModeStdoutGarbage writes unframed bytes after the initialized
	// notification, corrupting the transport, and keeps running.
	ModeStdoutGarbage = "stdout-garbage"
	// ModeNoShutdownReply swallows the shutdown request.
	ModeNoShutdownReply = "no-shutdown-reply"
	// ModeHoldDiagnostic parks textDocument/diagnostic requests until a
	// matching $/cancelRequest arrives, then fails them as cancelled.
	ModeHoldDiagnostic = "hold-diagnostic"
	// ModeSlowInit sleeps before answering initialize.
	ModeSlowInit = "slow-init"
	// ModeAskConfig sends a workspace/configuration request to the client
	// after initialized and records the reply code in the transcript.
	ModeAskConfig = "ask-config"
)

// ResultID is the diagnostic result id the fake reports. A pull carrying it
// as previousResultId gets an unchanged report back.
const ResultID = "r1"

const requestCancelled = -32800

// Main runs the fake server over stdin/stdout and never returns. The
// transcript path may also be passed as a -transcript=PATH argument, which
// overrides EnvTranscript so tests running several servers at once can keep
// separate logs.
func Main() {
	s := &server{
		in:         bufio.NewReader(os.Stdin),
		out:        os.Stdout,
		mode:       os.Getenv(EnvMode),
		publish:    os.Getenv(EnvPublishOnOpen) == "1",
		recordText: os.Getenv(EnvRecordText) == "1",
	}
	path := os.Getenv(EnvTranscript)
	for _, arg := range os.Args[1:] {
		if v, ok := strings.CutPrefix(arg, "-transcript="); ok {
			path = v
		}
	}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lsptest: open transcript: %v\n", err)
			os.Exit(2)
		}
		s.transcript = f
	}
	s.run()
	os.Exit(0)
}

type server struct {
	in         *bufio.Reader
	out        io.Writer
	transcript *os.File
	mode       string
	publish    bool
	recordText bool

	heldDiagnostic int64
	askConfigID    int64
}

func (s *server) run() {
	s.heldDiagnostic = -1
	for {
		body, err := s.readFrame()
		if err != nil {
			return
		}
		if !s.dispatch(body) {
			return
		}
	}
}

// dispatch handles one inbound frame. It reports whether to keep serving.
func (s *server) dispatch(body []byte) bool {
	method := gjson.GetBytes(body, "method").Str
	id := gjson.GetBytes(body, "id")

	if method == "" && id.Exists() {
		// Response to a server-to-client request.
		if s.askConfigID != 0 && id.Int() == s.askConfigID {
			code := gjson.GetBytes(body, "error.code").Int()
			s.record(fmt.Sprintf("client-reply %d", code))
		}
		return true
	}

	s.record(s.describe(body, method))

	switch method {
	case "initialize":
		if s.mode == ModeSlowInit {
			time.Sleep(2 * time.Second)
		}
		s.reply(id.Int(), initializeResult())

	case "initialized":
		switch s.mode {
		case ModeDieAfterInit:
			s.close()
			os.Exit(3)
		case ModeStdoutGarbage:
			// Keep running afterwards; the client kills us once its
			// reader trips over the garbage.
			fmt.Fprint(s.out, "this is not a jsonrpc frame\r\n\r\n")
		case ModeAskConfig:
			s.askConfigID = 9001
			req, _ := sjson.SetBytes([]byte(`{"jsonrpc":"2.0","method":"workspace/configuration","params":{"items":[]}}`), "id", s.askConfigID)
			s.writeFrame(req)
		}

	case "textDocument/didOpen":
		if s.publish {
			uri := gjson.GetBytes(body, "params.textDocument.uri").Str
			s.notifyPublishDiagnostics(uri)
		}

	case "textDocument/didChange", "textDocument/didClose":
		// Transcript only.

	case "textDocument/diagnostic":
		if s.mode == ModeHoldDiagnostic {
			s.heldDiagnostic = id.Int()
			return true
		}
		prev := gjson.GetBytes(body, "params.previousResultId").Str
		s.reply(id.Int(), diagnosticReport(prev))

	case "textDocument/inlayHint":
		s.reply(id.Int(), []byte(`[{"position":{"line":0,"character":4},"label":"lsptest"}]`))

	case "textDocument/foldingRange":
		s.reply(id.Int(), []byte(`[{"startLine":0,"endLine":2,"kind":"region"}]`))

	case "$/cancelRequest":
		target := gjson.GetBytes(body, "params.id").Int()
		if s.heldDiagnostic >= 0 && target == s.heldDiagnostic {
			s.replyError(s.heldDiagnostic, requestCancelled, "request cancelled")
			s.heldDiagnostic = -1
		}

	case "shutdown":
		if s.mode != ModeNoShutdownReply {
			s.reply(id.Int(), []byte(`null`))
		}

	case "exit":
		s.close()
		return false

	default:
		if id.Exists() {
			s.replyError(id.Int(), -32601, "method not found: "+method)
		}
	}
	return true
}

// describe renders a transcript line: the method, plus the document version
// when the message carries one, plus the quoted document text when
// recording is on. Quoting keeps multi-line documents on one line.
func (s *server) describe(body []byte, method string) string {
	line := method
	if v := gjson.GetBytes(body, "params.textDocument.version"); v.Exists() {
		line = fmt.Sprintf("%s %d", method, v.Int())
	}
	if s.recordText {
		switch method {
		case "textDocument/didOpen":
			line = fmt.Sprintf("%s %q", line, gjson.GetBytes(body, "params.textDocument.text").Str)
		case "textDocument/didChange":
			line = fmt.Sprintf("%s %q", line, gjson.GetBytes(body, "params.contentChanges.0.text").Str)
		}
	}
	return line
}

func initializeResult() []byte {
	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "capabilities.positionEncoding", "utf-16")
	body, _ = sjson.SetBytes(body, "capabilities.textDocumentSync", 1)
	body, _ = sjson.SetBytes(body, "capabilities.diagnosticProvider.interFileDependencies", false)
	body, _ = sjson.SetBytes(body, "capabilities.diagnosticProvider.workspaceDiagnostics", false)
	body, _ = sjson.SetBytes(body, "capabilities.inlayHintProvider", true)
	body, _ = sjson.SetBytes(body, "capabilities.foldingRangeProvider", true)
	body, _ = sjson.SetBytes(body, "serverInfo.name", "lsptest")
	body, _ = sjson.SetBytes(body, "serverInfo.version", "1.0")
	return body
}

func diagnosticReport(previousResultID string) []byte {
	if previousResultID == ResultID {
		body := []byte(`{}`)
		body, _ = sjson.SetBytes(body, "kind", "unchanged")
		body, _ = sjson.SetBytes(body, "resultId", ResultID)
		return body
	}
	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "kind", "full")
	body, _ = sjson.SetBytes(body, "resultId", ResultID)
	body, _ = sjson.SetRawBytes(body, "items", []byte(`[{"range":{"start":{"line":0,"character":0},"end":{"line":0,"character":5}},"severity":1,"message":"lsptest: broken"}]`))
	return body
}

func (s *server) notifyPublishDiagnostics(uri string) {
	body := []byte(`{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics"}`)
	body, _ = sjson.SetBytes(body, "params.uri", uri)
	body, _ = sjson.SetRawBytes(body, "params.diagnostics", []byte(`[{"range":{"start":{"line":1,"character":0},"end":{"line":1,"character":3}},"severity":2,"message":"opened"}]`))
	s.writeFrame(body)
}

func (s *server) reply(id int64, result []byte) {
	body, _ := sjson.SetBytes([]byte(`{"jsonrpc":"2.0"}`), "id", id)
	body, _ = sjson.SetRawBytes(body, "result", result)
	s.writeFrame(body)
}

func (s *server) replyError(id int64, code int, message string) {
	body, _ := sjson.SetBytes([]byte(`{"jsonrpc":"2.0"}`), "id", id)
	body, _ = sjson.SetBytes(body, "error.code", code)
	body, _ = sjson.SetBytes(body, "error.message", message)
	s.writeFrame(body)
}

func (s *server) writeFrame(body []byte) {
	fmt.Fprintf(s.out, "Content-Length: %d\r\n\r\n%s", len(body), body)
}

func (s *server) readFrame() ([]byte, error) {
	length := -1
	for {
		line, err := s.in.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if name, value, ok := strings.Cut(line, ":"); ok && strings.EqualFold(name, "Content-Length") {
			length, err = strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, err
			}
		}
	}
	if length < 0 {
		return nil, fmt.Errorf("missing Content-Length")
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(s.in, body); err != nil {
		return nil, err
	}
	return body, nil
}

// record appends one transcript line and syncs so the parent test can read
// it even if this process is killed next.
func (s *server) record(line string) {
	if s.transcript == nil {
		return
	}
	fmt.Fprintln(s.transcript, line)
	_ = s.transcript.Sync()
}

func (s *server) close() {
	if s.transcript != nil {
		_ = s.transcript.Close()
	}
}
