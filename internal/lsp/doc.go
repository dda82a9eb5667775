// Package lsp implements the Language Server Protocol (LSP) client used by
// skiff. It spawns one external language server process per language id,
// speaks JSON-RPC 2.0 over the child's stdin/stdout, and exposes results
// (diagnostics, inlay hints, folding ranges) to the single-threaded editor
// without blocking its render loop.
//
// # Architecture
//
// The package is organized around these components:
//
//   - Codec: Content-Length framed JSON-RPC encoding and decoding
//   - Ledger: correlation of outgoing request ids with completion slots
//   - Session: one goroutine per language owning a child process and its
//     document-version table, racing inbound frames against queued commands
//   - Handle: the synchronous façade the editor thread talks to
//   - Bridge: the many-producer single-consumer channel carrying events
//     from sessions back to the editor, drained once per frame
//   - Manager: the per-language registry with spawn, restart and shutdown
//     policy
//
// # Quick Start
//
// Create a bridge and a manager, then spawn a server lazily:
//
//	bridge := lsp.NewBridge()
//	mgr := lsp.NewManager(bridge, lsp.WithRootPath("/path/to/project"))
//
//	outcome, err := mgr.TrySpawn(ctx, "go", true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if h, ok := mgr.Handle("go"); ok {
//	    h.DidOpen("/path/to/main.go", content)
//	}
//
//	// Once per frame on the editor thread:
//	for _, ev := range bridge.TryRecvAll() {
//	    // apply diagnostics, results, errors
//	}
//
// # Ownership
//
// A Session's document-version table and request ledger are owned by its
// event-loop goroutine and are never shared. The editor communicates only
// through the Handle's bounded command queue and receives results only
// through the Bridge. Handle.Initialize is the single blocking call; all
// document traffic is fire-and-forget and all request results arrive
// asynchronously.
//
// # Failure
//
// Transport failures terminate the session: exactly one ErrorEvent is
// pushed to the bridge, outstanding requests are failed, the child process
// is killed, and subsequent Handle calls return ErrChannelClosed. The
// Manager never restarts a session implicitly; TrySpawn after a failure
// starts a fresh process.
package lsp
