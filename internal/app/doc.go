// Package app owns the single-threaded editor state: the buffer registry,
// the diagnostics store, the language server manager, and the frame loop
// that drains session events and renders the diagnostics console.
//
// All editor state is confined to the goroutine running App.Run. Session
// goroutines communicate with it exclusively through the lsp.Bridge, which
// the frame loop drains completely once per tick. Nothing in this package
// takes a lock around editor state.
//
// # Lifecycle
//
//	app, err := app.New(app.Options{Config: cfg})
//	if err != nil { ... }
//	err = app.Run(ctx)        // blocks until quit or fatal error
//	app.Close(ctx)            // stops every language server
//
// Run returns ErrQuit when the user quits; callers treat that as a clean
// exit.
package app
