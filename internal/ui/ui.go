// Package ui provides the terminal surface for the editor shell. It wraps
// tcell behind a small Screen interface so the application loop can be
// exercised against a simulation screen in tests.
package ui

// EventType identifies the kind of input event delivered by a Screen.
type EventType int

const (
	// EventNone is the zero event. PollEvent never returns it while the
	// screen is live.
	EventNone EventType = iota
	// EventKey is a key press.
	EventKey
	// EventResize reports a new terminal size.
	EventResize
	// EventClosed reports that the screen has been finalized. Pollers
	// should exit when they see it.
	EventClosed
)

// Key identifies special keys. Printable input arrives as KeyRune with the
// rune set on the event.
type Key int

const (
	KeyNone Key = iota
	KeyRune
	KeyEscape
	KeyEnter
	KeyTab
	KeyUp
	KeyDown
	KeyCtrlC
)

// Event is a single input event from the terminal.
type Event struct {
	Type   EventType
	Key    Key
	Rune   rune
	Width  int
	Height int
}

// Style is a semantic style. The terminal backend decides how each maps to
// colors so view code never touches tcell directly.
type Style int

const (
	StyleDefault Style = iota
	StyleHeader
	StyleError
	StyleWarning
	StyleInfo
	StyleHint
	StyleSelected
	StyleStatus
	StyleDim
)

// Screen is the drawing and input surface the application runs against.
type Screen interface {
	// Init prepares the screen for use.
	Init() error
	// Fini restores the terminal. Safe to call more than once.
	Fini()
	// Size returns the current width and height in cells.
	Size() (int, int)
	// SetCell places a rune at the given cell with a semantic style.
	SetCell(x, y int, r rune, style Style)
	// Clear erases the pending frame.
	Clear()
	// Show flushes the pending frame to the terminal.
	Show()
	// PollEvent blocks for the next event. It returns an EventClosed
	// event once the screen has been finalized.
	PollEvent() Event
	// PostEvent injects an event into the queue. Best effort.
	PostEvent(ev Event)
}
