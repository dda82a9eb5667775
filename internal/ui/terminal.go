package ui

import (
	"sync"

	"github.com/gdamore/tcell/v2"
)

// Terminal is a Screen backed by a tcell screen.
type Terminal struct {
	mu     sync.Mutex
	screen tcell.Screen
	inited bool
}

// NewTerminal creates a Terminal over the real terminal.
func NewTerminal() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return &Terminal{screen: screen}, nil
}

// NewSimTerminal creates a Terminal over a tcell simulation screen. The
// simulation screen is returned as well so tests can inject keys and
// inspect cell contents.
func NewSimTerminal() (*Terminal, tcell.SimulationScreen) {
	sim := tcell.NewSimulationScreen("UTF-8")
	return &Terminal{screen: sim}, sim
}

// Init initializes the underlying screen.
func (t *Terminal) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inited {
		return nil
	}
	if err := t.screen.Init(); err != nil {
		return err
	}
	t.screen.Clear()
	t.inited = true
	return nil
}

// Fini restores the terminal. Safe to call more than once.
func (t *Terminal) Fini() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.inited {
		return
	}
	t.inited = false
	t.screen.Fini()
}

// Size returns the terminal dimensions.
func (t *Terminal) Size() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.screen.Size()
}

// SetCell places a rune at the given cell.
func (t *Terminal) SetCell(x, y int, r rune, style Style) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.screen.SetContent(x, y, r, nil, tcellStyle(style))
}

// Clear erases the pending frame.
func (t *Terminal) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.screen.Clear()
}

// Show flushes the pending frame.
func (t *Terminal) Show() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.screen.Show()
}

// PollEvent blocks for the next event. Once the screen is finalized the
// underlying poll returns nil and this reports EventClosed.
func (t *Terminal) PollEvent() Event {
	ev := t.screen.PollEvent()
	if ev == nil {
		return Event{Type: EventClosed}
	}
	return convertEvent(ev)
}

// PostEvent injects an event into the tcell queue. Unsupported event types
// are dropped.
func (t *Terminal) PostEvent(ev Event) {
	switch ev.Type {
	case EventKey:
		key, r, mod := tcellKey(ev)
		t.screen.PostEvent(tcell.NewEventKey(key, r, mod))
	case EventClosed:
		t.screen.PostEvent(tcell.NewEventInterrupt(nil))
	}
}

// tcellStyle maps a semantic style onto tcell colors.
func tcellStyle(style Style) tcell.Style {
	base := tcell.StyleDefault
	switch style {
	case StyleHeader:
		return base.Foreground(tcell.ColorWhite).Bold(true)
	case StyleError:
		return base.Foreground(tcell.ColorRed)
	case StyleWarning:
		return base.Foreground(tcell.ColorYellow)
	case StyleInfo:
		return base.Foreground(tcell.ColorBlue)
	case StyleHint:
		return base.Foreground(tcell.ColorGray)
	case StyleSelected:
		return base.Reverse(true)
	case StyleStatus:
		return base.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver)
	case StyleDim:
		return base.Dim(true)
	default:
		return base
	}
}

// convertEvent translates a tcell event into a ui event.
func convertEvent(ev tcell.Event) Event {
	switch tev := ev.(type) {
	case *tcell.EventKey:
		return convertKey(tev)
	case *tcell.EventResize:
		w, h := tev.Size()
		return Event{Type: EventResize, Width: w, Height: h}
	default:
		return Event{Type: EventNone}
	}
}

// convertKey translates a tcell key event.
func convertKey(ev *tcell.EventKey) Event {
	out := Event{Type: EventKey}
	switch ev.Key() {
	case tcell.KeyRune:
		out.Key = KeyRune
		out.Rune = ev.Rune()
	case tcell.KeyEscape:
		out.Key = KeyEscape
	case tcell.KeyEnter:
		out.Key = KeyEnter
	case tcell.KeyTab:
		out.Key = KeyTab
	case tcell.KeyUp:
		out.Key = KeyUp
	case tcell.KeyDown:
		out.Key = KeyDown
	case tcell.KeyCtrlC:
		out.Key = KeyCtrlC
	default:
		out.Key = KeyNone
	}
	return out
}

// tcellKey translates a ui key event back into tcell terms for PostEvent.
func tcellKey(ev Event) (tcell.Key, rune, tcell.ModMask) {
	switch ev.Key {
	case KeyRune:
		return tcell.KeyRune, ev.Rune, tcell.ModNone
	case KeyEscape:
		return tcell.KeyEscape, 0, tcell.ModNone
	case KeyEnter:
		return tcell.KeyEnter, 0, tcell.ModNone
	case KeyTab:
		return tcell.KeyTab, 0, tcell.ModNone
	case KeyUp:
		return tcell.KeyUp, 0, tcell.ModNone
	case KeyDown:
		return tcell.KeyDown, 0, tcell.ModNone
	case KeyCtrlC:
		return tcell.KeyCtrlC, 0, tcell.ModCtrl
	default:
		return tcell.KeyNUL, 0, tcell.ModNone
	}
}
