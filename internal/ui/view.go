package ui

// Line is one row of frame content with its semantic style.
type Line struct {
	Text  string
	Style Style
}

// Frame is the view model for one rendered frame. The application builds a
// Frame per tick and the View lays it out.
type Frame struct {
	// Header is the single title row at the top.
	Header string
	// Lines is the scrollable body.
	Lines []Line
	// Selected is the index into Lines that carries the cursor, or -1
	// for no selection.
	Selected int
	// Status is the single status row at the bottom.
	Status string
}

// View lays frames out on a screen. It keeps the scroll offset between
// frames so the viewport does not jump while the selection is visible.
type View struct {
	offset int
}

// Render draws the frame. The header takes the first row, the status bar
// the last, and the body scrolls between them keeping the selected line in
// view.
func (v *View) Render(s Screen, f Frame) {
	s.Clear()
	w, h := s.Size()
	if w <= 0 || h <= 0 {
		s.Show()
		return
	}

	drawRow(s, 0, w, f.Header, StyleHeader)

	bodyTop := 1
	bodyH := h - 2
	if h < 3 {
		// Too short for chrome. Give everything to the body.
		bodyTop = 0
		bodyH = h
	}
	if bodyH > 0 {
		v.scrollTo(f.Selected, len(f.Lines), bodyH)
		for row := 0; row < bodyH; row++ {
			i := v.offset + row
			if i >= len(f.Lines) {
				break
			}
			style := f.Lines[i].Style
			if i == f.Selected {
				style = StyleSelected
			}
			drawRow(s, bodyTop+row, w, f.Lines[i].Text, style)
		}
	}

	if h >= 2 {
		drawRow(s, h-1, w, f.Status, StyleStatus)
	}
	s.Show()
}

// scrollTo moves the offset just far enough to keep the selection inside a
// viewport of the given height.
func (v *View) scrollTo(selected, total, height int) {
	if v.offset > total-1 {
		v.offset = total - 1
	}
	if v.offset < 0 {
		v.offset = 0
	}
	if selected < 0 {
		return
	}
	if selected < v.offset {
		v.offset = selected
	}
	if selected >= v.offset+height {
		v.offset = selected - height + 1
	}
}

// drawRow writes text into one row, padding the remainder with spaces so
// the style covers the full width.
func drawRow(s Screen, y, width int, text string, style Style) {
	x := 0
	for _, r := range text {
		if x >= width {
			return
		}
		s.SetCell(x, y, r, style)
		x++
	}
	for ; x < width; x++ {
		s.SetCell(x, y, ' ', style)
	}
}
