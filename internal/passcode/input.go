package passcode

// Focuser moves keyboard focus to a box. It is implemented by the view
// layer; Input only calls it with positions inside [0, Len()).
type Focuser interface {
	Focus(position int)
}

// FocusFunc adapts a function to Focuser.
type FocusFunc func(position int)

func (f FocusFunc) Focus(position int) { f(position) }

// ChangeFunc receives the full entry after every accepted edit.
type ChangeFunc func(Entry)

// Input is the passcode control: N single-digit boxes with automatic focus
// advance on digit entry and focus retreat on backspace over an empty box.
type Input struct {
	entry    Entry
	focuser  Focuser
	onChange ChangeFunc
}

// NewInput returns an all-empty control of length n. focuser and onChange
// may be nil.
func NewInput(n int, focuser Focuser, onChange ChangeFunc) (*Input, error) {
	e, err := NewEntry(n)
	if err != nil {
		return nil, err
	}
	return &Input{entry: e, focuser: focuser, onChange: onChange}, nil
}

// Entry returns the current entry.
func (in *Input) Entry() Entry { return in.entry }

// Len returns the number of boxes.
func (in *Input) Len() int { return in.entry.Len() }

// Type applies the new content of box i as reported by the view.
// A single digit is stored and focus advances to the next box; an empty
// value clears the box without moving focus. Anything else, including
// multi-character values, is rejected and leaves the control untouched.
func (in *Input) Type(i int, value string) bool {
	if !in.inRange(i) {
		return false
	}
	switch {
	case IsDigit(value):
		in.set(in.entry.with(i, value))
		if i < in.entry.Len()-1 {
			in.focus(i + 1)
		}
		return true
	case value == "":
		in.set(in.entry.with(i, ""))
		return true
	default:
		return false
	}
}

// Backspace handles a backspace key press on box i before the box content
// changes. On an empty box focus retreats to the previous box; on a filled
// box the digit is cleared and focus stays.
func (in *Input) Backspace(i int) {
	if !in.inRange(i) {
		return
	}
	if in.entry.At(i) != "" {
		in.set(in.entry.with(i, ""))
		return
	}
	if i > 0 {
		in.focus(i - 1)
	}
}

// Paste distributes text across boxes starting at i, one digit per box,
// dropping digits that do not fit. Text containing anything other than
// digits is rejected as a whole. Focus moves to the box after the last one
// filled, or stays on the final box.
func (in *Input) Paste(i int, text string) bool {
	if !in.inRange(i) || text == "" {
		return false
	}
	for k := 0; k < len(text); k++ {
		if text[k] < '0' || text[k] > '9' {
			return false
		}
	}
	next := in.entry.Boxes()
	last := i
	for k := 0; k < len(text) && i+k < len(next); k++ {
		next[i+k] = text[k : k+1]
		last = i + k
	}
	in.set(Entry{boxes: next})
	if last < in.entry.Len()-1 {
		in.focus(last + 1)
	} else {
		in.focus(last)
	}
	return true
}

// Reset empties every box and puts focus back on the first one.
func (in *Input) Reset() {
	in.set(in.entry.Cleared())
	in.focus(0)
}

func (in *Input) inRange(i int) bool {
	return i >= 0 && i < in.entry.Len()
}

func (in *Input) set(e Entry) {
	in.entry = e
	if in.onChange != nil {
		in.onChange(e)
	}
}

func (in *Input) focus(i int) {
	if in.focuser == nil || !in.inRange(i) {
		return
	}
	in.focuser.Focus(i)
}
