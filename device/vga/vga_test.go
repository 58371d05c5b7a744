package vga

import "testing"

// newTestWriter builds a Writer backed by real Go memory instead of the
// physical VGA buffer, so Write/Clear/scrollUp can be exercised under go
// test without touching 0xB8000.
func newTestWriter() *Writer {
	w := &Writer{
		attr: NewAttr(LightGrey, Black),
		fb:   make([]uint16, int(width)*int(height)),
	}
	w.Clear()
	return w
}

func TestClearBlanksScreen(t *testing.T) {
	w := newTestWriter()
	w.fb[42] = 0xBEEF

	w.Clear()

	cell := uint16(w.attr)<<8 | uint16(clearChar)
	for i, c := range w.fb {
		if c != cell {
			t.Fatalf("expected cell %d to be blank; got %#x", i, c)
		}
	}
	if w.cursorX != 0 || w.cursorY != 0 {
		t.Fatalf("expected cursor to be homed; got (%d, %d)", w.cursorX, w.cursorY)
	}
}

func TestWriteAdvancesCursor(t *testing.T) {
	w := newTestWriter()

	n, err := w.Write([]byte("hi"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected Write to report 2 bytes written; got %d", n)
	}

	wantH := uint16(w.attr)<<8 | uint16('h')
	wantI := uint16(w.attr)<<8 | uint16('i')
	if w.fb[0] != wantH || w.fb[1] != wantI {
		t.Fatalf("expected cells 0,1 to be 'h','i'; got %#x, %#x", w.fb[0], w.fb[1])
	}
	if w.cursorX != 2 || w.cursorY != 0 {
		t.Fatalf("expected cursor at (2, 0); got (%d, %d)", w.cursorX, w.cursorY)
	}
}

func TestWriteNewlineMovesToNextRow(t *testing.T) {
	w := newTestWriter()

	w.Write([]byte("a\nb"))

	if w.cursorY != 1 || w.cursorX != 1 {
		t.Fatalf("expected cursor at (1, 1); got (%d, %d)", w.cursorX, w.cursorY)
	}

	wantB := uint16(w.attr)<<8 | uint16('b')
	if got := w.fb[1*int(width)+0]; got != wantB {
		t.Fatalf("expected 'b' at the start of row 1; got %#x", got)
	}
}

func TestWriteWrapsAtRightEdge(t *testing.T) {
	w := newTestWriter()

	line := make([]byte, width+1)
	for i := range line {
		line[i] = 'x'
	}

	w.Write(line)

	if w.cursorY != 1 || w.cursorX != 1 {
		t.Fatalf("expected cursor at (1, 1) after wrapping; got (%d, %d)", w.cursorX, w.cursorY)
	}
}

func TestWriteScrollsAtBottomRow(t *testing.T) {
	w := newTestWriter()

	rowOf := func(b byte) []byte {
		row := make([]byte, width)
		for i := range row {
			row[i] = b
		}
		return row
	}

	for r := byte(0); r < byte(height); r++ {
		w.Write(rowOf('A' + r))
	}

	if w.cursorY != height-1 {
		t.Fatalf("expected the cursor to be pinned to the last row; got %d", w.cursorY)
	}

	// After height rows were written, the screen should have scrolled
	// once: the first visible row now holds what was originally row 1.
	wantFirstCell := uint16(w.attr)<<8 | uint16('A'+1)
	if got := w.fb[0]; got != wantFirstCell {
		t.Fatalf("expected row 0 to hold the second written row after scrolling; got %#x want %#x", got, wantFirstCell)
	}
}
