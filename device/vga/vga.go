// Package vga implements an io.Writer over the legacy 0xB8000 VGA
// text-mode buffer. It exists purely so kfmt.Panic (and the rest of
// kfmt.Printf's output) has somewhere to land on real hardware; it is not
// a console driver, has no cursor-addressing API, and does not attempt to
// interpret escape sequences beyond '\n'.
package vga

import (
	"reflect"
	"unsafe"
)

// Attr packs a foreground/background color pair into the high byte of a
// VGA text-mode cell.
type Attr byte

// Color enumerates the 16 colors addressable in EGA/VGA text mode.
type Color byte

const (
	Black Color = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGrey
	DarkGrey
	LightBlue
	LightGreen
	LightCyan
	LightRed
	LightMagenta
	Yellow
	White
)

// NewAttr packs fg on bg into an Attr suitable for Writer.SetAttr.
func NewAttr(fg, bg Color) Attr {
	return Attr(byte(bg)<<4 | byte(fg))
}

const (
	bufferPhysAddr = uintptr(0xB8000)
	width          = uint16(80)
	height         = uint16(25)
	clearChar      = byte(' ')
)

// Writer writes formatted text to the VGA text buffer, wrapping at the end
// of a row and scrolling the whole screen up a line once the last row
// fills. The zero value is not usable; call Init first.
type Writer struct {
	attr    Attr
	cursorX uint16
	cursorY uint16
	fb      []uint16
}

// Init maps the writer's internal view of the framebuffer onto the
// physical VGA buffer. The buffer must already be identity-mapped present
// and writable (RemapKernel does this unconditionally) before Init runs.
func (w *Writer) Init() {
	if w.fb != nil {
		return
	}

	w.attr = NewAttr(LightGrey, Black)
	w.fb = *(*[]uint16)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(width) * int(height),
		Cap:  int(width) * int(height),
		Data: bufferPhysAddr,
	}))

	w.Clear()
}

// SetAttr changes the color pair used for subsequent writes.
func (w *Writer) SetAttr(attr Attr) {
	w.attr = attr
}

// Clear blanks the entire screen and homes the cursor.
func (w *Writer) Clear() {
	cell := uint16(w.attr)<<8 | uint16(clearChar)
	for i := range w.fb {
		w.fb[i] = cell
	}
	w.cursorX, w.cursorY = 0, 0
}

// Write implements io.Writer, printing p one byte at a time. '\n' moves to
// the start of the next row; any other byte is placed at the cursor and
// advances it, wrapping to the next row at the screen's right edge. The
// screen scrolls up one row whenever the cursor would otherwise run past
// the bottom row.
func (w *Writer) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' {
			w.cursorX = 0
			w.cursorY++
		} else {
			w.fb[w.cursorY*width+w.cursorX] = uint16(w.attr)<<8 | uint16(b)
			w.cursorX++
			if w.cursorX >= width {
				w.cursorX = 0
				w.cursorY++
			}
		}

		if w.cursorY >= height {
			w.scrollUp()
			w.cursorY = height - 1
		}
	}

	return len(p), nil
}

func (w *Writer) scrollUp() {
	copy(w.fb, w.fb[width:])

	cell := uint16(w.attr)<<8 | uint16(clearChar)
	lastRow := w.fb[(height-1)*width : height*width]
	for i := range lastRow {
		lastRow[i] = cell
	}
}
