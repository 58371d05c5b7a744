package vmm

import (
	"testing"

	"talonkernel/kernel"
	"talonkernel/kernel/mm"
)

func TestTemporaryPageMapTo(t *testing.T) {
	defer func(origTranslate func(uintptr) (uintptr, *kernel.Error), origMap func(mm.Page, mm.Frame, PageTableEntryFlag) *kernel.Error) {
		translateFn = origTranslate
		mapFn = origMap
	}(translateFn, mapFn)

	tp := NewTemporaryPage(0x1000)
	frame := mm.Frame(7)

	t.Run("already mapped", func(t *testing.T) {
		translateFn = func(_ uintptr) (uintptr, *kernel.Error) { return 0xdeadbeef, nil }

		if _, err := tp.MapTo(frame); err != errTemporaryPageAlreadyMapped {
			t.Fatalf("expected errTemporaryPageAlreadyMapped; got %v", err)
		}
	})

	t.Run("maps successfully", func(t *testing.T) {
		translateFn = func(_ uintptr) (uintptr, *kernel.Error) { return 0, ErrInvalidMapping }

		var gotPage mm.Page
		var gotFrame mm.Frame
		var gotFlags PageTableEntryFlag
		mapFn = func(page mm.Page, frame mm.Frame, flags PageTableEntryFlag) *kernel.Error {
			gotPage, gotFrame, gotFlags = page, frame, flags
			return nil
		}

		addr, err := tp.MapTo(frame)
		if err != nil {
			t.Fatal(err)
		}

		if addr != tp.page.Address() {
			t.Fatalf("expected returned address to be %x; got %x", tp.page.Address(), addr)
		}
		if gotPage != tp.page {
			t.Fatalf("expected Map to be called with page %v; got %v", tp.page, gotPage)
		}
		if gotFrame != frame {
			t.Fatalf("expected Map to be called with frame %v; got %v", frame, gotFrame)
		}
		if gotFlags&(FlagPresent|FlagRW) != (FlagPresent | FlagRW) {
			t.Fatal("expected Map to be called with FlagPresent|FlagRW")
		}
	})

	t.Run("Map fails", func(t *testing.T) {
		translateFn = func(_ uintptr) (uintptr, *kernel.Error) { return 0, ErrInvalidMapping }
		expErr := &kernel.Error{Module: "test", Message: "map failed"}
		mapFn = func(_ mm.Page, _ mm.Frame, _ PageTableEntryFlag) *kernel.Error { return expErr }

		if _, err := tp.MapTo(frame); err != expErr {
			t.Fatalf("expected %v; got %v", expErr, err)
		}
	})
}

func TestTemporaryPageUnmap(t *testing.T) {
	defer func(orig func(mm.Page) *kernel.Error) { unmapFn = orig }(unmapFn)

	tp := NewTemporaryPage(0x2000)

	var gotPage mm.Page
	unmapFn = func(page mm.Page) *kernel.Error {
		gotPage = page
		return nil
	}

	if err := tp.Unmap(); err != nil {
		t.Fatal(err)
	}

	if gotPage != tp.page {
		t.Fatalf("expected Unmap to be called with page %v; got %v", tp.page, gotPage)
	}
}
