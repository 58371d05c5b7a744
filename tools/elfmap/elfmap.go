// Command elfmap inspects a compiled kernel ELF image and prints the same
// view of allocated sections that kernel.Kmain computes at boot time via
// multiboot.VisitElfSections: the set of sections that occupy memory at
// runtime, their load addresses, sizes, and flags, plus the [start, end)
// bound that is handed to the area frame allocator to exclude the kernel's
// own footprint. It exists to let the kernel/multiboot bounds computation
// be checked offline against the real linked binary instead of only ever
// being exercised inside the booted kernel.
package main

import (
	"debug/elf"
	"flag"
	"fmt"
	"os"
)

type section struct {
	name  string
	addr  uint64
	size  uint64
	flags elf.SectionFlag
}

func allocatedSections(imgFile string) ([]section, error) {
	f, err := elf.Open(imgFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sections []section
	for _, s := range f.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 || s.Addr == 0 {
			continue
		}

		sections = append(sections, section{
			name:  s.Name,
			addr:  s.Addr,
			size:  s.Size,
			flags: s.Flags,
		})
	}

	return sections, nil
}

func bounds(sections []section) (start, end uint64) {
	if len(sections) == 0 {
		return 0, 0
	}

	start = sections[0].addr
	for _, s := range sections {
		if s.addr < start {
			start = s.addr
		}
		if s.addr+s.size > end {
			end = s.addr + s.size
		}
	}

	return start, end
}

func permString(flags elf.SectionFlag) string {
	perm := []byte("r--")
	if flags&elf.SHF_WRITE != 0 {
		perm[1] = 'w'
	}
	if flags&elf.SHF_EXECINSTR != 0 {
		perm[2] = 'x'
	}
	return string(perm)
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "elfmap: %s\n", err)
	os.Exit(1)
}

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		exit(fmt.Errorf("usage: elfmap <kernel-image>"))
	}

	sections, err := allocatedSections(flag.Arg(0))
	if err != nil {
		exit(err)
	}

	for _, s := range sections {
		fmt.Printf("%-20s %#016x %8d bytes %s\n", s.name, s.addr, s.size, permString(s.flags))
	}

	start, end := bounds(sections)
	fmt.Printf("\nkernel image bounds: [%#016x, %#016x)\n", start, end)
}
