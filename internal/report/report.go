// Package report renders allocator statistics as human-readable text.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/slabkit/alloc"
)

// printer groups digits the way an English reader expects ("1,048,576").
var printer = message.NewPrinter(language.English)

// Number formats n with grouped digits.
func Number(n uint64) string {
	return printer.Sprintf("%d", n)
}

// Bytes formats n as a binary size ("4.0 KiB"), or plain bytes below 1 KiB.
func Bytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return printer.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return printer.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Classes writes the size-class table for pageSize: block size, blocks per
// slab and the bytes each slab leaves unused.
func Classes(w io.Writer, pageSize uintptr) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	printer.Fprintf(tw, "class\tblock\tstride\tper slab\tslack\t\n")
	for class := 0; class < alloc.NumClasses; class++ {
		block := alloc.BlockSize(class)
		per := alloc.SlabCapacity(class, pageSize)
		stride := alloc.Stride(class)
		slack := pageSize - alloc.HeaderSize - per*stride
		printer.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t\n", class, block, stride, per, slack)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := printer.Fprintf(w, "\npage size %d, header %d, largest slab request %d\n",
		pageSize, alloc.HeaderSize, alloc.MaxSmall)
	return err
}

// Stats writes a summary of s followed by one row per size class.
func Stats(w io.Writer, s alloc.Stats) error {
	ew := &errWriter{w: w}
	printer.Fprintf(ew, "Allocator Statistics\n")
	printer.Fprintf(ew, "  Page size:     %s\n", Bytes(s.PageSize))
	printer.Fprintf(ew, "  Mapped:        %s (%s bytes)\n", Bytes(s.MappedBytes), Number(s.MappedBytes))
	printer.Fprintf(ew, "  Slabs:         %d\n", s.Slabs())
	printer.Fprintf(ew, "  Large objects: %d (%s)\n", s.LargeObjects, Bytes(s.LargeBytes))
	printer.Fprintf(ew, "  Allocations:   %d\n", s.Allocs)
	printer.Fprintf(ew, "  Frees:         %d\n", s.Frees)
	printer.Fprintf(ew, "  Live:          %d\n\n", s.Live())
	if ew.err != nil {
		return ew.err
	}

	tw := tabwriter.NewWriter(ew, 0, 0, 2, ' ', tabwriter.AlignRight)
	printer.Fprintf(tw, "class\tblock\tper slab\tslabs\tin use\tfree\t\n")
	for _, c := range s.Classes {
		printer.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t\n",
			c.Class, c.BlockSize, c.PerSlab, c.Slabs, c.InUse, c.Free)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if ew.err != nil {
		return fmt.Errorf("report: %w", ew.err)
	}
	return nil
}

// errWriter remembers the first write error so the formatting calls above
// can stay unchecked.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}
