package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/slabkit/alloc"
	"github.com/joshuapare/slabkit/internal/report"
	"github.com/joshuapare/slabkit/vmem"
)

var (
	classesPageSize int
)

func init() {
	cmd := newClassesCmd()
	cmd.Flags().IntVar(&classesPageSize, "page-size", 0, "Page size to lay slabs out for (default: host page size)")
	rootCmd.AddCommand(cmd)
}

func newClassesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "Show the slab size-class table",
		Long: `The classes command prints every size class with its block size, the
distance between blocks, how many blocks fit in one slab and the bytes left
over at the end of each slab.

Example:
  slabctl classes
  slabctl classes --page-size 16384
  slabctl classes --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses()
		},
	}
	return cmd
}

// ClassRow is one line of the size-class table.
type ClassRow struct {
	Class     int     `json:"class"`
	BlockSize uintptr `json:"block_size"`
	Stride    uintptr `json:"stride"`
	PerSlab   uintptr `json:"per_slab"`
	Slack     uintptr `json:"slack"`
}

// ClassTable describes slab layout for one page size.
type ClassTable struct {
	PageSize   uintptr    `json:"page_size"`
	HeaderSize uintptr    `json:"header_size"`
	MaxSmall   uintptr    `json:"max_small"`
	Classes    []ClassRow `json:"classes"`
}

func buildClassTable(pageSize uintptr) ClassTable {
	table := ClassTable{
		PageSize:   pageSize,
		HeaderSize: alloc.HeaderSize,
		MaxSmall:   alloc.MaxSmall,
	}
	for class := 0; class < alloc.NumClasses; class++ {
		per := alloc.SlabCapacity(class, pageSize)
		stride := alloc.Stride(class)
		table.Classes = append(table.Classes, ClassRow{
			Class:     class,
			BlockSize: alloc.BlockSize(class),
			Stride:    stride,
			PerSlab:   per,
			Slack:     pageSize - alloc.HeaderSize - per*stride,
		})
	}
	return table
}

func runClasses() error {
	pageSize := uintptr(classesPageSize)
	if classesPageSize == 0 {
		pageSize = uintptr(vmem.System().PageSize())
	}
	if classesPageSize < 0 {
		pageSize = 0
	}
	if err := alloc.CheckPageSize(pageSize); err != nil {
		return err
	}
	printVerbose("Page size: %d\n", pageSize)

	if jsonOut {
		return printJSON(buildClassTable(pageSize))
	}
	if quiet {
		return nil
	}
	return report.Classes(os.Stdout, pageSize)
}
