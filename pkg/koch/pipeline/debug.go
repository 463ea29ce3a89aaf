package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/cognicore/koch/pkg/koch/internalerr"
)

// DebugWriter renders records as a markdown table instead of persisting
// them. Rows are buffered and printed on Close.
type DebugWriter[V any] struct {
	// MaxWidth is the maximum width of the value column
	MaxWidth int
	// Format renders a value; fmt's %+v is used when nil
	Format func(V) string

	out  io.Writer
	rows [][]string
	open bool
}

// NewDebugWriter creates a writer printing to w, or stdout when w is nil.
func NewDebugWriter[V any](w io.Writer) *DebugWriter[V] {
	if w == nil {
		w = os.Stdout
	}
	return &DebugWriter[V]{MaxWidth: 80, out: w}
}

func (d *DebugWriter[V]) Open(ctx context.Context) error {
	d.rows = d.rows[:0]
	d.open = true
	return nil
}

func (d *DebugWriter[V]) Write(ctx context.Context, key string, value V) error {
	if !d.open {
		return fmt.Errorf("debug writer: %w", internalerr.ErrStoreClosed)
	}
	d.rows = append(d.rows, []string{key, d.truncate(d.format(value))})
	return nil
}

func (d *DebugWriter[V]) Close() error {
	if !d.open {
		return nil
	}
	d.open = false

	if len(d.rows) > 0 {
		table := tablewriter.NewTable(d.out,
			tablewriter.WithRenderer(renderer.NewMarkdown()),
			tablewriter.WithAlignment([]tw.Align{tw.AlignNone, tw.AlignNone}),
			tablewriter.WithHeaderAutoFormat(tw.Off),
		)
		table.Header([]string{"key", "value"})
		for _, row := range d.rows {
			if err := table.Append(row); err != nil {
				return fmt.Errorf("debug writer: append %q: %w", row[0], err)
			}
		}
		if err := table.Render(); err != nil {
			return fmt.Errorf("debug writer: render: %w", err)
		}
	}

	summary := color.New(color.FgGreen)
	if len(d.rows) == 0 {
		summary = color.New(color.FgYellow)
	}
	if _, err := summary.Fprintf(d.out, "\n_%d records_\n", len(d.rows)); err != nil {
		return fmt.Errorf("debug writer: %w", err)
	}
	return nil
}

func (d *DebugWriter[V]) format(v V) string {
	if d.Format != nil {
		return d.Format(v)
	}
	return fmt.Sprintf("%+v", v)
}

func (d *DebugWriter[V]) truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if d.MaxWidth <= 3 || len(r) <= d.MaxWidth {
		return s
	}
	return string(r[:d.MaxWidth-3]) + "..."
}
