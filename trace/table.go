package trace

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/typedb/typedb-sub004/ir"
	"github.com/typedb/typedb-sub004/tuple"
)

// TableFormatter renders a stream of rows as a markdown table, for
// -explain output and debugging.
type TableFormatter struct{}

// NewTableFormatter returns a TableFormatter with default settings.
func NewTableFormatter() *TableFormatter { return &TableFormatter{} }

// FormatRows renders rows with the given column names (one per
// tuple.Row position, in order).
func (tf *TableFormatter) FormatRows(columns []string, rows []*tuple.Row) string {
	if len(rows) == 0 {
		return fmt.Sprintf("_Columns: %s_\n\n_No rows_", strings.Join(columns, ", "))
	}

	out := &strings.Builder{}
	alignment := make([]tw.Align, len(columns))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(out,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(columns)

	for _, row := range rows {
		rendered := make([]string, len(row.Values))
		for i, v := range row.Values {
			rendered[i] = formatValue(v)
		}
		table.Append(rendered)
	}
	table.Render()

	fmt.Fprintf(out, "\n_%d rows_\n", len(rows))
	return out.String()
}

func formatValue(v tuple.VariableValue) string {
	switch v.Kind {
	case tuple.ValueEmpty:
		return ""
	case tuple.ValueType:
		return v.Type.String()
	case tuple.ValueThing:
		return fmt.Sprintf("%x", []byte(v.Thing))
	default:
		return formatIRValue(v.Value)
	}
}

func formatIRValue(v ir.Value) string {
	switch v.Type {
	case ir.ValueTypeBoolean:
		return fmt.Sprintf("%t", v.Bool)
	case ir.ValueTypeLong:
		return fmt.Sprintf("%d", v.Long)
	case ir.ValueTypeDouble:
		return fmt.Sprintf("%g", v.Double)
	case ir.ValueTypeString:
		return v.Str
	default:
		return fmt.Sprintf("%v", v.Raw)
	}
}
