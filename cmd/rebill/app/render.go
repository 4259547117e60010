package app

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/xraph/rebill"
	"github.com/xraph/rebill/invoice"
	"github.com/xraph/rebill/item"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

func (a *App) render(data any, table func(w io.Writer) error) error {
	if a.config.Format == FormatJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	return table(a.out)
}

func writeTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewTable(w)

	h := make([]any, len(headers))
	for i, v := range headers {
		h[i] = v
	}
	table.Header(h...)

	for _, row := range rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = v
		}
		if err := table.Append(cells...); err != nil {
			return err
		}
	}
	return table.Render()
}

func itemRows(items []item.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		source := ""
		if it.IsPiece() {
			source = it.SourceID.String()
		}
		rows = append(rows, []string{
			it.ID.String(),
			string(it.Kind),
			it.Period.String(),
			it.Amount.String(),
			it.PlanName,
			source,
		})
	}
	return rows
}

var itemHeaders = []string{"ID", "KIND", "PERIOD", "AMOUNT", "PLAN", "SOURCE"}

func writeResult(w io.Writer, res *rebill.Result) error {
	if _, err := fmt.Fprintf(w, "Subscription %s (run %s, %d items)\n\n",
		res.SubscriptionID, res.RunID, res.Items); err != nil {
		return err
	}
	if err := writeTable(w, itemHeaders, itemRows(res.Timeline)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nAdded %d, superseded %d, absorbed %d, to bill %s\n",
		len(res.Delta.Added), len(res.Delta.Superseded), len(res.Delta.Absorbed), res.Delta.Total())
	return err
}

func writeInvoice(w io.Writer, inv *invoice.Invoice) error {
	if _, err := fmt.Fprintf(w, "Invoice %s [%s] %s\n\n", inv.ID, inv.Status, inv.Total); err != nil {
		return err
	}
	rows := make([][]string, 0, len(inv.LineItems))
	for _, li := range inv.LineItems {
		rows = append(rows, []string{li.Description, li.Period.String(), li.Amount.String()})
	}
	return writeTable(w, []string{"DESCRIPTION", "PERIOD", "AMOUNT"}, rows)
}
