package main

import (
	"encoding/json"
	"os"
	"text/tabwriter"
)

// renderJSON writes v to stdout as two-space-indented JSON, matching the
// persisted document format (§6 of the design).
func renderJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTable returns a tabwriter configured the way every table renderer
// in this package uses it.
func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

// render dispatches to asJSON or asTable depending on the resolved
// output format.
func render(asJSON func() error, asTable func()) error {
	if GetFormat() == "json" {
		return asJSON()
	}
	asTable()
	return nil
}
