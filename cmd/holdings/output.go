package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"holdings-server/internal/location"
	"holdings-server/internal/view"
)

func (env *environment) printJSON(v interface{}) error {
	enc := json.NewEncoder(env.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (env *environment) printRecords(records []location.Record) error {
	if env.asJSON {
		return env.printJSON(records)
	}

	tw := tabwriter.NewWriter(env.w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "KEY\tNAME\tQTY\tVALUE\tPACKAGED m3\tASSEMBLED m3\t")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.Key, r.FullName(), quantity(r.Quantity), r.Value(), r.PackagedVolume(), r.AssembledVolume())
	}
	return tw.Flush()
}

func (env *environment) printRows(rows []view.Row) error {
	if env.asJSON {
		return env.printJSON(rows)
	}

	tw := tabwriter.NewWriter(env.w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "NAME\tVALUE\tPACKAGED m3\tASSEMBLED m3\t")
	for _, r := range rows {
		name := "  " + r.Name
		if r.Header {
			name = "[" + r.Label + "]"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", name, r.Value, r.PackagedVolume, r.AssembledVolume)
	}
	return tw.Flush()
}

func quantity(q *int64) string {
	if q == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *q)
}
