package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/api"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printActivities renders activities as a table, newest last as the API returns them.
func printActivities(w io.Writer, activities []api.ActivityView) error {
	if len(activities) == 0 {
		_, err := fmt.Fprintln(w, "No activities recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tQUANTITY\tDATE\tID")
	for _, a := range activities {
		date := "-"
		if a.Date != nil {
			date = *a.Date
		}
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\n", a.ActivityType, formatQuantity(a.Quantity), a.Unit, date, a.ID)
	}
	return tw.Flush()
}

func printActivity(w io.Writer, a api.ActivityView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", a.ID)
	fmt.Fprintf(tw, "Type:\t%s\n", a.ActivityType)
	fmt.Fprintf(tw, "Quantity:\t%s %s\n", formatQuantity(a.Quantity), a.Unit)
	if a.Date != nil {
		fmt.Fprintf(tw, "Date:\t%s\n", *a.Date)
	}
	return tw.Flush()
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
