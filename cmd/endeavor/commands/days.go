package commands

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"

	"endeavor-cli/lib/scrapers/endeavor"
	"endeavor-cli/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	allDays bool
	asJson  bool
	asCsv   bool
)

func init() {
	daysCmd.Flags().BoolVarP(&allDays, "all-days", "a", false,
		"include entries dated in the future")
	daysCmd.Flags().BoolVar(&asJson, "json", false, "print entries as JSON")
	daysCmd.Flags().BoolVar(&asCsv, "csv", false, "print entries as CSV")
	daysCmd.MarkFlagsMutuallyExclusive("json", "csv")
	rootCmd.AddCommand(daysCmd)
}

var daysCmd = &cobra.Command{
	Use:   "days",
	Short: "Lists the days with pending timesheet entries.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		session, err := newSession(ctx)
		if err != nil {
			serviceutil.Fatal("failed to open session", err)
		}

		entries, err := session.PendingEntries(ctx, allDays)
		if err != nil {
			serviceutil.Fatal("failed to list entries", err)
		}

		switch {
		case asJson:
			err = writeJson(os.Stdout, entries)
		case asCsv:
			err = writeCsv(os.Stdout, entries)
		default:
			if len(entries) == 0 {
				serviceutil.Fatal("no pending entries", errors.New("the timeline came back empty"))
			}
			writeTable(os.Stdout, entries)
		}
		if err != nil {
			serviceutil.Fatal("failed to write output", err)
		}
	},
}

type entryRecord struct {
	Id            string `json:"id"`
	Date          string `json:"date"`
	Customer      string `json:"customer"`
	ProjectNumber string `json:"project_number"`
}

func toRecords(entries []endeavor.Entry) []entryRecord {
	records := make([]entryRecord, 0, len(entries))
	for _, entry := range entries {
		records = append(records, entryRecord{
			Id:            entry.ID,
			Date:          entry.Date.Format("2006-01-02"),
			Customer:      entry.Customer,
			ProjectNumber: entry.ProjectNumber,
		})
	}
	return records
}

func writeJson(w io.Writer, entries []endeavor.Entry) error {
	return json.NewEncoder(w).Encode(toRecords(entries))
}

func writeCsv(w io.Writer, entries []endeavor.Entry) error {
	writer := csv.NewWriter(w)
	err := writer.Write([]string{"id", "date", "customer", "project_number"})
	if err != nil {
		return err
	}
	for _, record := range toRecords(entries) {
		err = writer.Write([]string{record.Id, record.Date, record.Customer, record.ProjectNumber})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeTable(w io.Writer, entries []endeavor.Entry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Date", "ID", "Customer", "Project"})
	for _, entry := range entries {
		t.AppendRow(table.Row{
			entry.Date.Format("02/Jan/2006"),
			entry.ID,
			entry.Customer,
			entry.ProjectNumber,
		})
	}
	t.Render()
}
