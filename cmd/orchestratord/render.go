package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/boshu2/orchestratord/internal/formatter"
	"github.com/boshu2/orchestratord/internal/state"
)

// renderSession prints sess as a table or as formatted JSON depending on
// the --output flag. feature_list.json is the only machine-facing export
// format, so there is no yaml branch.
func renderSession(cmd *cobra.Command, sess *state.Session) error {
	if sess == nil {
		fmt.Fprintln(os.Stdout, "no session initialized for this project directory")
		return nil
	}

	if outputFlag == "json" {
		data, err := marshalJSON(sess)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	}

	fmt.Fprintf(os.Stdout, "Session: %s\nStatus: %s\nTask: %s\n\n", sess.ProjectDir, sess.Status, sess.TaskDescription)

	t := formatter.NewTable(os.Stdout,
		formatter.Column{Header: "ID"},
		formatter.Column{Header: "STATUS"},
		formatter.Column{Header: "ATTEMPTS"},
		formatter.Column{Header: "DEPENDS_ON"},
		formatter.Column{Header: "WORKER"},
		formatter.Column{Header: "LAST_ERROR", MaxWidth: 60},
	)
	for _, f := range sess.Features {
		t.Row(
			f.ID,
			string(f.Status),
			fmt.Sprintf("%d/%d", f.Attempts, f.MaxRetries),
			joinOrDash(f.DependsOn),
			dashIfEmpty(f.WorkerID),
			dashIfEmpty(f.LastError),
		)
	}
	return t.Flush()
}

func renderFeature(f *state.Feature) error {
	if outputFlag == "json" {
		data, err := marshalJSON(f)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	}
	fmt.Fprintf(os.Stdout, "ID:          %s\n", f.ID)
	fmt.Fprintf(os.Stdout, "Description: %s\n", f.Description)
	fmt.Fprintf(os.Stdout, "Status:      %s\n", f.Status)
	fmt.Fprintf(os.Stdout, "Attempts:    %d/%d\n", f.Attempts, f.MaxRetries)
	fmt.Fprintf(os.Stdout, "Depends on:  %s\n", joinOrDash(f.DependsOn))
	fmt.Fprintf(os.Stdout, "Worker:      %s\n", dashIfEmpty(f.WorkerID))
	if f.LastError != "" {
		fmt.Fprintf(os.Stdout, "Last error:  %s\n", f.LastError)
	}
	if f.Notes != "" {
		fmt.Fprintf(os.Stdout, "Notes:       %s\n", f.Notes)
	}
	return nil
}

func joinOrDash(ss []string) string {
	if len(ss) == 0 {
		return "-"
	}
	out := ss[0]
	for _, s := range ss[1:] {
		out += "," + s
	}
	return out
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
