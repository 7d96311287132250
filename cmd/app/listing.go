package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/starford/noteshare/internal/client"
	"github.com/starford/noteshare/internal/models"
	"github.com/starford/noteshare/internal/paging"
)

type noteListing = paging.Controller[client.NoteDTO, models.NoteSummary]

func newClient(ctx context.Context, cmd *cli.Command) (*client.Client, error) {
	c := client.New(cmd.String("url"), cmd.String("token"))
	if cmd.String("token") == "" && cmd.String("email") != "" {
		if _, err := c.SignIn(ctx, cmd.String("email"), cmd.String("password")); err != nil {
			return nil, fmt.Errorf("sign in: %w", err)
		}
	}
	return c, nil
}

func browse(ctx context.Context, cmd *cli.Command) error {
	c, err := newClient(ctx, cmd)
	if err != nil {
		return err
	}
	return runListing(ctx, c.SubjectSource(), cmd.String("subject"))
}

func search(ctx context.Context, cmd *cli.Command) error {
	c, err := newClient(ctx, cmd)
	if err != nil {
		return err
	}
	return runListing(ctx, c.SearchSource(), cmd.String("query"))
}

func starred(ctx context.Context, cmd *cli.Command) error {
	c, err := newClient(ctx, cmd)
	if err != nil {
		return err
	}
	return runListing(ctx, c.StarredSource(), "")
}

func runListing(ctx context.Context, src paging.Source[client.NoteDTO], filter string) error {
	ctrl := paging.NewController[client.NoteDTO, models.NoteSummary](src, client.Summary, filter)
	defer ctrl.Close()
	return page(ctx, ctrl, os.Stdin, os.Stdout)
}

// page prints the listing one page at a time, loading the next page or
// retrying a failed load each time the user presses Enter. "q" quits.
func page(ctx context.Context, ctrl *noteListing, in io.Reader, out io.Writer) error {
	lines := bufio.NewScanner(in)
	printed := 0

	snap, err := ctrl.LoadFirst(ctx)
	for {
		if err != nil {
			return err
		}
		printed = printNotes(out, snap.Items, printed)

		var prompt string
		switch {
		case snap.State.IsError():
			fmt.Fprintf(out, "load failed: %s\n", snap.Err)
			prompt = "[Enter] retry, q to quit: "
		case snap.Exhausted:
			if len(snap.Items) == 0 {
				fmt.Fprintln(out, "no notes")
			} else {
				fmt.Fprintf(out, "-- end of list, %d notes --\n", len(snap.Items))
			}
			return nil
		default:
			prompt = "[Enter] more, q to quit: "
		}

		fmt.Fprint(out, prompt)
		if !lines.Scan() || strings.EqualFold(strings.TrimSpace(lines.Text()), "q") {
			fmt.Fprintln(out)
			return lines.Err()
		}

		if snap.State.IsError() {
			snap, err = ctrl.Retry(ctx)
		} else {
			snap, err = ctrl.LoadNext(ctx)
		}
	}
}

// printNotes writes items[from:] as a table and returns the new count.
func printNotes(out io.Writer, items []models.NoteSummary, from int) int {
	if from >= len(items) {
		return from
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for i, n := range items[from:] {
		fmt.Fprintf(tw, "%3d\t%s\t%s\t★ %d\t%s\n", from+i+1, n.Name, n.Subject, n.Stars, n.ID)
	}
	_ = tw.Flush()
	return len(items)
}
