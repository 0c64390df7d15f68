// Package main implements taskctl, a command line client for the taskforge
// API. It talks to a running server over HTTP and prints JSON responses.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/taskforge/taskforge/internal/client"
	"github.com/taskforge/taskforge/internal/domain"
)

const defaultServerURL = "http://localhost:8080/api"

const usage = `Usage: taskctl [-server URL] <command> [flags]

Commands:
  list      List tasks with optional paging and filters
  get       Show a single task by ID
  create    Create a task
  update    Update fields of a task
  delete    Delete a task by ID
  counters  Show per-status task counts

Run 'taskctl <command> -h' for command flags.
`

func main() {
	flags := flag.NewFlagSet("taskctl", flag.ExitOnError)
	server := flags.String("server", defaultServerURL, "Base URL of the task API")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	args := flags.Args()
	if len(args) == 0 {
		flags.Usage()
		os.Exit(2)
	}

	api, err := client.NewClient(*server, nil)
	if err != nil {
		fatalf("invalid server URL: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "list":
		err = runList(ctx, api, args[1:])
	case "get":
		err = runGet(ctx, api, args[1:])
	case "create":
		err = runCreate(ctx, api, args[1:])
	case "update":
		err = runUpdate(ctx, api, args[1:])
	case "delete":
		err = runDelete(ctx, api, args[1:])
	case "counters":
		err = runCounters(ctx, api)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		flags.Usage()
		os.Exit(2)
	}

	if err != nil {
		fatalf("%v", err)
	}
}

func runList(ctx context.Context, api *client.Client, args []string) error {
	flags := flag.NewFlagSet("list", flag.ExitOnError)
	page := flags.Int("page", 1, "Page number")
	limit := flags.Int("limit", 10, "Page size")
	status := flags.String("status", "", "Filter by status")
	dateFrom := flags.String("date-from", "", "Due date lower bound (RFC 3339 or YYYY-MM-DD)")
	dateTo := flags.String("date-to", "", "Due date upper bound (RFC 3339 or YYYY-MM-DD)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	opts := client.ListOptions{Page: *page, Limit: *limit}
	if *status != "" {
		parsed, err := domain.ParseTaskStatus(*status)
		if err != nil {
			return fmt.Errorf("invalid status %q", *status)
		}
		opts.Status = &parsed
	}
	if *dateFrom != "" {
		from, err := parseDateFlag(*dateFrom)
		if err != nil {
			return fmt.Errorf("invalid -date-from: %w", err)
		}
		opts.DateFrom = &from
	}
	if *dateTo != "" {
		to, err := parseDateFlag(*dateTo)
		if err != nil {
			return fmt.Errorf("invalid -date-to: %w", err)
		}
		opts.DateTo = &to
	}

	result, err := api.List(ctx, opts)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runGet(ctx context.Context, api *client.Client, args []string) error {
	flags := flag.NewFlagSet("get", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}
	id, err := parseIDArg(flags.Args())
	if err != nil {
		return err
	}

	task, err := api.Get(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(task)
}

func runCreate(ctx context.Context, api *client.Client, args []string) error {
	flags := flag.NewFlagSet("create", flag.ExitOnError)
	title := flags.String("title", "", "Task title (required)")
	description := flags.String("description", "", "Task description")
	status := flags.String("status", "", "Initial status (defaults to pending)")
	dueDate := flags.String("due", "", "Due date (RFC 3339 or YYYY-MM-DD)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *title == "" {
		return fmt.Errorf("-title is required")
	}

	req := client.CreateTaskRequest{Title: *title, Status: *status}
	if *description != "" {
		req.Description = description
	}
	if *dueDate != "" {
		req.DueDate = dueDate
	}

	task, err := api.Create(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(task)
}

func runUpdate(ctx context.Context, api *client.Client, args []string) error {
	flags := flag.NewFlagSet("update", flag.ExitOnError)
	title := flags.String("title", "", "New title")
	description := flags.String("description", "", "New description")
	clearDescription := flags.Bool("clear-description", false, "Remove the description")
	status := flags.String("status", "", "New status")
	dueDate := flags.String("due", "", "New due date (RFC 3339 or YYYY-MM-DD)")
	clearDue := flags.Bool("clear-due", false, "Remove the due date")
	if err := flags.Parse(args); err != nil {
		return err
	}
	id, err := parseIDArg(flags.Args())
	if err != nil {
		return err
	}

	// Cleared fields are sent as explicit JSON null, which the server
	// distinguishes from an absent field.
	body := map[string]any{}
	if *title != "" {
		body["title"] = *title
	}
	if *clearDescription {
		body["description"] = nil
	} else if *description != "" {
		body["description"] = *description
	}
	if *status != "" {
		body["status"] = *status
	}
	if *clearDue {
		body["dueDate"] = nil
	} else if *dueDate != "" {
		body["dueDate"] = *dueDate
	}
	if len(body) == 0 {
		return fmt.Errorf("no fields to update")
	}

	task, err := api.Update(ctx, id, body)
	if err != nil {
		return err
	}
	return printJSON(task)
}

func runDelete(ctx context.Context, api *client.Client, args []string) error {
	flags := flag.NewFlagSet("delete", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}
	id, err := parseIDArg(flags.Args())
	if err != nil {
		return err
	}

	if err := api.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Println("deleted", id)
	return nil
}

func runCounters(ctx context.Context, api *client.Client) error {
	counters, err := api.Counters(ctx)
	if err != nil {
		return err
	}
	return printJSON(counters)
}

func parseIDArg(args []string) (uuid.UUID, error) {
	if len(args) != 1 {
		return uuid.Nil, fmt.Errorf("expected exactly one task ID argument")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid task ID %q", args[0])
	}
	return id, nil
}

func parseDateFlag(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("expected RFC 3339 or YYYY-MM-DD, got %q", value)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
