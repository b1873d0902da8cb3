package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/agentdash/agentdash/internal/jobmanager"
	"github.com/agentdash/agentdash/internal/sessionlog"
	"github.com/spf13/cobra"
)

// TODO: Inject version at build time.
const version = "0.0.1"

type cli struct {
	serverURL  string
	httpClient *http.Client
}

func newCLI() *cli {
	return &cli{httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (c *cli) rootCmd() *cobra.Command {
	command := &cobra.Command{
		Use:          "dashctl",
		Short:        "CLI for interacting with the dashserver job and session API",
		Version:      version,
		SilenceUsage: true,
	}

	command.AddCommand(
		c.submitCmd(),
		c.listCmd(),
		c.statusCmd(),
		c.cancelCmd(),
		c.sessionsCmd(),
	)

	command.CompletionOptions.HiddenDefaultCmd = true

	command.PersistentFlags().StringVar(
		&c.serverURL,
		"server-url",
		"http://localhost:8420",
		"Base URL of the dashserver",
	)

	return command
}

func (c *cli) submitCmd() *cobra.Command {
	var taskFile, configFile, workdir string

	command := &cobra.Command{
		Use:     "submit [flags]",
		Short:   "Submit a new agent worker job",
		Example: "  dashctl submit --task-file task.json --config-file config.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := os.ReadFile(taskFile)
			if err != nil {
				return err
			}

			config := []byte(`{}`)
			if configFile != "" {
				if config, err = os.ReadFile(configFile); err != nil {
					return err
				}
			}

			body, err := json.Marshal(map[string]any{
				"agent_worker_task": json.RawMessage(task),
				"config":            json.RawMessage(config),
				"workdir":           workdir,
			})
			if err != nil {
				return err
			}

			var record jobmanager.JobRecord
			if err := c.do(http.MethodPost, "/jobs", body, &record); err != nil {
				return err
			}

			cmd.OutOrStdout().Write([]byte(record.ID + "\n"))

			return nil
		},
	}

	command.Flags().StringVar(&taskFile, "task-file", "", "Path to the task JSON file")
	command.Flags().StringVar(&configFile, "config-file", "", "Path to the config JSON file")
	command.Flags().StringVar(&workdir, "workdir", "", "Working directory for the job")
	command.MarkFlagRequired("task-file")

	return command
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []jobmanager.JobRecord
			if err := c.do(http.MethodGet, "/jobs", nil, &records); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

			fmt.Fprintf(w, "ID\tSTATUS\tCREATED\tPID\t\n")
			for _, record := range records {
				fmt.Fprintf(
					w,
					"%s\t%s\t%s\t%d\t\n",
					record.ID,
					record.Status,
					record.CreatedAt.Format(time.RFC3339),
					record.PID,
				)
			}

			return w.Flush()
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status [flags] JOB_ID",
		Short:   "Query status of a job",
		Example: "  dashctl status 9302033c-f8f7-4b6e-9363-a7aa201cce1b",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var record jobmanager.JobRecord
			if err := c.do(http.MethodGet, "/jobs/"+args[0], nil, &record); err != nil {
				return err
			}

			return printJobRecord(cmd.OutOrStdout(), record)
		},
	}
}

func (c *cli) cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "cancel [flags] JOB_ID",
		Short:   "Cancel a running job",
		Example: "  dashctl cancel 9302033c-f8f7-4b6e-9363-a7aa201cce1b",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var record jobmanager.JobRecord
			if err := c.do(http.MethodDelete, "/jobs/"+args[0], nil, &record); err != nil {
				return err
			}

			return printJobRecord(cmd.OutOrStdout(), record)
		},
	}
}

func (c *cli) sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "sessions [flags] [SESSION_ID]",
		Short:   "List sessions, or show one session in detail",
		Example: "  dashctl sessions",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

			if len(args) == 1 {
				var record sessionlog.Record
				if err := c.do(http.MethodGet, "/sessions/"+args[0], nil, &record); err != nil {
					return err
				}

				fmt.Fprintf(w, "ID\tSTATUS\tSTART\tENTRIES\tERROR\t\n")
				fmt.Fprintf(
					w,
					"%s\t%s\t%s\t%d\t%s\t\n",
					record.ID,
					record.Status,
					record.StartTime.Format(time.RFC3339),
					len(record.Messages),
					record.Error,
				)

				return w.Flush()
			}

			var records []sessionlog.Record
			if err := c.do(http.MethodGet, "/sessions", nil, &records); err != nil {
				return err
			}

			fmt.Fprintf(w, "ID\tSTATUS\tSTART\tENTRIES\t\n")
			for _, record := range records {
				fmt.Fprintf(
					w,
					"%s\t%s\t%s\t%d\t\n",
					record.ID,
					record.Status,
					record.StartTime.Format(time.RFC3339),
					len(record.Messages),
				)
			}

			return w.Flush()
		},
	}
}

// do performs one API request, decoding a successful response into v and
// turning an error response body into an error.
func (c *cli) do(method, path string, body []byte, v any) error {
	req, err := http.NewRequest(method, c.serverURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var errBody struct {
			Error string `json:"error"`
		}

		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil &&
			errBody.Error != "" {
			return errors.New(errBody.Error)
		}

		return fmt.Errorf("server returned %s", resp.Status)
	}

	if v == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

func printJobRecord(out io.Writer, record jobmanager.JobRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "ID\tSTATUS\tPID\tERROR\t\n")
	fmt.Fprintf(
		w,
		"%s\t%s\t%d\t%s\t\n",
		record.ID,
		record.Status,
		record.PID,
		record.Error,
	)

	return w.Flush()
}
