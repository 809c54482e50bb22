package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tanq16/urlget/internal/engine"
	"github.com/tanq16/urlget/internal/output"
	"github.com/tanq16/urlget/internal/scheduler"
	"github.com/tanq16/urlget/internal/utils"
	"gopkg.in/yaml.v3"
)

// BatchEntry is one transfer of a batch file.
type BatchEntry struct {
	URL    string `yaml:"url"`
	Output string `yaml:"output,omitempty"`
	Upload string `yaml:"upload,omitempty"`
	Range  string `yaml:"range,omitempty"`
	User   string `yaml:"user,omitempty"`
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE] [OPTIONS]",
		Short: "Run several transfers listed in a YAML file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(args[0])
			if err != nil {
				output.PrintError(fmt.Sprintf("Error reading YAML file: %v", err))
				os.Exit(int(utils.CodeReadError))
			}
			jobs, err := parseBatch(data)
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(int(utils.CodeOf(err)))
			}
			workers := max(viper.GetInt("workers"), 1)
			output.PrintHeader(fmt.Sprintf("Running %d transfers on %d workers", len(jobs), workers))
			results := scheduler.Run(cmd.Context(), jobs, workers, performJob, output.NewManager(os.Stderr))
			for _, r := range results {
				if r.Err != nil {
					os.Exit(int(utils.CodeOf(r.Err)))
				}
			}
		},
	}
	cmd.Flags().IntP("workers", "w", 4, "Number of transfers to run in parallel")
	viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	return cmd
}

// parseBatch reads a YAML list of entries into jobs.
func parseBatch(data []byte) ([]utils.Job, error) {
	var entries []BatchEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, utils.WrapError(utils.CodeFailedInit, err, "Error parsing YAML file")
	}

	var jobs []utils.Job
	for i, entry := range entries {
		if entry.URL == "" {
			output.PrintWarning(fmt.Sprintf("Entry %d has no url, skipping", i))
			continue
		}
		job := utils.Job{
			ID:    uuid.New().String(),
			Label: entry.URL,
		}
		req := baseRequest(entry.URL)
		req.Range = entry.Range
		if entry.User != "" {
			req.UserPassword = entry.User
		}
		// the job board replaces per-transfer meters and messages
		req.Options.NoProgress = true
		req.ErrorOutput = io.Discard

		switch {
		case entry.Upload != "":
			if entry.Output != "" {
				return nil, utils.NewError(utils.CodeFailedInit, "entry %d: you can't both upload and output to a file", i)
			}
			job.InputPath = entry.Upload
			req.URL = utils.UploadURL(entry.URL, entry.Upload)
			req.Options.Upload = true
			job.Label = req.URL
		case entry.Output != "":
			job.OutputPath = entry.Output
		default:
			name, err := utils.RemoteFileName(entry.URL)
			if err != nil {
				return nil, utils.WrapError(utils.CodeOf(err), err, "entry %d", i)
			}
			job.OutputPath = name
		}
		job.Request = req
		jobs = append(jobs, job)
	}
	if len(jobs) == 0 {
		return nil, utils.NewError(utils.CodeFailedInit, "No valid jobs found in the batch file")
	}
	return jobs, nil
}

// performJob opens the local file of a job around one engine call.
func performJob(ctx context.Context, job utils.Job) (int64, error) {
	req := *job.Request
	if job.InputPath != "" {
		f, err := os.Open(job.InputPath)
		if err != nil {
			return 0, utils.WrapError(utils.CodeReadError, err, "Can't open '%s' for reading", job.InputPath)
		}
		defer f.Close()
		if st, err := f.Stat(); err == nil {
			req.InputSize = st.Size()
		}
		req.Input = f
	}
	if job.OutputPath != "" {
		path := job.OutputPath
		if _, err := os.Stat(path); err == nil {
			path = utils.RenewOutputPath(path)
		}
		f, err := os.Create(path)
		if err != nil {
			return 0, utils.WrapError(utils.CodeWriteError, err, "Can't open '%s' for writing", path)
		}
		defer f.Close()
		req.Output = f
	}
	return engine.Perform(ctx, &req)
}
