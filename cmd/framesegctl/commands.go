package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/Adda-Baaj/frameseg/internal/app"
	"github.com/Adda-Baaj/frameseg/pkg/segclient"
)

var errUsage = errors.New("usage")

const usage = `usage: framesegctl <command> [flags]

commands:
  scan --folder PATH               scan a folder for frame images
  frame-url --folder PATH --file NAME
                                   print the image URL of one frame
  segment --file PAYLOAD           submit a single-frame segmentation task
  segment-batch --file PAYLOAD     submit a multi-frame segmentation task
  analyze-video --file PAYLOAD     submit a video analysis task
  analyze-image --file PAYLOAD     submit an image analysis task
  status TASK_ID                   print the current task status
  watch TASK_ID... [--timeout 5m]  wait for tasks to finish and notify publishers
  tasks                            list journaled tasks

PAYLOAD is a YAML or JSON file forwarded to the backend unchanged.
`

type command func(ctx context.Context, c *app.Console, args []string, out io.Writer) error

var commands = map[string]command{
	"scan":          scanCmd,
	"frame-url":     frameURLCmd,
	"segment":       submitCmd(app.KindSegmentFrame),
	"segment-batch": submitCmd(app.KindSegmentFrames),
	"analyze-video": submitCmd(app.KindAnalyzeVideo),
	"analyze-image": submitCmd(app.KindAnalyzeImage),
	"status":        statusCmd,
	"watch":         watchCmd,
	"tasks":         tasksCmd,
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %v: %w", fs.Name(), err, errUsage)
	}
	return nil
}

func scanCmd(ctx context.Context, c *app.Console, args []string, out io.Writer) error {
	fs := newFlagSet("scan")
	folder := fs.String("folder", "", "folder to scan")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *folder == "" && fs.NArg() > 0 {
		*folder = fs.Arg(0)
	}
	body, err := c.Scan(ctx, *folder)
	if err != nil {
		return err
	}
	return writeRaw(out, body)
}

func frameURLCmd(_ context.Context, c *app.Console, args []string, out io.Writer) error {
	fs := newFlagSet("frame-url")
	folder := fs.String("folder", "", "frame folder")
	file := fs.String("file", "", "frame file name")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("frame-url: --file is required: %w", errUsage)
	}
	_, err := fmt.Fprintln(out, c.FrameURL(*folder, *file))
	return err
}

func submitCmd(kind app.Kind) command {
	return func(ctx context.Context, c *app.Console, args []string, out io.Writer) error {
		fs := newFlagSet(string(kind))
		file := fs.StringP("file", "f", "", "payload file (YAML or JSON)")
		if err := parse(fs, args); err != nil {
			return err
		}
		if *file == "" {
			return fmt.Errorf("%s: --file is required: %w", kind, errUsage)
		}
		payload, err := app.LoadPayload(*file)
		if err != nil {
			return err
		}
		body, err := c.Submit(ctx, kind, payload)
		if err != nil {
			return err
		}
		return writeRaw(out, body)
	}
}

func taskIDArg(fs *pflag.FlagSet, args []string) (string, error) {
	if err := parse(fs, args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s: expected exactly one task id: %w", fs.Name(), errUsage)
	}
	return fs.Arg(0), nil
}

func statusCmd(ctx context.Context, c *app.Console, args []string, out io.Writer) error {
	id, err := taskIDArg(newFlagSet("status"), args)
	if err != nil {
		return err
	}
	body, err := c.Status(ctx, id)
	if err != nil {
		return err
	}
	return writeRaw(out, body)
}

func watchCmd(ctx context.Context, c *app.Console, args []string, out io.Writer) error {
	fs := newFlagSet("watch")
	timeout := fs.Duration("timeout", 0, "give up after this long (0 waits until interrupted)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("watch: expected at least one task id: %w", errUsage)
	}
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	if fs.NArg() == 1 {
		state, err := c.Watch(ctx, fs.Arg(0))
		if state.Status != "" {
			if werr := writeJSON(out, state); werr != nil {
				return errors.Join(err, werr)
			}
		}
		return err
	}

	results, err := c.WatchAll(ctx, fs.Args())
	states := make([]segclient.TaskState, 0, len(results))
	for _, r := range results {
		if r.State.Status != "" {
			states = append(states, r.State)
		}
	}
	if werr := writeJSON(out, states); werr != nil {
		return errors.Join(err, werr)
	}
	return err
}

func tasksCmd(_ context.Context, c *app.Console, args []string, out io.Writer) error {
	if err := parse(newFlagSet("tasks"), args); err != nil {
		return err
	}
	tasks, err := c.Tasks()
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if _, err := fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", t.ID, t.Kind, t.Status, t.SubmittedAt.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return nil
}

func writeRaw(out io.Writer, body json.RawMessage) error {
	if _, err := out.Write(body); err != nil {
		return err
	}
	_, err := fmt.Fprintln(out)
	return err
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
