package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cuongbtq/hotel-scout/internal/domain"
	"golang.org/x/time/rate"
)

const (
	// maxStderrTail bounds how much process stderr ends up in an error message
	maxStderrTail = 512

	// waitDelay bounds how long Wait blocks on grandchildren holding stderr open after a kill
	waitDelay = 5 * time.Second
)

// SubprocessConfig describes how to launch one source's scraper process
type SubprocessConfig struct {
	Source  domain.Source
	Command string
	Args    []string
	Dir     string
	Env     []string
	Params  ParamsFunc
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

// Subprocess runs a scraper as an external process. Filters are passed as
// "-a name=value" pairs and results are read back from the "-o" output file,
// which is removed once consumed.
type Subprocess struct {
	source  domain.Source
	command string
	args    []string
	dir     string
	env     []string
	params  ParamsFunc
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewSubprocess creates a subprocess connector
func NewSubprocess(cfg SubprocessConfig) (*Subprocess, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("connector %s: command is required", cfg.Source)
	}
	if cfg.Params == nil {
		params, err := ParamsFor(cfg.Source)
		if err != nil {
			return nil, err
		}
		cfg.Params = params
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Subprocess{
		source:  cfg.Source,
		command: cfg.Command,
		args:    cfg.Args,
		dir:     cfg.Dir,
		env:     cfg.Env,
		params:  cfg.Params,
		limiter: cfg.Limiter,
		logger:  logger.With(slog.String("source", string(cfg.Source))),
	}, nil
}

// Source returns the source this connector scrapes
func (s *Subprocess) Source() domain.Source {
	return s.source
}

// Fetch launches the process, waits for it and decodes its output file
func (s *Subprocess) Fetch(ctx context.Context, q Query) ([]RawRecord, error) {
	if q.OutputPath == "" {
		return nil, newError(s.source, ErrLaunch, errors.New("no output path"))
	}
	defer s.removeOutput(q.OutputPath)

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, newError(s.source, ErrTimeout, fmt.Errorf("waiting for launch slot: %w", err))
		}
	}

	args := s.buildArgs(q)
	cmd := exec.CommandContext(ctx, s.command, args...)
	cmd.Dir = s.dir
	if len(s.env) > 0 {
		cmd.Env = append(os.Environ(), s.env...)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	s.logger.Info("Running connector",
		slog.String("job_id", q.JobID.String()),
		slog.String("command", s.command),
		slog.String("args", strings.Join(args, " ")),
	)

	if err := cmd.Start(); err != nil {
		return nil, newError(s.source, ErrLaunch, err)
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, newError(s.source, ErrTimeout, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, newError(s.source, ErrOutput,
				fmt.Errorf("exited with code %d: %s", exitErr.ExitCode(), tail(stderr.String())))
		}
		return nil, newError(s.source, ErrOutput, err)
	}

	records, err := ReadRecords(q.OutputPath, s.logger)
	if err != nil {
		return nil, newError(s.source, ErrOutput, err)
	}

	s.logger.Info("Connector finished",
		slog.String("job_id", q.JobID.String()),
		slog.Int("records", len(records)),
	)

	return records, nil
}

func (s *Subprocess) buildArgs(q Query) []string {
	args := make([]string, 0, len(s.args)+16)
	args = append(args, s.args...)
	for _, p := range s.params(q) {
		args = append(args, "-a", p.Name+"="+p.Value)
	}
	return append(args, "-o", q.OutputPath)
}

func (s *Subprocess) removeOutput(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("Failed to remove connector output",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// ReadRecords decodes a result batch: a JSON array of records. An empty file
// is an empty batch. Null entries are ignored and entries that do not decode
// as a record are skipped with a warning.
func ReadRecords(path string, logger *slog.Logger) ([]RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []RawRecord{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}

	records := make([]RawRecord, 0, len(items))
	for i, item := range items {
		if bytes.Equal(bytes.TrimSpace(item), []byte("null")) {
			continue
		}
		var rec RawRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			if logger != nil {
				logger.Warn("Skipping undecodable record",
					slog.Int("index", i),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxStderrTail {
		return s
	}
	return "..." + s[len(s)-maxStderrTail:]
}
