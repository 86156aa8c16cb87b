// Package scanner fetches uploaded objects and runs them through ClamAV.
package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/domain"
	pkglog "github.com/shubomifashakin/Temp-AWS-Infra/pkg/log"
)

// UnknownVirus is reported when the scanner flags a file without naming it.
const UnknownVirus = "Unknown"

// foundPattern takes the name after the last colon of a FOUND line, so
// colons inside the scanned path do not leak into it.
var foundPattern = regexp.MustCompile(`(?m)^.*:\s+(\S.*?)\s+FOUND\s*$`)

// Scanner inspects a local file.
type Scanner interface {
	Scan(ctx context.Context, path string) (domain.ScanResult, error)
}

// ScanError means the scanner process could not produce a verdict.
type ScanError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scan failed: %v", e.Err)
	}
	return fmt.Sprintf("scan failed with exit code %d: %s", e.ExitCode, strings.TrimSpace(e.Stderr))
}

func (e *ScanError) Unwrap() error { return e.Err }

// Runner runs a command to completion. A non-zero exit is reported through
// exitCode, err is reserved for commands that could not be run at all.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, exitCode int, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, int, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), nil
	}
	if err != nil {
		return stdout.Bytes(), stderr.Bytes(), -1, err
	}
	return stdout.Bytes(), stderr.Bytes(), 0, nil
}

// ClamConfig configures a ClamScanner.
type ClamConfig struct {
	Binary       string `mapstructure:"binary"`
	DatabasePath string `mapstructure:"database_path"`
}

// ClamScanner runs clamscan against a signature database.
type ClamScanner struct {
	cfg    ClamConfig
	runner Runner
}

// NewClamScanner creates a scanner. A nil runner uses ExecRunner.
func NewClamScanner(cfg ClamConfig, runner Runner) *ClamScanner {
	if cfg.Binary == "" {
		cfg.Binary = "clamscan"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &ClamScanner{cfg: cfg, runner: runner}
}

// Scan runs clamscan on path. Exit code 0 is clean, 1 is infected and
// anything else is a ScanError.
func (c *ClamScanner) Scan(ctx context.Context, path string) (domain.ScanResult, error) {
	l := pkglog.Ctx(ctx)

	stdout, stderr, code, err := c.runner.Run(ctx, c.cfg.Binary,
		"--no-summary",
		"--database="+c.cfg.DatabasePath,
		path,
	)
	if err != nil {
		return domain.ScanResult{}, &ScanError{ExitCode: code, Stderr: string(stderr), Err: err}
	}

	switch code {
	case 0:
		return domain.ScanResult{}, nil
	case 1:
		virus := UnknownVirus
		if m := foundPattern.FindSubmatch(stdout); m != nil {
			virus = string(m[1])
		}
		l.Warn().Str("virus", virus).Msg("infected file detected")
		return domain.ScanResult{Infected: true, Virus: virus}, nil
	default:
		l.Error().Int("exit_code", code).Str("stderr", string(stderr)).Msg("clamscan failed")
		return domain.ScanResult{}, &ScanError{ExitCode: code, Stderr: string(stderr)}
	}
}
