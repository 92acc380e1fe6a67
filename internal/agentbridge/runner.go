// Package agentbridge launches agent processes and turns their exit into a typed
// result or a typed failure.
package agentbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/ctxutil"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

// Args are the inputs of one invocation. Flags and JSON become command line flags;
// Files are written to a private temp dir and passed by path, so large bodies
// never travel through argv.
type Args struct {
	Flags map[string]string
	Files map[string]string
	JSON  map[string]any
}

type Result struct {
	Agent    string
	Data     map[string]any
	Raw      json.RawMessage
	Stdout   string
	Stderr   string
	Source   string // "pipe" or "stdout"
	Duration time.Duration
}

// Decode unmarshals the raw result into out.
func (r *Result) Decode(out any) error {
	if r == nil || len(r.Raw) == 0 {
		return ErrNoResult
	}
	return json.Unmarshal(r.Raw, out)
}

// AgentRunner is what jobs depend on.
type AgentRunner interface {
	RunAgent(ctx context.Context, agentType string, args Args) (*Result, error)
}

type Runner struct {
	log *logger.Logger
	cfg Config
}

func NewRunner(log *logger.Logger, cfg Config) *Runner {
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = 8 << 20
	}
	return &Runner{log: log.With("component", "AgentBridge"), cfg: cfg}
}

var flagName = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

func (r *Runner) RunAgent(ctx context.Context, agentType string, args Args) (res *Result, err error) {
	if !flagName.MatchString(agentType) {
		return nil, apperr.Validation("agent_type", fmt.Sprintf("invalid %q", agentType))
	}
	argv, err := buildFlags(args)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("seoflow/agentbridge").Start(ctx, "agent."+agentType)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(apperr.KindOf(err)))
		}
		span.End()
	}()

	tmp, err := os.MkdirTemp(r.cfg.TempDir, "seoflow-agent-*")
	if err != nil {
		return nil, fmt.Errorf("agent temp dir: %w", err)
	}
	// Runs after Wait below has returned, on every path.
	defer func() {
		if rmErr := os.RemoveAll(tmp); rmErr != nil {
			r.log.Warn("Removing agent temp dir failed", "dir", tmp, "error", rmErr)
		}
	}()

	fileFlags, err := writeFiles(tmp, args.Files)
	if err != nil {
		return nil, err
	}
	argv = append(argv, fileFlags...)

	timeout := r.cfg.timeoutFor(agentType)
	span.SetAttributes(attribute.String("agent.type", agentType), attribute.Int64("agent.timeout_ms", timeout.Milliseconds()))
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	base := r.cfg.argvFor(agentType)
	cmd := exec.CommandContext(runCtx, base[0], append(base[1:], argv...)...)
	cmd.WaitDelay = 2 * time.Second
	cmd.Env = r.env(ctx, agentType)

	resultR, resultW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("result pipe: %w", err)
	}
	defer resultR.Close()
	cmd.ExtraFiles = []*os.File{resultW}

	// Both streams keep their tail: the result line is the last thing on stdout.
	stdout := &tailBuffer{max: r.cfg.MaxOutputBytes}
	stderr := &tailBuffer{max: 64 << 10}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	log := r.log.With("agent", agentType)
	started := time.Now()
	if err := cmd.Start(); err != nil {
		_ = resultW.Close()
		return nil, &apperr.AgentProcessError{Agent: agentType, ExitCode: -1, Err: err}
	}
	_ = resultW.Close()

	pipeData := make(chan []byte, 1)
	go func() {
		b, _ := io.ReadAll(io.LimitReader(resultR, int64(r.cfg.MaxOutputBytes)))
		pipeData <- b
	}()

	waitErr := cmd.Wait()
	elapsed := time.Since(started)

	var piped []byte
	select {
	case piped = <-pipeData:
	case <-time.After(2 * time.Second):
		// a grandchild still holds the write end
		_ = resultR.Close()
	}

	if waitErr != nil {
		perr := &apperr.AgentProcessError{Agent: agentType, ExitCode: -1, Stderr: stderr.String(), Err: waitErr}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			perr.ExitCode = exitErr.ExitCode()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			perr.TimedOut = true
		} else if ctx.Err() != nil {
			perr.Err = ctx.Err()
		}
		log.Warn("Agent process failed",
			"exit_code", perr.ExitCode, "timed_out", perr.TimedOut, "duration_ms", elapsed.Milliseconds(), "stderr", tail(perr.Stderr, 500))
		return nil, perr
	}

	res = &Result{Agent: agentType, Stdout: stdout.String(), Stderr: stderr.String(), Duration: elapsed}
	if data, raw, perr := parseObject(piped); perr == nil {
		res.Data, res.Raw, res.Source = data, raw, "pipe"
	} else if data, raw, perr := ParseTrailingJSON(res.Stdout); perr == nil {
		res.Data, res.Raw, res.Source = data, raw, "stdout"
	} else {
		log.Warn("Agent exited cleanly without a parseable result", "error", perr, "duration_ms", elapsed.Milliseconds())
		return nil, &apperr.ProtocolError{Agent: agentType, RawOutput: res.Stdout, Err: perr}
	}
	log.Debug("Agent process finished", "duration_ms", elapsed.Milliseconds(), "source", res.Source)
	return res, nil
}

func (r *Runner) env(ctx context.Context, agentType string) []string {
	env := append(os.Environ(), ResultFDEnv+"=3", "SEOFLOW_AGENT="+agentType)
	env = append(env, ctxutil.GetTraceData(ctx).Env()...)
	if spec, ok := r.cfg.Agents[agentType]; ok {
		keys := make([]string, 0, len(spec.Env))
		for k := range spec.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			env = append(env, k+"="+spec.Env[k])
		}
	}
	return env
}

func buildFlags(args Args) ([]string, error) {
	var out []string
	for _, k := range sortedKeys(args.Flags) {
		if !flagName.MatchString(k) {
			return nil, apperr.Validation("flag", fmt.Sprintf("invalid name %q", k))
		}
		out = append(out, "--"+k+"="+args.Flags[k])
	}
	for _, k := range sortedKeys(args.JSON) {
		if !flagName.MatchString(k) {
			return nil, apperr.Validation("flag", fmt.Sprintf("invalid name %q", k))
		}
		raw, err := json.Marshal(args.JSON[k])
		if err != nil {
			return nil, apperr.Validation(k, err.Error())
		}
		out = append(out, "--"+k+"="+string(raw))
	}
	for k := range args.Files {
		if !flagName.MatchString(k) {
			return nil, apperr.Validation("flag", fmt.Sprintf("invalid name %q", k))
		}
	}
	return out, nil
}

func writeFiles(dir string, files map[string]string) ([]string, error) {
	var out []string
	for i, k := range sortedKeys(files) {
		p := filepath.Join(dir, strconv.Itoa(i)+"-"+k+".txt")
		if err := os.WriteFile(p, []byte(files[k]), 0o600); err != nil {
			return nil, fmt.Errorf("write agent input %s: %w", k, err)
		}
		out = append(out, "--"+k+"="+p)
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > b.max {
		p = p[len(p)-b.max:]
	}
	b.buf.Write(p)
	if over := b.buf.Len() - b.max; over > 0 {
		b.buf.Next(over)
	}
	return n, nil
}

func (b *tailBuffer) String() string { return b.buf.String() }
