package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/RaffaelBild/gta-benchmark/internal/anonymizer"
	"github.com/RaffaelBild/gta-benchmark/pkg/errors"
)

// Config describes how to start the external engine.
type Config struct {
	Command string            `json:"command" mapstructure:"command"`
	Args    []string          `json:"args" mapstructure:"args"`
	Env     map[string]string `json:"env" mapstructure:"env"`
	WorkDir string            `json:"work_dir" mapstructure:"work_dir"`
}

// Engine runs one external process per anonymization. The request is written
// to the process's stdin as JSON and the response is read from its stdout.
type Engine struct {
	config *Config
	logger *logrus.Logger
}

// NewEngine creates a subprocess engine
func NewEngine(config *Config, logger *logrus.Logger) (*Engine, error) {
	if config == nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "engine config cannot be nil")
	}
	if config.Command == "" {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "engine command is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{config: config, logger: logger}, nil
}

// Anonymize implements anonymizer.Engine
func (e *Engine) Anonymize(ctx context.Context, data *anonymizer.Data, config anonymizer.Config) (*anonymizer.Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	req, err := anonymizer.NewRequest(uuid.NewString(), data, config)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeInvalidArgument, errors.CodeInvalidConfig, "failed to build engine request")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeEngineFailed, "failed to encode engine request")
	}

	cmd := exec.CommandContext(ctx, e.config.Command, e.config.Args...)
	cmd.Dir = e.config.WorkDir
	cmd.Env = e.environ()
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger := e.logger.WithFields(logrus.Fields{
		"request_id":     req.ID,
		"privacy_models": config.PrivacyModelNames(),
		"quality_model":  config.QualityModel.Name,
	})
	logger.Debug("Starting engine")

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.ErrEngineFailed.Wrap(err).WithDetails(tail(stderr.String(), 2048))
	}

	var resp anonymizer.Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeEngine, errors.CodeMalformedResult, "failed to decode engine response").
			WithDetails(tail(stdout.String(), 512))
	}
	if resp.Error != "" {
		return nil, errors.ErrEngineFailed.WithDetails(resp.Error)
	}
	if resp.ID != req.ID {
		return nil, errors.NewEngineError(errors.CodeMalformedResult, "response does not match request").
			WithDetails(fmt.Sprintf("sent %s, got %s", req.ID, resp.ID))
	}

	logger.WithField("duration", time.Since(start)).Debug("Engine finished")

	return resp.Result(), nil
}

func (e *Engine) environ() []string {
	env := os.Environ()
	for k, v := range e.config.Env {
		env = append(env, k+"="+v)
	}
	return env
}

// tail keeps the last n bytes of s, where the useful part of a stack trace is.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
