// Package githubactions provides glue for running inside the GitHub Actions
// runtime: workspace resolution and the key=value output files downstream
// workflow steps read.
package githubactions

import (
	"fmt"
	"os"

	"ucb-agent/src/logger"
)

// Output keys produced by the orchestrator.
const (
	KeyArtifactFilename = "ARTIFACT_FILENAME"
	KeyArtifactFilepath = "ARTIFACT_FILEPATH"
	KeyShareURL         = "SHARE_URL"
)

// Workspace returns the GITHUB_WORKSPACE directory. Artifact downloads must
// land inside it or downstream steps cannot see them.
func Workspace() (string, error) {
	workspace := os.Getenv("GITHUB_WORKSPACE")
	if workspace == "" {
		return "", fmt.Errorf("GITHUB_WORKSPACE env variable is empty; expecting a directory")
	}
	return workspace, nil
}

// Outputs appends key=value pairs to the GITHUB_OUTPUT and GITHUB_ENV files.
// Outside of Actions (local testing) it falls back to files in the working
// directory so the values can still be inspected.
type Outputs struct {
	outputPath string
	envPath    string
	log        logger.Logger
}

// NewOutputs resolves the output file paths from the environment.
func NewOutputs(log logger.Logger) *Outputs {
	outputPath := os.Getenv("GITHUB_OUTPUT")
	if outputPath == "" {
		outputPath = "GITHUB_OUTPUT.txt"
	}
	envPath := os.Getenv("GITHUB_ENV")
	if envPath == "" {
		envPath = "GITHUB_ENV.txt"
	}
	return &Outputs{outputPath: outputPath, envPath: envPath, log: log}
}

// Set writes key=value to both the output and env files.
func (o *Outputs) Set(key, value string) error {
	if err := appendLine(o.outputPath, key, value); err != nil {
		return fmt.Errorf("writing GITHUB_OUTPUT: %w", err)
	}
	o.log.Info("Wrote GITHUB_OUTPUT var %s=%s", key, value)

	if err := appendLine(o.envPath, key, value); err != nil {
		return fmt.Errorf("writing GITHUB_ENV: %w", err)
	}
	o.log.Info("Wrote GITHUB_ENV var %s=%s", key, value)
	return nil
}

// Verify writes a probe value so a run fails early when the output files are
// not writable, rather than after a long build.
func (o *Outputs) Verify() error {
	return o.Set("github_output_test_key", "test_value")
}

func appendLine(path, key, value string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s=%s\n", key, value); err != nil {
		return err
	}
	return nil
}
