//go:build integration

package integration

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	PortalURL  string
	Username   string
	Password   string
	PortalPath string
	Verbose    bool
}

// LoadTestConfig loads configuration from environment variables
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		PortalURL:  os.Getenv("PORTAL_TEST_URL"),
		Username:   os.Getenv("PORTAL_TEST_USERNAME"),
		Password:   os.Getenv("PORTAL_TEST_PASSWORD"),
		PortalPath: getPortalPath(),
		Verbose:    os.Getenv("PORTAL_VERBOSE") == "true",
	}
}

// getPortalPath determines the path to the portal binary
func getPortalPath() string {
	if path := os.Getenv("PORTAL_BINARY_PATH"); path != "" {
		return path
	}

	candidates := []string{
		"../../portal",
		"./portal",
		"../portal",
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "portal"
}

// SkipIfMissingConfig skips test if required config is missing
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if config.PortalURL == "" || config.Username == "" || config.Password == "" {
		t.Skip("PORTAL_TEST_URL, PORTAL_TEST_USERNAME or PORTAL_TEST_PASSWORD not set, skipping integration test")
	}

	if _, err := exec.LookPath(config.PortalPath); err != nil {
		t.Skipf("portal binary not found at %s, skipping integration test", config.PortalPath)
	}
}

// CommandRunner runs portal commands against a private config file.
type CommandRunner struct {
	config     *TestConfig
	configFile string
	t          *testing.T
}

// NewCommandRunner creates a new command runner
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	t.Helper()

	return &CommandRunner{
		config:     config,
		configFile: filepath.Join(t.TempDir(), "config.yml"),
		t:          t,
	}
}

// Run executes a portal command and returns output
func (runner *CommandRunner) Run(args ...string) (stdout, stderr string, err error) {
	return runner.RunWithInput("", args...)
}

// RunWithInput executes a portal command with stdin input
func (runner *CommandRunner) RunWithInput(input string, args ...string) (stdout, stderr string, err error) {
	args = append([]string{"--config", runner.configFile}, args...)

	cmd := exec.Command(runner.config.PortalPath, args...) //nolint:gosec
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	cmd.Stdin = strings.NewReader(input)

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.PortalPath, strings.Join(args, " "))
	}

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}

// Login stores a session for the test portal in the runner's config file.
func (runner *CommandRunner) Login() error {
	_, stderr, err := runner.RunWithInput(runner.config.Password+"\n",
		"login", runner.config.PortalURL, "--username", runner.config.Username)
	if err != nil {
		return fmt.Errorf("failed to login: %s", stderr)
	}

	return nil
}

// GenerateTestName creates a unique test resource name
func GenerateTestName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// CleanupResource attempts to delete a test resource
func (runner *CommandRunner) CleanupResource(resourceType, id string) {
	var args []string

	switch resourceType {
	case "group":
		args = []string{"groups", "delete", id}
	case "item":
		args = []string{"items", "delete", id}
	case "folder":
		args = []string{"folders", "delete", id}
	default:
		runner.t.Logf("Unknown resource type for cleanup: %s", resourceType)

		return
	}

	stdout, stderr, err := runner.Run(args...)
	if err != nil && runner.config.Verbose {
		runner.t.Logf("Cleanup warning for %s %s: %s\nStderr: %s", resourceType, id, stdout, stderr)
	}
}

// AssertJSONOutput verifies command output is valid JSON
func AssertJSONOutput(t *testing.T, output string) {
	t.Helper()

	output = strings.TrimSpace(output)
	if !strings.HasPrefix(output, "{") && !strings.HasPrefix(output, "[") {
		t.Errorf("Output does not appear to be JSON: %s", output)
	}
}
