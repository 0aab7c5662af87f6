package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MeKo-Tech/camkit/cmd/camkit/cmd"
)

// aSimulatedCamera configures the simulated driver at tier.
func (testCtx *TestContext) aSimulatedCamera(tier string) error {
	if err := testCtx.setConfig("device", "driver", "simulated"); err != nil {
		return err
	}
	if err := testCtx.setConfig("device", "frame_interval_ms", "0"); err != nil {
		return err
	}
	return testCtx.setConfig("device", "tier", tier)
}

// theCameraRefusesTheModernAPI makes session-API opens fail as legacy-only.
func (testCtx *TestContext) theCameraRefusesTheModernAPI() error {
	return testCtx.setConfig("device", "fail_modern", "true")
}

// theCameraDeliversBlankPreviewFrames forces hardware captures.
func (testCtx *TestContext) theCameraDeliversBlankPreviewFrames() error {
	return testCtx.setConfig("device", "blank_frames", "1")
}

// theConfigSetsTo sets a section.key value in the config file.
func (testCtx *TestContext) theConfigSetsTo(key, value string) error {
	section, name, ok := strings.Cut(key, ".")
	if !ok {
		return fmt.Errorf("config key %q must be section.key", key)
	}
	return testCtx.setConfig(section, name, fmt.Sprintf("%q", value))
}

// resetFlags restores every flag to its default between executions.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// iRunCommand executes a camkit command line in process.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)
	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] != "camkit" {
		return fmt.Errorf("unsupported command %q", parts[0])
	}
	args := parts[1:]
	if testCtx.ConfigPath != "" {
		args = append(args, "--config", testCtx.ConfigPath)
	}

	root := cmd.GetRootCommand()
	resetFlags(root)
	defer resetFlags(root)

	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	testCtx.LastError = root.Execute()
	testCtx.LastOutput = buf.String()
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)
	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("command failed: %w\nOutput: %s", testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastError == nil {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

// theErrorShouldMention verifies the command error contains text.
func (testCtx *TestContext) theErrorShouldMention(text string) error {
	if testCtx.LastError == nil {
		return errors.New("expected an error but the command succeeded")
	}
	if !strings.Contains(testCtx.LastError.Error(), text) {
		return fmt.Errorf("error %q does not mention %q", testCtx.LastError, text)
	}
	return nil
}

// theOutputShouldBeValidJSON verifies the output is valid JSON.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(testCtx.LastOutput)), &v); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return nil
}

// theJSONFieldShouldBe compares a top-level field of a JSON object document.
func (testCtx *TestContext) theJSONFieldShouldBe(field, expected string) error {
	return jsonFieldEquals(testCtx.LastOutput, field, expected)
}

// theFileShouldExist checks for a file relative to the scenario temp dir.
func (testCtx *TestContext) theFileShouldExist(name string) error {
	path := testCtx.substituteCommandVariables(name)
	if !filepath.IsAbs(path) {
		path = filepath.Join(testCtx.TempDir, path)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file %s does not exist: %w", path, err)
	}
	return nil
}

// jsonFieldEquals decodes doc as an object and compares the string form of
// field with expected.
func jsonFieldEquals(doc, field, expected string) error {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(doc)), &obj); err != nil {
		return fmt.Errorf("not a JSON object: %w\n%s", err, doc)
	}
	v, ok := obj[field]
	if !ok {
		return fmt.Errorf("field %q missing in %s", field, doc)
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("field %q is %q, want %q", field, got, expected)
	}
	return nil
}

// RegisterCommonSteps registers the camera setup and CLI steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	// Camera setup
	sc.Step(`^a simulated "([^"]*)" camera$`, testCtx.aSimulatedCamera)
	sc.Step(`^the camera refuses the modern API$`, testCtx.theCameraRefusesTheModernAPI)
	sc.Step(`^the camera delivers blank preview frames$`, testCtx.theCameraDeliversBlankPreviewFrames)
	sc.Step(`^the config sets "([^"]*)" to "([^"]*)"$`, testCtx.theConfigSetsTo)

	// Command execution
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)

	// Output
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
}
