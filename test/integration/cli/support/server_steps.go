package support

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/camkit/internal/device"
	"github.com/MeKo-Tech/camkit/internal/device/simulated"
)

// aCamkitServerWithASimulatedCamera starts a server in front of a simulated
// camera of the given tier.
func (testCtx *TestContext) aCamkitServerWithASimulatedCamera(tier string) error {
	return testCtx.startServer(tier, func(*simulated.Options) {})
}

// aCamkitServerWithALegacyOnlyCamera starts a server whose camera refuses the
// session API.
func (testCtx *TestContext) aCamkitServerWithALegacyOnlyCamera(tier string) error {
	return testCtx.startServer(tier, func(o *simulated.Options) { o.FailModern = true })
}

func (testCtx *TestContext) startServer(tier string, mutate func(*simulated.Options)) error {
	t, err := device.ParseTier(tier)
	if err != nil {
		return err
	}
	opts := simulated.Options{Tier: t}
	mutate(&opts)
	return testCtx.createTestHTTPServer(opts)
}

// iSendARequestTo sends a request without body.
func (testCtx *TestContext) iSendARequestTo(method, path string) error {
	return testCtx.sendRequest(method, path, "")
}

// iSendARequestToWithBody sends a JSON request.
func (testCtx *TestContext) iSendARequestToWithBody(method, path string, body *godog.DocString) error {
	return testCtx.sendRequest(method, path, body.Content)
}

func (testCtx *TestContext) sendRequest(method, path, body string) error {
	if testCtx.HTTPTestServer == nil {
		return errors.New("server is not running")
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, testCtx.GetServerURL()+path, reader)
	if err != nil {
		return err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing response body: %v\n", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(data)
	testCtx.LastHTTPHeaders = map[string]string{}
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

// theResponseStatusShouldBe verifies the HTTP status code.
func (testCtx *TestContext) theResponseStatusShouldBe(expected int) error {
	if testCtx.LastHTTPStatusCode != expected {
		return fmt.Errorf("expected status %d, got %d: %s",
			expected, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseFieldShouldBe compares a top-level field of the JSON response.
func (testCtx *TestContext) theResponseFieldShouldBe(field, expected string) error {
	return jsonFieldEquals(testCtx.LastHTTPResponse, field, expected)
}

// theResponseHeaderShouldBeSet checks that a header is present.
func (testCtx *TestContext) theResponseHeaderShouldBeSet(name string) error {
	if testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)] == "" {
		return fmt.Errorf("header %s is not set", name)
	}
	return nil
}

// theResponseShouldContain checks the raw response body.
func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain %q: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

// theCameraShouldHaveTakenHardwarePictures counts device captures.
func (testCtx *TestContext) theCameraShouldHaveTakenHardwarePictures(n int) error {
	last := testCtx.HTTPTestServer.Platform.Last()
	if last == nil {
		return errors.New("no camera was opened")
	}
	if got := last.Captures(); got != n {
		return fmt.Errorf("expected %d hardware captures, got %d", n, got)
	}
	return nil
}

// RegisterServerSteps registers the HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a camkit server with a simulated "([^"]*)" camera$`, testCtx.aCamkitServerWithASimulatedCamera)
	sc.Step(`^a camkit server with a legacy-only "([^"]*)" camera$`, testCtx.aCamkitServerWithALegacyOnlyCamera)
	sc.Step(`^I send a (GET|POST|PUT) request to "([^"]*)"$`, testCtx.iSendARequestTo)
	sc.Step(`^I send a (GET|POST|PUT) request to "([^"]*)" with body:$`, testCtx.iSendARequestToWithBody)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the response header "([^"]*)" should be set$`, testCtx.theResponseHeaderShouldBeSet)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the camera should have taken (\d+) hardware pictures?$`, testCtx.theCameraShouldHaveTakenHardwarePictures)
}
