package cli_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/camkit/test/integration/cli/support"
)

// TestFeatures runs every scenario under features/. The CLI steps drive the
// process-wide cobra root and viper instance, so scenarios run one at a time.
func TestFeatures(t *testing.T) {
	format := os.Getenv("GODOG_FORMAT")
	if format == "" {
		format = "pretty"
	}

	suite := godog.TestSuite{
		Name:                "camkit",
		ScenarioInitializer: initializeScenario,
		Options: &godog.Options{
			Format:      format,
			Tags:        os.Getenv("GODOG_TAGS"),
			Paths:       []string{"features"},
			Strict:      true,
			Concurrency: 1,
			TestingT:    t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("camkit feature suite failed")
	}
}

// initializeScenario gives each scenario its own workspace, config file and
// optional server.
func initializeScenario(sc *godog.ScenarioContext) {
	tc, err := support.NewTestContext()
	sc.Before(func(ctx context.Context, s *godog.Scenario) (context.Context, error) {
		if err != nil {
			return ctx, fmt.Errorf("scenario %q: %w", s.Name, err)
		}
		return ctx, nil
	})
	if err != nil {
		return
	}

	tc.RegisterCommonSteps(sc)
	tc.RegisterServerSteps(sc)

	sc.After(func(ctx context.Context, s *godog.Scenario, scenarioErr error) (context.Context, error) {
		if cleanupErr := tc.Cleanup(); cleanupErr != nil && scenarioErr == nil {
			return ctx, fmt.Errorf("cleanup after %q: %w", s.Name, cleanupErr)
		}
		return ctx, nil
	})
}
