package e2e

import (
	"github.com/cucumber/godog"

	"efti-gate/e2e/steps/common"
	"efti-gate/e2e/steps/controls"
)

// RegisterSteps registers all step definitions from modular packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	controls.RegisterSteps(ctx, tc)
}
