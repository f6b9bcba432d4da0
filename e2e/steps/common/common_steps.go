package common

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext is the part of the scenario context generic steps use.
type TestContext interface {
	GET(ctx context.Context, path string) error
	Status() int
	Body() []byte
	Field(name string) (any, error)
}

// RegisterSteps registers health and response assertion steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the gate is running$`, steps.gateIsRunning)
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response status should be one of "([^"]*)"$`, steps.statusOneOf)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response field "([^"]*)" should not be empty$`, steps.fieldNotEmpty)
	ctx.Step(`^the error description should be "([^"]*)"$`, steps.errorDescriptionShouldBe)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) gateIsRunning(ctx context.Context) error {
	if err := s.tc.GET(ctx, "/health"); err != nil {
		return fmt.Errorf("gate unreachable: %w", err)
	}
	return s.statusShouldBe(ctx, 200)
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(ctx, path)
}

func (s *commonSteps) statusShouldBe(_ context.Context, want int) error {
	if got := s.tc.Status(); got != want {
		return fmt.Errorf("expected status %d, got %d (body %s)", want, got, s.tc.Body())
	}
	return nil
}

func (s *commonSteps) statusOneOf(_ context.Context, allowed string) error {
	got := strconv.Itoa(s.tc.Status())
	for _, want := range strings.Split(allowed, ",") {
		if strings.TrimSpace(want) == got {
			return nil
		}
	}
	return fmt.Errorf("status %s not in %q (body %s)", got, allowed, s.tc.Body())
}

func (s *commonSteps) fieldShouldBe(_ context.Context, name, want string) error {
	v, err := s.tc.Field(name)
	if err != nil {
		return err
	}
	if got := render(v); got != want {
		return fmt.Errorf("expected %s=%q, got %q", name, want, got)
	}
	return nil
}

func (s *commonSteps) fieldNotEmpty(_ context.Context, name string) error {
	v, err := s.tc.Field(name)
	if err != nil {
		return err
	}
	if render(v) == "" {
		return fmt.Errorf("field %s is empty", name)
	}
	return nil
}

func (s *commonSteps) errorDescriptionShouldBe(ctx context.Context, want string) error {
	return s.fieldShouldBe(ctx, "error_description", want)
}

func render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
