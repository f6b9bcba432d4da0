package controls

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// TestContext is the part of the scenario context control steps use.
type TestContext interface {
	POST(ctx context.Context, path string, body any) error
	GET(ctx context.Context, path string) error
	Status() int
	Body() []byte
	Field(name string) (any, error)
	OwnerGateID() string
	RequestID() string
	SetRequestID(id string)
}

// RegisterSteps registers steps that create and follow Controls.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &controlSteps{tc: tc}

	ctx.Step(`^I request dataset "([^"]*)" on platform "([^"]*)" from the owner gate$`, steps.requestOwnDataset)
	ctx.Step(`^I request dataset "([^"]*)" on platform "([^"]*)" from gate "([^"]*)"$`, steps.requestDataset)
	ctx.Step(`^I search for identifier "([^"]*)"$`, steps.searchIdentifier)
	ctx.Step(`^I search for identifier "([^"]*)" in countries "([^"]*)"$`, steps.searchIdentifierIn)
	ctx.Step(`^I POST raw "([^"]*)" to "([^"]*)"$`, steps.postRaw)
	ctx.Step(`^I save the request id$`, steps.saveRequestID)
	ctx.Step(`^I fetch the control result$`, steps.fetchResult)
	ctx.Step(`^the control should leave PENDING within (\d+) seconds$`, steps.eventuallySettled)
	ctx.Step(`^the control status should be one of "([^"]*)"$`, steps.statusOneOf)
	ctx.Step(`^I send the note "([^"]*)"$`, steps.sendNote)
	ctx.Step(`^I fetch the result of request "([^"]*)"$`, steps.fetchResultOf)
}

type controlSteps struct {
	tc TestContext
}

func (s *controlSteps) requestOwnDataset(ctx context.Context, datasetID, platformID string) error {
	return s.requestDataset(ctx, datasetID, platformID, s.tc.OwnerGateID())
}

func (s *controlSteps) requestDataset(ctx context.Context, datasetID, platformID, gateID string) error {
	return s.tc.POST(ctx, "/v1/controls/uil", map[string]any{
		"gateId":     gateID,
		"platformId": platformID,
		"datasetId":  datasetID,
		"subsetIds":  []string{"full"},
	})
}

func (s *controlSteps) searchIdentifier(ctx context.Context, identifier string) error {
	return s.tc.POST(ctx, "/v1/controls/identifiers", map[string]any{
		"identifier": identifier,
	})
}

func (s *controlSteps) searchIdentifierIn(ctx context.Context, identifier, countries string) error {
	return s.tc.POST(ctx, "/v1/controls/identifiers", map[string]any{
		"identifier":        identifier,
		"eftiGateIndicator": strings.Split(countries, ","),
	})
}

func (s *controlSteps) postRaw(ctx context.Context, body, path string) error {
	return s.tc.POST(ctx, path, body)
}

func (s *controlSteps) saveRequestID(context.Context) error {
	v, err := s.tc.Field("requestId")
	if err != nil {
		return err
	}
	id, ok := v.(string)
	if !ok || id == "" {
		return fmt.Errorf("requestId missing from %s", s.tc.Body())
	}
	s.tc.SetRequestID(id)
	return nil
}

func (s *controlSteps) fetchResult(ctx context.Context) error {
	return s.fetchResultOf(ctx, s.tc.RequestID())
}

func (s *controlSteps) fetchResultOf(ctx context.Context, requestID string) error {
	return s.tc.GET(ctx, "/v1/controls/"+url.PathEscape(requestID))
}

func (s *controlSteps) eventuallySettled(ctx context.Context, seconds int) error {
	deadline := time.Now().Add(time.Duration(seconds) * time.Second)
	for {
		if err := s.fetchResult(ctx); err != nil {
			return err
		}
		status, err := s.tc.Field("status")
		if err != nil {
			return err
		}
		if status != "PENDING" {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("control %s still PENDING after %ds", s.tc.RequestID(), seconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (s *controlSteps) statusOneOf(_ context.Context, allowed string) error {
	v, err := s.tc.Field("status")
	if err != nil {
		return err
	}
	got, _ := v.(string)
	for _, want := range strings.Split(allowed, ",") {
		if strings.TrimSpace(want) == got {
			return nil
		}
	}
	return fmt.Errorf("status %q not in %q", got, allowed)
}

func (s *controlSteps) sendNote(ctx context.Context, message string) error {
	return s.tc.POST(ctx, "/v1/controls/"+url.PathEscape(s.tc.RequestID())+"/notes", map[string]any{
		"message": message,
	})
}
