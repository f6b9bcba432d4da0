package testutil

import "testing"

// Step is one named stage of a scenario.
type Step struct {
	Name string
	Run  func(t *testing.T)
}

func Given(name string, fn func(t *testing.T)) Step { return Step{Name: "given " + name, Run: fn} }
func When(name string, fn func(t *testing.T)) Step  { return Step{Name: "when " + name, Run: fn} }
func Then(name string, fn func(t *testing.T)) Step  { return Step{Name: "then " + name, Run: fn} }

// Scenario runs steps in order as subtests and stops at the first failing one,
// since later steps depend on the state earlier ones built.
func Scenario(t *testing.T, name string, steps ...Step) {
	t.Helper()
	t.Run(name, func(t *testing.T) {
		for _, step := range steps {
			if !t.Run(step.Name, step.Run) {
				return
			}
		}
	})
}
