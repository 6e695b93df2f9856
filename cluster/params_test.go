package cluster

import "testing"

func TestParamsValidateRejectsExcessiveMaxUes(t *testing.T) {
	p := DefaultParams()
	p.MaxUes = 10001
	if err := p.Validate(); err == nil {
		t.Fatalf("expected MaxUes above limit to fail validation")
	}
}

func TestParamsValidateAcceptsDefault(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("expected default params to validate, got %v", err)
	}
}

func TestNewAgentPanicsOnInvalidParams(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected NewAgent to panic on invalid params")
		}
	}()
	p := DefaultParams()
	p.MaxUes = 20000
	NewAgent(Config{Params: p})
}
