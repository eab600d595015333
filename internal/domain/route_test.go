package domain

import (
	"errors"
	"testing"
)

func TestValidatePlan(t *testing.T) {
	task := func(ride string, phase Phase, order int) VanTask {
		return VanTask{VanID: "v1", RideID: ride, Phase: phase, Order: order}
	}

	tests := []struct {
		name    string
		tasks   []VanTask
		wantErr bool
	}{
		{"empty plan", nil, false},
		{"interleaved", []VanTask{
			task("A", PhasePickup, 1),
			task("B", PhasePickup, 2),
			task("A", PhaseDrop, 3),
			task("B", PhaseDrop, 4),
		}, false},
		{"gap in order", []VanTask{task("A", PhasePickup, 1), task("A", PhaseDrop, 3)}, true},
		{"starts at zero", []VanTask{task("A", PhasePickup, 0), task("A", PhaseDrop, 1)}, true},
		{"drop before pickup", []VanTask{task("A", PhaseDrop, 1), task("A", PhasePickup, 2)}, true},
		{"missing drop", []VanTask{task("A", PhasePickup, 1)}, true},
		{"duplicate pickup", []VanTask{
			task("A", PhasePickup, 1),
			task("A", PhasePickup, 2),
			task("A", PhaseDrop, 3),
		}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePlan(tc.tasks)
			if tc.wantErr && !errors.Is(err, ErrInvalidPlan) {
				t.Fatalf("expected ErrInvalidPlan, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
