package domain

import "testing"

func TestRideTransitions(t *testing.T) {
	tests := []struct {
		from RideStatus
		to   RideStatus
		want bool
	}{
		{RidePending, RideAssigned, true},
		{RidePending, RidePickedUp, false},
		{RideAssigned, RideAssigned, true},
		{RideAssigned, RideEnRoute, true},
		{RideEnRoute, RidePickedUp, true},
		{RidePickedUp, RideDropped, true},
		{RidePickedUp, RideCanceled, false},
		{RideDropped, RideAssigned, false},
		{RideCanceled, RidePending, false},
	}

	for _, tc := range tests {
		r := &Ride{Status: tc.from}
		if got := r.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestRideIsActive(t *testing.T) {
	active := map[RideStatus]bool{
		RidePending:  false,
		RideAssigned: true,
		RideEnRoute:  true,
		RidePickedUp: true,
		RideDropped:  false,
		RideCanceled: false,
	}
	for st, want := range active {
		r := &Ride{Status: st}
		if got := r.IsActive(); got != want {
			t.Errorf("IsActive(%s) = %v, want %v", st, got, want)
		}
	}
}

func TestParseRideStatus(t *testing.T) {
	st, err := ParseRideStatus(" picked_up ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st != RidePickedUp {
		t.Fatalf("status = %q, want %q", st, RidePickedUp)
	}

	if _, err := ParseRideStatus("teleported"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestRideValidate(t *testing.T) {
	r := &Ride{
		RideID:         "r1",
		PassengerCount: 1,
		Pickup:         Coordinates{Lat: 64.85, Lon: -147.70},
		Drop:           Coordinates{Lat: 64.80, Lon: -147.60},
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.PassengerCount = 0
	if err := r.Validate(); err == nil {
		t.Fatalf("expected error for zero passengers")
	}

	r.PassengerCount = 1
	r.Drop.Lat = 123
	if err := r.Validate(); err == nil {
		t.Fatalf("expected error for invalid drop latitude")
	}
}
