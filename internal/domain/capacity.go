package domain

// One pickup or drop in a candidate stop sequence.
type StopEvent struct {
	RideID string
	Phase  Phase
	Pax    int
}

// CapacityOK walks the sequence and reports whether the running occupancy
// stays within capacity at every stop.
//
// A drop removes the passenger count recorded at that ride's pickup. A drop
// whose pickup is not in the sequence removes a single passenger.
func CapacityOK(sequence []StopEvent, capacity int) bool {
	aboard := make(map[string]int, len(sequence)/2)
	occupancy := 0

	for _, ev := range sequence {
		switch ev.Phase {
		case PhasePickup:
			aboard[ev.RideID] = ev.Pax
			occupancy += ev.Pax
		case PhaseDrop:
			pax, ok := aboard[ev.RideID]
			if !ok {
				pax = 1
			}
			occupancy -= pax
		}

		if occupancy > capacity {
			return false
		}
	}

	return true
}
