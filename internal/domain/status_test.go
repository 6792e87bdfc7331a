package domain

import "testing"

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from     TransactionStatus
		to       TransactionStatus
		delivery bool
		want     bool
	}{
		{StatusNew, StatusProcessing, false, true},
		{StatusNew, StatusCancelled, false, true},
		{StatusNew, StatusCompleted, false, false},
		{StatusProcessing, StatusCompleted, false, true},
		{StatusProcessing, StatusCancelled, false, true},
		{StatusProcessing, StatusNew, false, false},
		{StatusCompleted, StatusPickedUp, false, true},
		{StatusCompleted, StatusShipped, false, false},
		{StatusCompleted, StatusShipped, true, true},
		{StatusCompleted, StatusPickedUp, true, false},
		{StatusCompleted, StatusCancelled, false, false},
		{StatusShipped, StatusReceived, true, true},
		{StatusShipped, StatusCancelled, true, false},
		{StatusPickedUp, StatusNew, false, false},
		{StatusReceived, StatusShipped, true, false},
		{StatusCancelled, StatusNew, false, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to, tc.delivery); got != tc.want {
			t.Fatalf("%s -> %s (delivery=%v): expected %v, got %v",
				tc.from, tc.to, tc.delivery, tc.want, got)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []TransactionStatus{StatusPickedUp, StatusReceived, StatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
		if next := s.NextStatuses(true); len(next) != 0 {
			t.Fatalf("expected no successors for %s, got %v", s, next)
		}
	}

	active := []TransactionStatus{StatusNew, StatusProcessing, StatusCompleted, StatusShipped}
	for _, s := range active {
		if s.Terminal() {
			t.Fatalf("expected %s to be non-terminal", s)
		}
	}
}

func TestStatusValid(t *testing.T) {
	if !StatusShipped.Valid() {
		t.Fatalf("expected shipped to be valid")
	}
	if TransactionStatus("done").Valid() {
		t.Fatalf("expected unknown status to be invalid")
	}
}
