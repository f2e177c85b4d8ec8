package model

import (
	"testing"
	"time"
)

func TestEffectivePhase(t *testing.T) {
	closeAt := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	m := &Market{Phase: PhaseOpen, OpenUntil: closeAt}

	if got := m.EffectivePhase(closeAt.Add(-time.Second)); got != PhaseOpen {
		t.Fatalf("before close: %s", got)
	}
	// The boundary itself is closed.
	if got := m.EffectivePhase(closeAt); got != PhaseClosed {
		t.Fatalf("at close: %s", got)
	}
	if got := m.EffectivePhase(closeAt.Add(time.Hour)); got != PhaseClosed {
		t.Fatalf("after close: %s", got)
	}
	// Derivation never mutates the stored field.
	if m.Phase != PhaseOpen {
		t.Fatalf("stored phase mutated: %s", m.Phase)
	}

	// Only the open phase is time-derived.
	m.Phase = PhaseResolved
	if got := m.EffectivePhase(closeAt.Add(time.Hour)); got != PhaseResolved {
		t.Fatalf("resolved market: %s", got)
	}
}

func TestValidOption(t *testing.T) {
	m := &Market{Options: []string{"YES", "NO", "DRAW"}}
	for _, idx := range []int{0, 1, 2} {
		if !m.ValidOption(idx) {
			t.Fatalf("option %d should be valid", idx)
		}
	}
	for _, idx := range []int{-1, 3, 100} {
		if m.ValidOption(idx) {
			t.Fatalf("option %d should be invalid", idx)
		}
	}
}
