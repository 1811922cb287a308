package tca

import (
	"math"
	"testing"
)

func TestKyleModelLinearInParticipation(t *testing.T) {
	m := KyleModel{Lambda: 2.0}
	r := m.Calculate(10, 100, 0.2)
	// total = 2.0 * (10/100) * 10000 = 2000bps
	if !approxEq(r.TotalBps, 2000, 1e-9) {
		t.Fatalf("expected 2000bps, got %v", r.TotalBps)
	}
	if r.PermanentBps != r.TotalBps || r.TemporaryBps != 0 {
		t.Fatalf("expected kyle impact fully permanent, got %+v", r)
	}
}

func TestKyleModelZeroADVGuard(t *testing.T) {
	m := KyleModel{Lambda: 2.0}
	r := m.Calculate(10, 0, 0.2)
	if r.TotalBps != 0 {
		t.Fatalf("expected zero impact when adv<=0, got %+v", r)
	}
}

func TestAlmgrenChrissModelSplitsTemporaryAndPermanent(t *testing.T) {
	m := AlmgrenChrissModel{Gamma: 1.0, Eta: 1.0, EtaExp: 1.0, VolScale: 1.0}
	r := m.Calculate(10, 100, 0.2)
	// participation = 0.1; permanent = 1.0*0.1*10000 = 1000
	// temporary = 1.0*0.1^1*1.0*0.2*10000 = 200
	if !approxEq(r.PermanentBps, 1000, 1e-9) {
		t.Fatalf("expected permanent 1000bps, got %v", r.PermanentBps)
	}
	if !approxEq(r.TemporaryBps, 200, 1e-9) {
		t.Fatalf("expected temporary 200bps, got %v", r.TemporaryBps)
	}
	if !approxEq(r.TotalBps, r.TemporaryBps+r.PermanentBps, 1e-9) {
		t.Fatalf("expected total to equal sum of components, got %+v", r)
	}
}

func TestSquareRootModelMatchesClosedForm(t *testing.T) {
	m := SquareRootModel{Y: 0.3}
	r := m.Calculate(25, 100, 0.5)
	want := 0.3 * 0.5 * math.Sqrt(25.0/100.0) * 10000
	if !approxEq(r.TotalBps, want, 1e-9) {
		t.Fatalf("expected %v, got %v", want, r.TotalBps)
	}
	if r.TemporaryBps != r.TotalBps || r.PermanentBps != 0 {
		t.Fatalf("expected square-root impact fully temporary, got %+v", r)
	}
}

func TestSquareRootModelGuardsInvalidInputs(t *testing.T) {
	m := SquareRootModel{Y: 0.3}
	if r := m.Calculate(10, 0, 0.2); r.TotalBps != 0 {
		t.Fatalf("expected zero impact for adv<=0, got %+v", r)
	}
	if r := m.Calculate(-1, 100, 0.2); r.TotalBps != 0 {
		t.Fatalf("expected zero impact for negative quantity, got %+v", r)
	}
}
