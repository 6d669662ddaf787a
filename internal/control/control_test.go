package control

import (
	"errors"
	"testing"
	"time"
)

func TestCheckIterationLimit(t *testing.T) {
	p := Policy{MaxIterations: 2}
	if err := CheckIterationLimit(p, 0); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := CheckIterationLimit(p, 1); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	err := CheckIterationLimit(p, 2)
	var le *LimitError
	if !errors.As(err, &le) {
		t.Fatalf("expected limit error, got %v", err)
	}
	if le.Type != LimitIterations || le.Value != 2 || le.Threshold != 2 {
		t.Fatalf("unexpected limit error: %+v", le)
	}
}

func TestCheckIterationLimit_ZeroCap(t *testing.T) {
	if err := CheckIterationLimit(Policy{}, 0); err == nil {
		t.Fatal("expected a zero cap to stop immediately")
	}
}

func TestCheckWallTime(t *testing.T) {
	p := Policy{MaxWallTime: 2 * time.Second}
	start := time.Unix(100, 0)
	if err := CheckWallTime(p, start, start.Add(1*time.Second)); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := CheckWallTime(p, start, start.Add(3*time.Second)); err == nil {
		t.Fatal("expected wall-time limit error")
	}
}

func TestCheckWallTime_Disabled(t *testing.T) {
	start := time.Unix(100, 0)
	if err := CheckWallTime(DefaultPolicy(), start, start.Add(time.Hour)); err != nil {
		t.Fatalf("expected disabled wall-time limit, got %v", err)
	}
}
