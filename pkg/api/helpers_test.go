package api

import (
	"testing"
	"time"
)

func TestRecordStageAndStepInfo(t *testing.T) {
	start := time.Now()
	var stages []StageInfo

	stages = RecordStageAndStepInfo(stages, StagePreflight, CheckContextStep, start, start.Add(10*time.Millisecond))
	stages = RecordStageAndStepInfo(stages, StageBuild, RenderDockerfileStep, start.Add(10*time.Millisecond), start.Add(20*time.Millisecond))
	stages = RecordStageAndStepInfo(stages, StageBuild, BuildImageStep, start.Add(20*time.Millisecond), start.Add(120*time.Millisecond))

	if len(stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(stages))
	}
	build := stages[1]
	if build.Name != StageBuild {
		t.Fatalf("expected second stage %s, got %s", StageBuild, build.Name)
	}
	if len(build.Steps) != 2 {
		t.Fatalf("expected 2 steps in %s, got %d", StageBuild, len(build.Steps))
	}
	if build.DurationMilliseconds != 110 {
		t.Errorf("expected stage duration 110ms, got %d", build.DurationMilliseconds)
	}
	if build.Steps[1].DurationMilliseconds != 100 {
		t.Errorf("expected step duration 100ms, got %d", build.Steps[1].DurationMilliseconds)
	}
}

func TestPullPolicySet(t *testing.T) {
	var p PullPolicy
	if p.String() != string(DefaultPullPolicy) {
		t.Errorf("expected default %q, got %q", DefaultPullPolicy, p.String())
	}
	for _, v := range []string{"always", "never", "if-not-present"} {
		if err := p.Set(v); err != nil {
			t.Errorf("unexpected error for %q: %v", v, err)
		}
		if IsInvalidPullPolicy(p) {
			t.Errorf("%q reported as invalid", v)
		}
	}
	if err := p.Set("sometimes"); err == nil {
		t.Errorf("expected an error for an unknown policy")
	}
}

func TestEnvironmentListSet(t *testing.T) {
	tests := []struct {
		value   string
		invalid bool
	}{
		{value: "PIP_INDEX_URL=https://pypi.example.com/simple"},
		{value: "EMPTY="},
		{value: "=value", invalid: true},
		{value: "NOVALUE", invalid: true},
		{value: "A=1,B=2", invalid: true},
	}
	for _, tc := range tests {
		var e EnvironmentList
		err := e.Set(tc.value)
		if tc.invalid != (err != nil) {
			t.Errorf("%q: expected invalid=%v, got %v", tc.value, tc.invalid, err)
		}
	}

	var e EnvironmentList
	e.Set("A=1")
	e.Set("B=2")
	if e.String() != "A=1,B=2" {
		t.Errorf("unexpected string %q", e.String())
	}
	args := e.AsBuildArgs()
	if len(args) != 2 || *args["B"] != "2" {
		t.Errorf("unexpected build args %#v", args)
	}
}
