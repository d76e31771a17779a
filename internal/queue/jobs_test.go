package queue

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewSweepTask(t *testing.T) {
	task, err := NewSweepTask(SweepPayload{GraceSeconds: 90, DryRun: true})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Type() != SweepBlobsTask {
		t.Fatalf("unexpected type %s", task.Type())
	}
	var got SweepPayload
	if err := json.Unmarshal(task.Payload(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Grace(time.Hour) != 90*time.Second || !got.DryRun {
		t.Fatalf("unexpected payload %+v", got)
	}
	if (SweepPayload{}).Grace(time.Hour) != time.Hour {
		t.Fatalf("expected default grace")
	}
}
