package services

import (
	"context"
	"testing"
)

func TestContextRoundTrips(t *testing.T) {
	ctx := context.Background()

	if _, ok := RecordIDFromContext(ctx); ok {
		t.Fatal("empty context should not carry a record id")
	}

	ctx = WithRecordID(ctx, 42)
	ctx = WithStage(ctx, "processing_external")
	ctx = WithRunID(ctx, "run-1")
	ctx = WithRequestID(ctx, "corr-1")

	if id, ok := RecordIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("record id = %d, %v", id, ok)
	}
	if stage, ok := StageFromContext(ctx); !ok || stage != "processing_external" {
		t.Fatalf("stage = %q, %v", stage, ok)
	}
	if runID, ok := RunIDFromContext(ctx); !ok || runID != "run-1" {
		t.Fatalf("run id = %q, %v", runID, ok)
	}
	if rid, ok := RequestIDFromContext(ctx); !ok || rid != "corr-1" {
		t.Fatalf("request id = %q, %v", rid, ok)
	}
}

func TestEmptyValuesNotStored(t *testing.T) {
	ctx := WithStage(context.Background(), "")
	if _, ok := StageFromContext(ctx); ok {
		t.Fatal("empty stage should not be stored")
	}
	ctx = WithRunID(context.Background(), "")
	if _, ok := RunIDFromContext(ctx); ok {
		t.Fatal("empty run id should not be stored")
	}
}
