package audithook_test

import (
	"context"
	"errors"
	"testing"

	audithook "github.com/flowcap/settlenet/audit_hook"
)

func recordingRecorder(events *[]*audithook.AuditEvent) audithook.RecorderFunc {
	return func(_ context.Context, event *audithook.AuditEvent) error {
		*events = append(*events, event)
		return nil
	}
}

func TestOnInvoiceSubmittedRecordsSuccessEvent(t *testing.T) {
	var events []*audithook.AuditEvent
	ext := audithook.New(recordingRecorder(&events))

	if err := ext.OnInvoiceSubmitted(context.Background(), nil); err != nil {
		t.Fatalf("OnInvoiceSubmitted: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Action != audithook.ActionInvoiceSubmitted {
		t.Fatalf("expected action %q, got %q", audithook.ActionInvoiceSubmitted, events[0].Action)
	}
	if events[0].Outcome != audithook.OutcomeSuccess {
		t.Fatalf("expected outcome %q, got %q", audithook.OutcomeSuccess, events[0].Outcome)
	}
}

func TestOnInvoiceRejectedRecordsFailureWithReason(t *testing.T) {
	var events []*audithook.AuditEvent
	ext := audithook.New(recordingRecorder(&events))

	if err := ext.OnInvoiceRejected(context.Background(), nil, "insufficient credit"); err != nil {
		t.Fatalf("OnInvoiceRejected: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	evt := events[0]
	if evt.Outcome != audithook.OutcomeFailure {
		t.Fatalf("expected outcome %q, got %q", audithook.OutcomeFailure, evt.Outcome)
	}
	if evt.Metadata["reject_reason"] != "insufficient credit" {
		t.Fatalf("expected reject_reason metadata, got %v", evt.Metadata)
	}
}

func TestWithEnabledActionsFiltersHooks(t *testing.T) {
	var events []*audithook.AuditEvent
	ext := audithook.New(recordingRecorder(&events),
		audithook.WithEnabledActions(audithook.ActionInvoiceSubmitted))

	if err := ext.OnInvoiceSubmitted(context.Background(), nil); err != nil {
		t.Fatalf("OnInvoiceSubmitted: %v", err)
	}
	if err := ext.OnInvoiceAccepted(context.Background(), nil); err != nil {
		t.Fatalf("OnInvoiceAccepted: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("expected only the enabled action to record, got %d events", len(events))
	}
	if events[0].Action != audithook.ActionInvoiceSubmitted {
		t.Fatalf("expected recorded action %q, got %q", audithook.ActionInvoiceSubmitted, events[0].Action)
	}
}

func TestWithDisabledActionsSkipsOnlyNamedActions(t *testing.T) {
	var events []*audithook.AuditEvent
	ext := audithook.New(recordingRecorder(&events),
		audithook.WithDisabledActions(audithook.ActionLedgerEntryAppended))

	if err := ext.OnInvoiceSubmitted(context.Background(), nil); err != nil {
		t.Fatalf("OnInvoiceSubmitted: %v", err)
	}
	if err := ext.OnLedgerEntryAppended(context.Background(), nil); err != nil {
		t.Fatalf("OnLedgerEntryAppended: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("expected 1 event (OnLedgerEntryAppended never records regardless), got %d", len(events))
	}
}

func TestOnLedgerEntryAppendedNeverRecords(t *testing.T) {
	var events []*audithook.AuditEvent
	ext := audithook.New(recordingRecorder(&events))

	if err := ext.OnLedgerEntryAppended(context.Background(), nil); err != nil {
		t.Fatalf("OnLedgerEntryAppended: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected OnLedgerEntryAppended to be a no-op, got %d events", len(events))
	}
}

func TestRecorderFailureDoesNotPropagate(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("recorder unavailable")
	}))

	if err := ext.OnInvoiceSubmitted(context.Background(), nil); err != nil {
		t.Fatalf("expected hook to swallow recorder errors, got %v", err)
	}
}
