package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/karavel-ai/compass/internal/approval"
	"github.com/karavel-ai/compass/internal/classifier"
	"github.com/karavel-ai/compass/internal/cost"
	"github.com/karavel-ai/compass/internal/dispatch"
	"github.com/karavel-ai/compass/internal/state"
	"github.com/karavel-ai/compass/pkg/models"
)

// stubGenerative is a canned generative tier for driving the slow path
// without a live API client.
type stubGenerative struct {
	result *classifier.Classification
	err    error
}

func (s *stubGenerative) Classify(_ context.Context, _ string, _ []classifier.CapabilityProfile) (*classifier.Classification, error) {
	return s.result, s.err
}

// failingStore errors on every write to verify persistence stays non-fatal.
type failingStore struct{}

func (failingStore) Close() error   { return nil }
func (failingStore) Migrate() error { return nil }
func (failingStore) Upsert(*models.WorkflowRecord) error {
	return errors.New("disk full")
}
func (failingStore) GetByCorrelationID(string) (*models.WorkflowRecord, error) {
	return nil, errors.New("disk full")
}
func (failingStore) ListByOrganization(string, int) ([]*models.WorkflowRecord, error) {
	return nil, errors.New("disk full")
}
func (failingStore) AggregateStats(string) (*state.Stats, error) {
	return nil, errors.New("disk full")
}

// recordingStore captures the status of every record passed to Upsert so
// tests can assert the persisted status sequence.
type recordingStore struct {
	statuses []models.Status
}

func (s *recordingStore) Close() error   { return nil }
func (s *recordingStore) Migrate() error { return nil }
func (s *recordingStore) Upsert(rec *models.WorkflowRecord) error {
	s.statuses = append(s.statuses, rec.Status)
	return nil
}
func (s *recordingStore) GetByCorrelationID(string) (*models.WorkflowRecord, error) {
	return nil, nil
}
func (s *recordingStore) ListByOrganization(string, int) ([]*models.WorkflowRecord, error) {
	return nil, nil
}
func (s *recordingStore) AggregateStats(string) (*state.Stats, error) {
	return &state.Stats{}, nil
}

func newTestEngine(t *testing.T, gen classifier.GenerativeClassifier, policy approval.Policy, opts ...Option) *Engine {
	t.Helper()
	return New(
		classifier.New(gen),
		cost.NewEstimator(),
		approval.NewGate(policy),
		dispatch.NewDefaultDispatcher(),
		opts...,
	)
}

func openTestStore(t *testing.T) *state.DB {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "engine-test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunSourcingQueryEndToEnd(t *testing.T) {
	gen := &stubGenerative{result: &classifier.Classification{
		Intent:              models.IntentProductSourcing,
		Confidence:          0.92,
		SuggestedCapability: models.CapabilityChinaSource,
		Reasoning:           "query asks to locate a supplier on 1688",
		ExtractedParams:     map[string]any{"product": "phone cases"},
	}}
	eng := newTestEngine(t, gen, approval.PolicyAuto)

	rec, err := eng.Run(context.Background(), "Find me a supplier on 1688 for phone cases", "org-1", "corr-sourcing")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if rec.Status != models.StatusCompleted {
		t.Fatalf("Status = %s, want completed (error: %q)", rec.Status, rec.Error)
	}
	if rec.Intent != models.IntentProductSourcing {
		t.Errorf("Intent = %s, want product_sourcing", rec.Intent)
	}
	if rec.CurrentCapability != models.CapabilityChinaSource {
		t.Errorf("CurrentCapability = %s, want china_source", rec.CurrentCapability)
	}
	if len(rec.CapabilityHistory) != 1 || rec.CapabilityHistory[0] != models.CapabilityChinaSource {
		t.Errorf("CapabilityHistory = %v, want [china_source]", rec.CapabilityHistory)
	}
	if !rec.RequiresApproval {
		t.Error("RequiresApproval = false, want true for china_source")
	}
	if !rec.Approved || rec.ApprovalFeedback != approval.AutoApprovalFeedback {
		t.Errorf("approval = (%v, %q), want auto-approved", rec.Approved, rec.ApprovalFeedback)
	}
	if rec.FinalOutput == "" {
		t.Error("FinalOutput is empty, want sourcing summary")
	}
	if rec.ActualCost != rec.EstimatedCost {
		t.Errorf("ActualCost = %v, want EstimatedCost %v", rec.ActualCost, rec.EstimatedCost)
	}
	if rec.CompletedAt == nil {
		t.Error("CompletedAt is nil, want set on terminal record")
	}
	if _, ok := rec.Results[string(models.CapabilityChinaSource)]; !ok {
		t.Errorf("Results missing china_source entry, got keys %v", mapKeys(rec.Results))
	}
}

func TestRunGibberishFallsBackToNavigator(t *testing.T) {
	gen := &stubGenerative{err: errors.New("model overloaded")}
	eng := newTestEngine(t, gen, approval.PolicyAuto)

	rec, err := eng.Run(context.Background(), "asdf qwerty zxcv", "org-1", "corr-gibberish")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if rec.Status != models.StatusCompleted {
		t.Fatalf("Status = %s, want completed", rec.Status)
	}
	if rec.Intent != models.IntentUnknown {
		t.Errorf("Intent = %s, want unknown", rec.Intent)
	}
	if rec.CurrentCapability != models.CapabilityNavigator {
		t.Errorf("CurrentCapability = %s, want navigator", rec.CurrentCapability)
	}
	if rec.RequiresApproval {
		t.Error("RequiresApproval = true, want false for navigator")
	}
	if len(rec.CapabilityHistory) != 1 || rec.CapabilityHistory[0] != models.CapabilityNavigator {
		t.Errorf("CapabilityHistory = %v, want [navigator]", rec.CapabilityHistory)
	}
}

func TestRunRejectionTerminatesWithoutExecution(t *testing.T) {
	gen := &stubGenerative{result: &classifier.Classification{
		Intent:              models.IntentDocumentGeneration,
		Confidence:          0.9,
		SuggestedCapability: models.CapabilityDocGenerator,
		Reasoning:           "query asks for a contract draft",
	}}
	gate := approval.NewGate(approval.PolicyInteractive)
	eng := New(classifier.New(gen), cost.NewEstimator(), gate, dispatch.NewDefaultDispatcher())

	type runResult struct {
		rec *models.WorkflowRecord
		err error
	}
	done := make(chan runResult, 1)
	go func() {
		rec, err := eng.Run(context.Background(), "Draft a service contract for my client", "org-1", "corr-rejected")
		done <- runResult{rec, err}
	}()

	select {
	case req := <-gate.RequestCh():
		gate.SubmitDecision(approval.Decision{
			CorrelationID: req.CorrelationID,
			Approved:      false,
			Feedback:      "too expensive this month",
		})
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for approval request")
	}

	res := <-done
	if res.err != nil {
		t.Fatalf("Run returned error: %v", res.err)
	}
	rec := res.rec

	if rec.Status != models.StatusFailed {
		t.Fatalf("Status = %s, want failed", rec.Status)
	}
	if !strings.Contains(rec.Error, "too expensive this month") {
		t.Errorf("Error = %q, want reviewer feedback included", rec.Error)
	}
	if len(rec.CapabilityHistory) != 0 {
		t.Errorf("CapabilityHistory = %v, want empty (no executor ran)", rec.CapabilityHistory)
	}
	if rec.Approved {
		t.Error("Approved = true after rejection")
	}
	if rec.CompletedAt == nil {
		t.Error("CompletedAt is nil, want set on terminal record")
	}
}

func TestRunExecutorFailureIsCaptured(t *testing.T) {
	d := dispatch.NewDispatcher()
	if err := d.Register(models.CapabilityNavigator, dispatch.ExecutorFunc(func(context.Context, dispatch.Task) (models.ExecutionResult, error) {
		return models.ExecutionResult{}, errors.New("downstream API unreachable")
	})); err != nil {
		t.Fatalf("register executor: %v", err)
	}
	eng := New(classifier.New(nil), cost.NewEstimator(), approval.NewGate(approval.PolicyAuto), d)

	rec, err := eng.Run(context.Background(), "zzzz yyyy xxxx", "org-1", "corr-boom")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if rec.Status != models.StatusFailed {
		t.Fatalf("Status = %s, want failed", rec.Status)
	}
	if rec.Error != "downstream API unreachable" {
		t.Errorf("Error = %q, want executor message without prefix", rec.Error)
	}
	if len(rec.CapabilityHistory) != 1 || rec.CapabilityHistory[0] != models.CapabilityNavigator {
		t.Errorf("CapabilityHistory = %v, want failed attempt recorded", rec.CapabilityHistory)
	}
	if rec.FinalOutput != "" {
		t.Errorf("FinalOutput = %q, want empty on failure", rec.FinalOutput)
	}
}

func TestRunExecutorPanicIsCaptured(t *testing.T) {
	d := dispatch.NewDispatcher()
	if err := d.Register(models.CapabilityNavigator, dispatch.ExecutorFunc(func(context.Context, dispatch.Task) (models.ExecutionResult, error) {
		panic("index out of range")
	})); err != nil {
		t.Fatalf("register executor: %v", err)
	}
	eng := New(classifier.New(nil), cost.NewEstimator(), approval.NewGate(approval.PolicyAuto), d)

	rec, err := eng.Run(context.Background(), "zzzz yyyy xxxx", "org-1", "corr-panic")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if rec.Status != models.StatusFailed {
		t.Fatalf("Status = %s, want failed", rec.Status)
	}
	if !strings.Contains(rec.Error, "index out of range") {
		t.Errorf("Error = %q, want panic message captured", rec.Error)
	}
}

func TestRunGeneratesCorrelationID(t *testing.T) {
	eng := newTestEngine(t, nil, approval.PolicyAuto)

	rec, err := eng.Run(context.Background(), "hello there", "org-1", "")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if rec.CorrelationID == "" {
		t.Error("CorrelationID is empty, want generated ID")
	}

	rec2, err := eng.Run(context.Background(), "hello there", "org-1", "my-id")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if rec2.CorrelationID != "my-id" {
		t.Errorf("CorrelationID = %q, want caller-provided ID preserved", rec2.CorrelationID)
	}
}

func TestRunPersistenceFailureIsNonFatal(t *testing.T) {
	eng := newTestEngine(t, nil, approval.PolicyAuto, WithStore(failingStore{}))

	rec, err := eng.Run(context.Background(), "hello there", "org-1", "corr-nostore")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if rec.Status != models.StatusCompleted {
		t.Errorf("Status = %s, want completed despite store failures", rec.Status)
	}
}

func TestRunPersistedStatusSequence(t *testing.T) {
	t.Run("high stakes passes through awaiting_approval before executing", func(t *testing.T) {
		store := &recordingStore{}
		gen := &stubGenerative{result: &classifier.Classification{
			Intent:              models.IntentProductSourcing,
			Confidence:          0.9,
			SuggestedCapability: models.CapabilityChinaSource,
			Reasoning:           "sourcing request",
		}}
		eng := newTestEngine(t, gen, approval.PolicyAuto, WithStore(store))

		if _, err := eng.Run(context.Background(), "Find a supplier for desk lamps", "org-1", "corr-seq-hs"); err != nil {
			t.Fatalf("Run returned error: %v", err)
		}

		awaiting := indexOfStatus(store.statuses, models.StatusAwaitingApproval)
		executing := indexOfStatus(store.statuses, models.StatusExecuting)
		if awaiting < 0 {
			t.Fatalf("status sequence %v missing awaiting_approval", store.statuses)
		}
		if executing < 0 {
			t.Fatalf("status sequence %v missing executing", store.statuses)
		}
		if awaiting >= executing {
			t.Errorf("awaiting_approval at %d not before executing at %d in %v",
				awaiting, executing, store.statuses)
		}
	})

	t.Run("low stakes never passes through awaiting_approval", func(t *testing.T) {
		store := &recordingStore{}
		eng := newTestEngine(t, nil, approval.PolicyAuto, WithStore(store))

		if _, err := eng.Run(context.Background(), "hello there", "org-1", "corr-seq-ls"); err != nil {
			t.Fatalf("Run returned error: %v", err)
		}

		if i := indexOfStatus(store.statuses, models.StatusAwaitingApproval); i >= 0 {
			t.Errorf("status sequence %v contains awaiting_approval for a low-stakes capability", store.statuses)
		}
		if store.statuses[len(store.statuses)-1] != models.StatusCompleted {
			t.Errorf("final persisted status = %s, want completed", store.statuses[len(store.statuses)-1])
		}
	})
}

func indexOfStatus(statuses []models.Status, want models.Status) int {
	for i, s := range statuses {
		if s == want {
			return i
		}
	}
	return -1
}

func TestRunSuspendWithoutStoreFails(t *testing.T) {
	gen := &stubGenerative{result: &classifier.Classification{
		Intent:              models.IntentGrantMatching,
		Confidence:          0.9,
		SuggestedCapability: models.CapabilityGrantMatcher,
		Reasoning:           "grant search",
	}}
	eng := newTestEngine(t, gen, approval.PolicySuspend)

	rec, err := eng.Run(context.Background(), "Find grants for my nonprofit", "org-1", "corr-no-store")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// Parking without a store would leave the workflow unrecoverable, so
	// it must terminate instead.
	if rec.Status != models.StatusFailed {
		t.Fatalf("Status = %s, want failed", rec.Status)
	}
	if !strings.Contains(rec.Error, "no store configured") {
		t.Errorf("Error = %q, want missing-store explanation", rec.Error)
	}
	if len(rec.CapabilityHistory) != 0 {
		t.Errorf("CapabilityHistory = %v, want empty (no executor ran)", rec.CapabilityHistory)
	}
}

func TestSuspendAndResume(t *testing.T) {
	db := openTestStore(t)
	gen := &stubGenerative{result: &classifier.Classification{
		Intent:              models.IntentProductSourcing,
		Confidence:          0.9,
		SuggestedCapability: models.CapabilityChinaSource,
		Reasoning:           "sourcing request",
		ExtractedParams:     map[string]any{"product": "garden tools"},
	}}
	eng := newTestEngine(t, gen, approval.PolicySuspend, WithStore(db))

	rec, err := eng.Run(context.Background(), "Source garden tools from a wholesale supplier", "org-1", "corr-suspend")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if rec.Status != models.StatusAwaitingApproval {
		t.Fatalf("Status = %s, want awaiting_approval", rec.Status)
	}
	if rec.Terminal() {
		t.Fatal("suspended record reports terminal")
	}

	// The parked record must be durable.
	stored, err := db.GetByCorrelationID("corr-suspend")
	if err != nil {
		t.Fatalf("load suspended record: %v", err)
	}
	if stored == nil || stored.Status != models.StatusAwaitingApproval {
		t.Fatalf("stored record = %+v, want awaiting_approval persisted", stored)
	}

	resumed, err := eng.Resume(context.Background(), "corr-suspend", approval.Decision{
		CorrelationID: "corr-suspend",
		Approved:      true,
		Feedback:      "approved by ops",
	})
	if err != nil {
		t.Fatalf("Resume returned error: %v", err)
	}
	if resumed.Status != models.StatusCompleted {
		t.Fatalf("Status = %s after resume, want completed", resumed.Status)
	}
	if resumed.ApprovalFeedback != "approved by ops" {
		t.Errorf("ApprovalFeedback = %q, want reviewer note", resumed.ApprovalFeedback)
	}
	if len(resumed.CapabilityHistory) != 1 || resumed.CapabilityHistory[0] != models.CapabilityChinaSource {
		t.Errorf("CapabilityHistory = %v, want [china_source]", resumed.CapabilityHistory)
	}
	// The extracted product survives the suspend round trip into the output.
	if !strings.Contains(resumed.FinalOutput, "garden tools") {
		t.Errorf("FinalOutput = %q, want extracted product mentioned", resumed.FinalOutput)
	}
}

func TestResumeRejection(t *testing.T) {
	db := openTestStore(t)
	gen := &stubGenerative{result: &classifier.Classification{
		Intent:              models.IntentGrantMatching,
		Confidence:          0.9,
		SuggestedCapability: models.CapabilityGrantMatcher,
		Reasoning:           "grant search",
	}}
	eng := newTestEngine(t, gen, approval.PolicySuspend, WithStore(db))

	if _, err := eng.Run(context.Background(), "Find grants for my nonprofit", "org-1", "corr-deny"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	rec, err := eng.Resume(context.Background(), "corr-deny", approval.Decision{
		CorrelationID: "corr-deny",
		Approved:      false,
		Feedback:      "not in scope",
	})
	if err != nil {
		t.Fatalf("Resume returned error: %v", err)
	}
	if rec.Status != models.StatusFailed {
		t.Fatalf("Status = %s, want failed", rec.Status)
	}
	if len(rec.CapabilityHistory) != 0 {
		t.Errorf("CapabilityHistory = %v, want empty", rec.CapabilityHistory)
	}
}

func TestResumeErrors(t *testing.T) {
	db := openTestStore(t)
	eng := newTestEngine(t, nil, approval.PolicySuspend, WithStore(db))

	if _, err := eng.Resume(context.Background(), "no-such-id", approval.Decision{Approved: true}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resume unknown ID error = %v, want ErrNotFound", err)
	}

	// A completed workflow cannot be resumed.
	done, err := eng.Run(context.Background(), "hello there", "org-1", "corr-done")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if done.Status != models.StatusCompleted {
		t.Fatalf("setup workflow ended %s, want completed", done.Status)
	}
	if _, err := eng.Resume(context.Background(), "corr-done", approval.Decision{Approved: true}); !errors.Is(err, ErrNotAwaitingApproval) {
		t.Errorf("Resume completed workflow error = %v, want ErrNotAwaitingApproval", err)
	}
}

func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
