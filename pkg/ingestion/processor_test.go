package ingestion

import (
	"context"
	"errors"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/Usman209/data-collection/pkg/common/logger"
	"github.com/Usman209/data-collection/pkg/common/models"
	"github.com/Usman209/data-collection/pkg/queue"
	"github.com/Usman209/data-collection/pkg/storage"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type memEngine struct {
	mu          sync.Mutex
	collections map[string][]*storage.Document
	created     map[string]int
	failHas     map[string]error
}

func newMemEngine() *memEngine {
	return &memEngine{
		collections: make(map[string][]*storage.Document),
		created:     make(map[string]int),
		failHas:     make(map[string]error),
	}
}

func (e *memEngine) HasCollection(ctx context.Context, name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.failHas[name]; err != nil {
		return false, err
	}
	_, ok := e.collections[name]
	return ok, nil
}

func (e *memEngine) CreateCollection(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.created[name]++
	if _, ok := e.collections[name]; !ok {
		e.collections[name] = nil
	}
	return nil
}

func (e *memEngine) Insert(ctx context.Context, name string, doc *storage.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.collections[name] = append(e.collections[name], doc)
	return nil
}

func (e *memEngine) docs(name string) []*storage.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*storage.Document(nil), e.collections[name]...)
}

func newTestProcessor(engine *memEngine) *Processor {
	return NewProcessor(storage.NewRouter(engine), storage.NewWriter(), nil)
}

func TestProcessWritesEveryRecord(t *testing.T) {
	engine := newMemEngine()
	p := newTestProcessor(engine)

	batch := models.Batch{Data: []models.TypeGroup{
		{Type: "survey", Records: []map[string]interface{}{
			{"q1": "yes"}, {"q1": "no"}, {"q1": "maybe"},
		}},
	}}

	report := p.Process(context.Background(), batch, "2024-05-01")

	if len(report.Groups) != 1 {
		t.Fatalf("expected one group result, got %d", len(report.Groups))
	}
	g := report.Groups[0]
	if g.Attempted != 3 || g.Written != 3 || g.Failed != 0 {
		t.Fatalf("unexpected group result: %+v", g)
	}
	if g.CollectionKey != "survey_2024-05-01" {
		t.Fatalf("unexpected collection key: %s", g.CollectionKey)
	}
	if engine.created["survey_2024-05-01"] != 1 {
		t.Fatalf("expected exactly one collection creation, got %d", engine.created["survey_2024-05-01"])
	}
	if len(engine.docs("survey_2024-05-01")) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(engine.docs("survey_2024-05-01")))
	}
}

func TestProcessSkipsInvalidGroupOnly(t *testing.T) {
	engine := newMemEngine()
	p := newTestProcessor(engine)

	batch := models.Batch{Data: []models.TypeGroup{
		{Type: "survey", Records: []map[string]interface{}{{"q1": "yes"}}},
		{Type: "", Records: []map[string]interface{}{{"q1": "orphan"}}},
		{Type: "feedback", Records: nil},
		{Type: "events", Records: []map[string]interface{}{{"name": "click"}}},
	}}

	report := p.Process(context.Background(), batch, "2024-05-01")

	if len(report.Groups) != 4 {
		t.Fatalf("expected 4 group results, got %d", len(report.Groups))
	}
	if !report.Groups[1].Skipped || !report.Groups[2].Skipped {
		t.Fatal("expected invalid groups to be skipped")
	}
	if report.Groups[0].Written != 1 || report.Groups[3].Written != 1 {
		t.Fatal("expected valid sibling groups to be processed")
	}
	if len(engine.docs("survey_2024-05-01")) != 1 || len(engine.docs("events_2024-05-01")) != 1 {
		t.Fatal("expected one document per valid group")
	}
	if engine.created["_2024-05-01"] != 0 {
		t.Fatal("invalid group must produce no storage writes")
	}
}

func TestProcessIsolatesResolutionFailure(t *testing.T) {
	engine := newMemEngine()
	engine.failHas["broken_2024-05-01"] = errors.New("listing unavailable")
	p := newTestProcessor(engine)

	batch := models.Batch{Data: []models.TypeGroup{
		{Type: "broken", Records: []map[string]interface{}{{"v": 1}}},
		{Type: "survey", Records: []map[string]interface{}{{"q1": "yes"}}},
	}}

	report := p.Process(context.Background(), batch, "2024-05-01")

	if report.Groups[0].Err == nil {
		t.Fatal("expected resolution error on first group")
	}
	if report.Groups[0].Attempted != 0 {
		t.Fatal("failed group must attempt no writes")
	}
	if report.Groups[1].Written != 1 {
		t.Fatal("expected second group unaffected by first group's failure")
	}
}

func TestProcessSharedTimestampPerGroup(t *testing.T) {
	engine := newMemEngine()
	p := newTestProcessor(engine)

	base := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	calls := 0
	p.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}

	batch := models.Batch{Data: []models.TypeGroup{
		{Type: "survey", Records: []map[string]interface{}{{"q1": "a"}, {"q1": "b"}}},
		{Type: "events", Records: []map[string]interface{}{{"n": 1}}},
	}}

	p.Process(context.Background(), batch, "2024-05-01")

	surveyDocs := engine.docs("survey_2024-05-01")
	if len(surveyDocs) != 2 {
		t.Fatalf("expected 2 survey documents, got %d", len(surveyDocs))
	}
	first := surveyDocs[0].Data["addedAtServer"]
	second := surveyDocs[1].Data["addedAtServer"]
	if first != second {
		t.Fatalf("records in one group must share addedAtServer: %v vs %v", first, second)
	}

	eventDocs := engine.docs("events_2024-05-01")
	if eventDocs[0].Data["addedAtServer"] == first {
		t.Fatal("expected a fresh timestamp for the second group")
	}
}

func TestProcessEnrichment(t *testing.T) {
	engine := newMemEngine()
	p := newTestProcessor(engine)

	batch := models.Batch{Data: []models.TypeGroup{
		{Type: "survey", Records: []map[string]interface{}{{"q1": "yes"}}},
	}}

	p.Process(context.Background(), batch, "2024-05-01")

	docs := engine.docs("survey_2024-05-01")
	if len(docs) != 1 {
		t.Fatalf("expected one document, got %d", len(docs))
	}
	data := docs[0].Data
	if data["q1"] != "yes" {
		t.Fatalf("record payload lost: %v", data)
	}
	if data["isProcessed"] != false {
		t.Fatalf("expected isProcessed=false, got %v", data["isProcessed"])
	}

	stamp, _ := data["addedAtServer"].(string)
	if !regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`).MatchString(stamp) {
		t.Fatalf("unexpected addedAtServer format: %q", stamp)
	}
}

func TestHandleJobRedeliveryDuplicatesRecords(t *testing.T) {
	engine := newMemEngine()
	p := newTestProcessor(engine)

	job := &queue.Job{
		ID: "job-1",
		Payload: models.JobPayload{
			CollectedDataArray: models.Batch{Data: []models.TypeGroup{
				{Type: "survey", Records: []map[string]interface{}{{"q1": "yes"}, {"q1": "no"}}},
			}},
			CurrentDate: "2024-05-01",
		},
	}

	if err := p.HandleJob(context.Background(), job); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if err := p.HandleJob(context.Background(), job); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}

	// At-least-once, no idempotency key: redelivery duplicates inserts.
	docs := engine.docs("survey_2024-05-01")
	if len(docs) != 4 {
		t.Fatalf("expected 4 documents after redelivery, got %d", len(docs))
	}
	for _, doc := range docs {
		if doc.Data["isProcessed"] != false {
			t.Fatalf("expected isProcessed=false on every document: %v", doc.Data)
		}
	}
	if engine.created["survey_2024-05-01"] != 1 {
		t.Fatal("redelivery must reuse the cached collection")
	}
}

func TestHandleJobDefaultsMissingDate(t *testing.T) {
	engine := newMemEngine()
	p := newTestProcessor(engine)
	p.now = func() time.Time { return time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC) }

	job := &queue.Job{
		ID: "job-2",
		Payload: models.JobPayload{
			CollectedDataArray: models.Batch{Data: []models.TypeGroup{
				{Type: "survey", Records: []map[string]interface{}{{"q1": "yes"}}},
			}},
		},
	}

	if err := p.HandleJob(context.Background(), job); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(engine.docs("survey_2024-05-02")) != 1 {
		t.Fatal("expected fallback to the processor's own date")
	}
}
