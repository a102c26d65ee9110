package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"opsdesk/internal/config"
	"opsdesk/internal/database"
	"opsdesk/internal/models"
	"opsdesk/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// memStore is a minimal in-memory services.Store for handler tests.
type memStore struct {
	mu    sync.Mutex
	data  map[string]map[string]*models.Document
	clock time.Time
}

func newMemStore() *memStore {
	return &memStore{
		data:  make(map[string]map[string]*models.Document),
		clock: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) collection(name string) map[string]*models.Document {
	if m.data[name] == nil {
		m.data[name] = make(map[string]*models.Document)
	}
	return m.data[name]
}

func (m *memStore) Create(ctx context.Context, collection string, data bson.M, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	}
	m.clock = m.clock.Add(time.Second)
	copied := make(bson.M, len(data))
	for k, v := range data {
		copied[k] = v
	}
	m.collection(collection)[id] = &models.Document{ID: id, Data: copied, CreatedAt: m.clock, UpdatedAt: m.clock}
	return id, nil
}

func (m *memStore) Update(ctx context.Context, collection, id string, partial bson.M) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.collection(collection)[id]
	if !ok {
		return fmt.Errorf("update %s/%s: %w", collection, id, services.ErrNotFound)
	}
	for k, v := range partial {
		doc.Data[k] = v
	}
	m.clock = m.clock.Add(time.Second)
	doc.UpdatedAt = m.clock
	return nil
}

func (m *memStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collection(collection), id)
	return nil
}

func (m *memStore) Get(ctx context.Context, collection, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.collection(collection)[id]
	if !ok {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, services.ErrNotFound)
	}
	out := *doc
	return &out, nil
}

func (m *memStore) ScanAll(ctx context.Context, collection string) ([]models.Document, error) {
	return m.scan(collection, nil)
}

func (m *memStore) ScanByField(ctx context.Context, collection, field string, value interface{}) ([]models.Document, error) {
	return m.scan(collection, func(doc *models.Document) bool {
		return doc.Data[field] == value
	})
}

func (m *memStore) scan(collection string, keep func(*models.Document) bool) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var docs []models.Document
	for _, doc := range m.collection(collection) {
		if keep != nil && !keep(doc) {
			continue
		}
		docs = append(docs, *doc)
	}
	services.SortByCreatedAtDesc(docs)
	return docs, nil
}

func (m *memStore) ScanIDRange(ctx context.Context, collection, lo, hi string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id := range m.collection(collection) {
		if id >= lo && id < hi {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) CountByField(ctx context.Context, collection, field string, value interface{}) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, doc := range m.collection(collection) {
		if doc.Data[field] == value {
			n++
		}
	}
	return n, nil
}

// stubGenerator returns canned text without reaching any provider.
type stubGenerator struct {
	draft    string
	draftErr error
}

func (g *stubGenerator) Summarize(ctx context.Context, priorGuidance string, records []models.FeedbackRecord) (string, error) {
	return "guidance", nil
}

func (g *stubGenerator) Draft(ctx context.Context, guidance string, req models.DraftRequest) (string, error) {
	if g.draftErr != nil {
		return "", g.draftErr
	}
	return g.draft, nil
}

// asSubject stamps every request with a fixed authenticated subject,
// standing in for the auth middleware.
func asSubject(id string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("subject_id", id)
		return c.Next()
	}
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("decode body %s: %v", data, err)
	}
}

func newDeliveryApp(store *memStore) *fiber.App {
	dateKeys := services.NewDateKeyService(store, services.NewKeyedLocks(nil))
	h := NewDeliveryHandler(store, dateKeys)

	app := fiber.New()
	app.Get("/api/deliveries", h.List)
	app.Post("/api/deliveries", h.Create)
	app.Get("/api/deliveries/:id", h.Get)
	app.Put("/api/deliveries/:id", h.Update)
	app.Delete("/api/deliveries/:id", h.Delete)
	return app
}

func TestDeliveryCreateAllocatesDateKeyedIDs(t *testing.T) {
	store := newMemStore()
	app := newDeliveryApp(store)

	body := map[string]interface{}{
		"client_id":     "client-1",
		"client_name":   "Acme",
		"amount":        120.50,
		"delivery_date": "2024-03-05T09:00:00Z",
	}

	want := []string{"05032024", "050320241", "050320242"}
	for i, expected := range want {
		resp, err := app.Test(jsonRequest(http.MethodPost, "/api/deliveries", body))
		if err != nil {
			t.Fatalf("request #%d failed: %v", i+1, err)
		}
		if resp.StatusCode != fiber.StatusCreated {
			t.Fatalf("request #%d status = %d, want 201", i+1, resp.StatusCode)
		}
		var out map[string]string
		decodeBody(t, resp, &out)
		if out["id"] != expected {
			t.Errorf("request #%d id = %q, want %q", i+1, out["id"], expected)
		}
	}
}

func TestDeliveryCreateRequiresClient(t *testing.T) {
	app := newDeliveryApp(newMemStore())

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/deliveries", map[string]interface{}{"amount": 10}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDeliveryGetAndUpdate(t *testing.T) {
	store := newMemStore()
	app := newDeliveryApp(store)

	id, err := store.Create(context.Background(), database.CollectionDeliveries, bson.M{
		"clientId": "client-1",
		"status":   models.DeliveryPending,
	}, "05032024")
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	resp, err := app.Test(jsonRequest(http.MethodGet, "/api/deliveries/"+id, nil))
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}

	resp, err = app.Test(jsonRequest(http.MethodPut, "/api/deliveries/"+id, map[string]interface{}{
		"status": models.DeliveryDelivered,
	}))
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("update status = %d, want 200", resp.StatusCode)
	}

	doc, err := store.Get(context.Background(), database.CollectionDeliveries, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc.StringField("status") != models.DeliveryDelivered {
		t.Errorf("status = %q, want %q", doc.StringField("status"), models.DeliveryDelivered)
	}
}

func TestDeliveryUpdateUnknownIs404(t *testing.T) {
	app := newDeliveryApp(newMemStore())

	resp, err := app.Test(jsonRequest(http.MethodPut, "/api/deliveries/nope", map[string]interface{}{
		"status": models.DeliveryCancelled,
	}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDeliveryDeleteIsIdempotent(t *testing.T) {
	app := newDeliveryApp(newMemStore())

	for i := 0; i < 2; i++ {
		resp, err := app.Test(jsonRequest(http.MethodDelete, "/api/deliveries/ghost", nil))
		if err != nil {
			t.Fatalf("delete #%d failed: %v", i+1, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Errorf("delete #%d status = %d, want 200", i+1, resp.StatusCode)
		}
	}
}

func TestDeliveryListFiltersByClient(t *testing.T) {
	store := newMemStore()
	app := newDeliveryApp(store)
	ctx := context.Background()

	for i, client := range []string{"client-1", "client-2", "client-1"} {
		if _, err := store.Create(ctx, database.CollectionDeliveries, bson.M{"clientId": client}, fmt.Sprintf("0503202%d", i)); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	resp, err := app.Test(jsonRequest(http.MethodGet, "/api/deliveries?clientId=client-1", nil))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var docs []models.Document
	decodeBody(t, resp, &docs)
	if len(docs) != 2 {
		t.Fatalf("filtered list = %d docs, want 2", len(docs))
	}
	// Newest first.
	if !docs[0].CreatedAt.After(docs[1].CreatedAt) {
		t.Errorf("list not newest-first: %v then %v", docs[0].CreatedAt, docs[1].CreatedAt)
	}
}

func newAssistantApp(store *memStore, gen *stubGenerator, ceiling int) *fiber.App {
	locks := services.NewKeyedLocks(nil)
	ledger := services.NewUsageLedgerService(store, locks, &config.CeilingHistory{Ceilings: []int{ceiling}})
	feedback := services.NewFeedbackService(store, gen, 0)
	h := NewAssistantHandler(ledger, feedback, gen, nil)

	app := fiber.New()
	app.Use(asSubject("op-1"))
	app.Post("/api/assistant/draft", h.Draft)
	app.Post("/api/assistant/feedback", h.Feedback)
	app.Get("/api/assistant/usage", h.Usage)
	return app
}

func TestAssistantDraftConsumesQuota(t *testing.T) {
	app := newAssistantApp(newMemStore(), &stubGenerator{draft: "Dear client"}, 2)
	body := map[string]interface{}{"text": "need this out today"}

	for i := 0; i < 2; i++ {
		resp, err := app.Test(jsonRequest(http.MethodPost, "/api/assistant/draft", body), -1)
		if err != nil {
			t.Fatalf("draft #%d failed: %v", i+1, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("draft #%d status = %d, want 200", i+1, resp.StatusCode)
		}
		var out models.DraftResponse
		decodeBody(t, resp, &out)
		if out.Draft != "Dear client" {
			t.Errorf("draft = %q, want %q", out.Draft, "Dear client")
		}
		if out.Usage == nil || out.Usage.MessagesUsed != i+1 {
			t.Errorf("draft #%d usage = %+v, want %d used", i+1, out.Usage, i+1)
		}
	}

	// Third request is over the ceiling.
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/assistant/draft", body), -1)
	if err != nil {
		t.Fatalf("denied draft failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("denied draft status = %d, want 429", resp.StatusCode)
	}
	var denied map[string]interface{}
	decodeBody(t, resp, &denied)
	if denied["messages_used"] != float64(2) || denied["max_messages"] != float64(2) {
		t.Errorf("denial payload = %v, want used/max 2/2", denied)
	}
	if _, ok := denied["days_until_reset"]; !ok {
		t.Error("denial payload missing days_until_reset")
	}
}

func TestAssistantDraftRequiresText(t *testing.T) {
	app := newAssistantApp(newMemStore(), &stubGenerator{draft: "x"}, 10)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/assistant/draft", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAssistantDraftGenerationFailureDoesNotConsume(t *testing.T) {
	store := newMemStore()
	app := newAssistantApp(store, &stubGenerator{draftErr: fmt.Errorf("provider down")}, 5)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/assistant/draft", map[string]interface{}{"text": "hi"}), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}

	usage, err := app.Test(jsonRequest(http.MethodGet, "/api/assistant/usage", nil), -1)
	if err != nil {
		t.Fatalf("usage failed: %v", err)
	}
	var stats models.UsageStats
	decodeBody(t, usage, &stats)
	if stats.MessagesUsed != 0 {
		t.Errorf("messagesUsed = %d, want 0 (failed drafts are free)", stats.MessagesUsed)
	}
}

func TestAssistantFeedbackReportsConsolidation(t *testing.T) {
	app := newAssistantApp(newMemStore(), &stubGenerator{draft: "x"}, 10)
	body := map[string]interface{}{
		"original_text":  "original",
		"corrected_text": "corrected",
		"tone":           models.ToneFriendly,
	}

	var last models.SubmitFeedbackResponse
	for i := 1; i <= 5; i++ {
		resp, err := app.Test(jsonRequest(http.MethodPost, "/api/assistant/feedback", body), -1)
		if err != nil {
			t.Fatalf("feedback #%d failed: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("feedback #%d status = %d, want 200", i, resp.StatusCode)
		}
		decodeBody(t, resp, &last)
		if last.FeedbackCount != int64(i) {
			t.Errorf("feedback #%d count = %d, want %d", i, last.FeedbackCount, i)
		}
	}

	if !last.Consolidated {
		t.Error("fifth feedback not consolidated")
	}
	if last.ProfileVersion != 1 {
		t.Errorf("profile version = %d, want 1", last.ProfileVersion)
	}
}

func TestAssistantFeedbackValidation(t *testing.T) {
	app := newAssistantApp(newMemStore(), &stubGenerator{}, 10)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/assistant/feedback", map[string]interface{}{
		"original_text": "only original",
	}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAssistantRequiresSubject(t *testing.T) {
	store := newMemStore()
	locks := services.NewKeyedLocks(nil)
	ledger := services.NewUsageLedgerService(store, locks, &config.CeilingHistory{Ceilings: []int{10}})
	feedback := services.NewFeedbackService(store, &stubGenerator{}, 0)
	h := NewAssistantHandler(ledger, feedback, &stubGenerator{}, nil)

	app := fiber.New()
	app.Get("/api/assistant/usage", h.Usage)

	resp, err := app.Test(jsonRequest(http.MethodGet, "/api/assistant/usage", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}
