package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/storage-assistant/pkg/logging"
)

// fakeAirtable is a tiny in-memory Airtable REST server.
type fakeAirtable struct {
	mu      sync.Mutex
	tables  map[string]map[string]airtableFields
	order   map[string][]string
	nextID  int
	calls   int
	pageLen int
	fail    bool
}

func newFakeAirtable() *fakeAirtable {
	return &fakeAirtable{
		tables:  map[string]map[string]airtableFields{},
		order:   map[string][]string{},
		pageLen: 100,
	}
}

func (f *fakeAirtable) seed(table string, fields airtableFields) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertLocked(table, fields)
}

func (f *fakeAirtable) insertLocked(table string, fields airtableFields) string {
	f.nextID++
	id := fmt.Sprintf("rec%03d", f.nextID)
	if f.tables[table] == nil {
		f.tables[table] = map[string]airtableFields{}
	}
	f.tables[table][id] = fields
	f.order[table] = append(f.order[table], id)
	return id
}

func (f *fakeAirtable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if r.Header.Get("Authorization") != "Bearer key-123" {
		http.Error(w, `{"error":"AUTHENTICATION_REQUIRED"}`, http.StatusUnauthorized)
		return
	}
	if f.fail {
		http.Error(w, `{"error":"SERVER_ERROR"}`, http.StatusInternalServerError)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "appBase" {
		http.NotFound(w, r)
		return
	}
	table := parts[1]
	recordID := ""
	if len(parts) > 2 {
		recordID = parts[2]
	}

	switch {
	case r.Method == http.MethodPost && recordID == "":
		var body airtableWrite
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad body", http.StatusUnprocessableEntity)
			return
		}
		id := f.insertLocked(table, body.Fields)
		_ = json.NewEncoder(w).Encode(airtableRecord{ID: id, CreatedTime: "2024-06-01T08:00:00.000Z", Fields: body.Fields})
	case r.Method == http.MethodGet && recordID == "":
		ids := f.order[table]
		start := 0
		if off := r.URL.Query().Get("offset"); off != "" {
			for i, id := range ids {
				if id == off {
					start = i
				}
			}
		}
		end := start + f.pageLen
		page := airtableList{}
		if end < len(ids) {
			page.Offset = ids[end]
		} else {
			end = len(ids)
		}
		for _, id := range ids[start:end] {
			page.Records = append(page.Records, airtableRecord{ID: id, CreatedTime: "2024-06-01T08:00:00.000Z", Fields: f.tables[table][id]})
		}
		_ = json.NewEncoder(w).Encode(page)
	case r.Method == http.MethodGet:
		fields, ok := f.tables[table][recordID]
		if !ok {
			http.Error(w, `{"error":"NOT_FOUND"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(airtableRecord{ID: recordID, CreatedTime: "2024-06-01T08:00:00.000Z", Fields: fields})
	case r.Method == http.MethodPatch:
		fields, ok := f.tables[table][recordID]
		if !ok {
			http.Error(w, `{"error":"NOT_FOUND"}`, http.StatusNotFound)
			return
		}
		var body airtableWrite
		_ = json.NewDecoder(r.Body).Decode(&body)
		for k, v := range body.Fields {
			fields[k] = v
		}
		_ = json.NewEncoder(w).Encode(airtableRecord{ID: recordID, Fields: fields})
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func newTestAirtable(t *testing.T) (*AirtableStore, *fakeAirtable) {
	t.Helper()
	fake := newFakeAirtable()
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	store, err := NewAirtableStore(AirtableConfig{APIKey: "key-123", BaseID: "appBase", BaseURL: ts.URL}, logging.New("error"))
	require.NoError(t, err)
	return store, fake
}

func TestNewAirtableStore_RequiresCredentials(t *testing.T) {
	_, err := NewAirtableStore(AirtableConfig{BaseID: "appBase"}, nil)
	assert.Error(t, err)
	_, err = NewAirtableStore(AirtableConfig{APIKey: "k"}, nil)
	assert.Error(t, err)
}

func TestAirtable_LogInquiryUsesExactFieldNames(t *testing.T) {
	store, fake := newTestAirtable(t)

	inq, err := store.LogInquiry(context.Background(), "Do you store cars?", "We store boxes and furniture.")
	require.NoError(t, err)
	assert.NotEmpty(t, inq.ID)
	assert.Equal(t, "Do you store cars?", inq.Message)
	assert.Equal(t, "We store boxes and furniture.", inq.Response)

	stored := fake.tables["Customer Inquiries"][inq.ID]
	assert.Equal(t, "Do you store cars?", stored["Message"])
	assert.Equal(t, "We store boxes and furniture.", stored["Response"])
}

func TestAirtable_ListFAQsFollowsPagination(t *testing.T) {
	store, fake := newTestAirtable(t)
	fake.pageLen = 2
	fake.seed("FAQs", airtableFields{"Question": "Q1", "Answer": "A1"})
	fake.seed("FAQs", airtableFields{"Question": "Q2", "Answer": "A2"})
	fake.seed("FAQs", airtableFields{"Question": "Q3", "Answer": "A3"})

	faqs, err := store.ListFAQs(context.Background())
	require.NoError(t, err)
	require.Len(t, faqs, 3)
	assert.Equal(t, FAQ{Question: "Q1", Answer: "A1"}, faqs[0])
	assert.Equal(t, FAQ{Question: "Q3", Answer: "A3"}, faqs[2])
	assert.Equal(t, 2, fake.calls)
}

func TestAirtable_ListFAQsReportsFailure(t *testing.T) {
	store, fake := newTestAirtable(t)
	fake.fail = true

	faqs, err := store.ListFAQs(context.Background())
	assert.Error(t, err)
	assert.Empty(t, faqs)
}

func TestAirtable_CreateThenGetRoundTrip(t *testing.T) {
	store, fake := newTestAirtable(t)
	preferred := time.Date(2024, 6, 10, 11, 0, 0, 0, time.UTC)

	req := ServiceRequest{
		Type:          TypeCollection,
		Status:        StatusPending,
		CustomerName:  "Jane",
		CustomerEmail: "jane@x.com",
		CustomerPhone: "+15555550100",
		Description:   "Pick up six boxes",
		PreferredDate: &preferred,
		CreatedAt:     time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	}
	created, err := store.CreateServiceRequest(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	stored := fake.tables["Service Requests"][created.ID]
	assert.Equal(t, "2024-06-10T11:00:00.000Z", stored["Preferred Date"])
	assert.Equal(t, "", stored["Scheduled Date"])
	assert.Equal(t, "Jane", stored["Customer Name"])
	assert.NotContains(t, stored, "Created At")

	fetched, err := store.GetServiceRequest(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, req.Type, fetched.Type)
	assert.Equal(t, req.Status, fetched.Status)
	assert.Equal(t, req.CustomerName, fetched.CustomerName)
	assert.Equal(t, req.CustomerEmail, fetched.CustomerEmail)
	assert.Equal(t, req.CustomerPhone, fetched.CustomerPhone)
	assert.Equal(t, req.Description, fetched.Description)
	require.NotNil(t, fetched.PreferredDate)
	assert.True(t, preferred.Equal(*fetched.PreferredDate))
	assert.Nil(t, fetched.ScheduledDate)
	assert.True(t, req.CreatedAt.Equal(fetched.CreatedAt))
}

func TestAirtable_CreateFailureIsReported(t *testing.T) {
	store, fake := newTestAirtable(t)
	fake.fail = true

	_, err := store.CreateServiceRequest(context.Background(), ServiceRequest{Type: TypeDelivery})
	require.Error(t, err)
	var apiErr *airtableError
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestAirtable_UpdateRequiresID(t *testing.T) {
	store, fake := newTestAirtable(t)

	_, err := store.UpdateServiceRequest(context.Background(), ServiceRequest{CustomerName: "Jane"})
	assert.ErrorIs(t, err, ErrIDRequired)
	assert.Zero(t, fake.calls)
}

func TestAirtable_UpdateStampsUpdatedAt(t *testing.T) {
	store, fake := newTestAirtable(t)
	store.now = func() time.Time { return time.Date(2024, 6, 11, 9, 30, 0, 0, time.UTC) }
	id := fake.seed("Service Requests", airtableFields{"Type": "delivery", "Status": "pending"})

	scheduled := time.Date(2024, 6, 12, 14, 0, 0, 0, time.UTC)
	updated, err := store.UpdateServiceRequest(context.Background(), ServiceRequest{
		ID:            id,
		Type:          TypeDelivery,
		Status:        StatusScheduled,
		CustomerName:  "Sam",
		CustomerEmail: "sam@x.com",
		ScheduledDate: &scheduled,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.UpdatedAt)

	stored := fake.tables["Service Requests"][id]
	assert.Equal(t, "scheduled", stored["Status"])
	assert.Equal(t, "2024-06-12T14:00:00.000Z", stored["Scheduled Date"])
	assert.Equal(t, "2024-06-11T09:30:00.000Z", stored["Updated At"])
}

func TestAirtable_GetMissingIsNotFound(t *testing.T) {
	store, _ := newTestAirtable(t)

	_, err := store.GetServiceRequest(context.Background(), "recMissing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAirtable_ListServiceRequestsFallsBackToCreatedTime(t *testing.T) {
	store, fake := newTestAirtable(t)
	fake.seed("Service Requests", airtableFields{"Type": "inquiry", "Status": "pending", "Preferred Date": "2024-06-10"})

	reqs, err := store.ListServiceRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, TypeInquiry, reqs[0].Type)
	assert.Equal(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), reqs[0].CreatedAt)
	require.NotNil(t, reqs[0].PreferredDate)
	assert.Equal(t, 10, reqs[0].PreferredDate.Day())
}
