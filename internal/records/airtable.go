package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/storage-assistant/pkg/logging"
)

const (
	defaultAirtableBaseURL = "https://api.airtable.com/v0"
	defaultAirtableTimeout = 20 * time.Second

	tableInquiries       = "Customer Inquiries"
	tableFAQs            = "FAQs"
	tableServiceRequests = "Service Requests"

	fieldMessage       = "Message"
	fieldResponse      = "Response"
	fieldQuestion      = "Question"
	fieldAnswer        = "Answer"
	fieldType          = "Type"
	fieldStatus        = "Status"
	fieldCustomerName  = "Customer Name"
	fieldCustomerEmail = "Customer Email"
	fieldCustomerPhone = "Customer Phone"
	fieldDescription   = "Description"
	fieldPreferredDate = "Preferred Date"
	fieldScheduledDate = "Scheduled Date"
	fieldCreatedAt     = "Created At"
	fieldUpdatedAt     = "Updated At"
)

// AirtableConfig configures the Airtable REST client.
type AirtableConfig struct {
	APIKey  string
	BaseID  string
	BaseURL string
	Timeout time.Duration
}

// AirtableStore implements Store against an Airtable base.
type AirtableStore struct {
	endpoint   string
	apiKey     string
	baseID     string
	httpClient *http.Client
	logger     *logging.Logger
	now        func() time.Time
}

// NewAirtableStore creates a store for the configured base.
func NewAirtableStore(cfg AirtableConfig, logger *logging.Logger) (*AirtableStore, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.BaseID) == "" {
		return nil, errors.New("records: airtable api key and base id are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	endpoint := strings.TrimRight(cfg.BaseURL, "/")
	if endpoint == "" {
		endpoint = defaultAirtableBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultAirtableTimeout
	}
	return &AirtableStore{
		endpoint:   endpoint,
		apiKey:     cfg.APIKey,
		baseID:     cfg.BaseID,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}, nil
}

type airtableFields map[string]any

type airtableRecord struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      airtableFields `json:"fields"`
}

type airtableWrite struct {
	Fields   airtableFields `json:"fields"`
	Typecast bool           `json:"typecast,omitempty"`
}

type airtableList struct {
	Records []airtableRecord `json:"records"`
	Offset  string           `json:"offset,omitempty"`
}

type airtableError struct {
	StatusCode int
	Body       string
}

func (e *airtableError) Error() string {
	return fmt.Sprintf("records: airtable returned status %d: %s", e.StatusCode, e.Body)
}

// LogInquiry appends one row to the inquiry log.
func (s *AirtableStore) LogInquiry(ctx context.Context, message, response string) (*Inquiry, error) {
	var rec airtableRecord
	err := s.do(ctx, http.MethodPost, s.tableURL(tableInquiries, ""), airtableWrite{
		Fields: airtableFields{fieldMessage: message, fieldResponse: response},
	}, &rec)
	if err != nil {
		return nil, fmt.Errorf("records: log inquiry: %w", err)
	}
	return &Inquiry{
		ID:       rec.ID,
		Message:  rec.Fields.str(fieldMessage),
		Response: rec.Fields.str(fieldResponse),
	}, nil
}

// ListFAQs returns every FAQ row.
func (s *AirtableStore) ListFAQs(ctx context.Context) ([]FAQ, error) {
	rows, err := s.listAll(ctx, tableFAQs)
	if err != nil {
		return nil, fmt.Errorf("records: list faqs: %w", err)
	}
	faqs := make([]FAQ, 0, len(rows))
	for _, row := range rows {
		faqs = append(faqs, FAQ{
			Question: row.Fields.str(fieldQuestion),
			Answer:   row.Fields.str(fieldAnswer),
		})
	}
	return faqs, nil
}

// CreateServiceRequest inserts req and returns it with the record id assigned.
// Created At is computed by the base and is never written.
func (s *AirtableStore) CreateServiceRequest(ctx context.Context, req ServiceRequest) (*ServiceRequest, error) {
	var rec airtableRecord
	err := s.do(ctx, http.MethodPost, s.tableURL(tableServiceRequests, ""), airtableWrite{
		Fields:   serviceRequestFields(req, formatOptionalTime(req.UpdatedAt)),
		Typecast: true,
	}, &rec)
	if err != nil {
		return nil, fmt.Errorf("records: create service request: %w", err)
	}
	if rec.ID == "" {
		return nil, errors.New("records: create service request: airtable returned empty record id")
	}
	created := req
	created.ID = rec.ID
	return &created, nil
}

// UpdateServiceRequest overwrites the stored fields of req and stamps Updated At.
func (s *AirtableStore) UpdateServiceRequest(ctx context.Context, req ServiceRequest) (*ServiceRequest, error) {
	if strings.TrimSpace(req.ID) == "" {
		return nil, ErrIDRequired
	}
	updatedAt := s.now().UTC()
	err := s.do(ctx, http.MethodPatch, s.tableURL(tableServiceRequests, req.ID), airtableWrite{
		Fields:   serviceRequestFields(req, FormatTime(updatedAt)),
		Typecast: true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("records: update service request %s: %w", req.ID, err)
	}
	updated := req
	updated.UpdatedAt = &updatedAt
	return &updated, nil
}

// ListServiceRequests returns every service request row.
func (s *AirtableStore) ListServiceRequests(ctx context.Context) ([]ServiceRequest, error) {
	rows, err := s.listAll(ctx, tableServiceRequests)
	if err != nil {
		return nil, fmt.Errorf("records: list service requests: %w", err)
	}
	out := make([]ServiceRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, serviceRequestFromRecord(row))
	}
	return out, nil
}

// GetServiceRequest fetches one request; any failure is reported as ErrNotFound.
func (s *AirtableStore) GetServiceRequest(ctx context.Context, id string) (*ServiceRequest, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrIDRequired
	}
	var rec airtableRecord
	if err := s.do(ctx, http.MethodGet, s.tableURL(tableServiceRequests, id), nil, &rec); err != nil {
		s.logger.Warn("records: airtable lookup failed", "id", id, "error", err)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	req := serviceRequestFromRecord(rec)
	return &req, nil
}

func (s *AirtableStore) listAll(ctx context.Context, table string) ([]airtableRecord, error) {
	var all []airtableRecord
	offset := ""
	for {
		u := s.tableURL(table, "")
		if offset != "" {
			u += "?" + url.Values{"offset": {offset}}.Encode()
		}
		var page airtableList
		if err := s.do(ctx, http.MethodGet, u, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Records...)
		if page.Offset == "" {
			return all, nil
		}
		offset = page.Offset
	}
}

func (s *AirtableStore) tableURL(table, recordID string) string {
	u := s.endpoint + "/" + url.PathEscape(s.baseID) + "/" + url.PathEscape(table)
	if recordID != "" {
		u += "/" + url.PathEscape(recordID)
	}
	return u
}

func (s *AirtableStore) do(ctx context.Context, method, u string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &airtableError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func serviceRequestFields(req ServiceRequest, updatedAt string) airtableFields {
	return airtableFields{
		fieldType:          string(req.Type),
		fieldStatus:        string(req.Status),
		fieldCustomerName:  req.CustomerName,
		fieldCustomerEmail: req.CustomerEmail,
		fieldCustomerPhone: req.CustomerPhone,
		fieldDescription:   req.Description,
		fieldPreferredDate: formatOptionalTime(req.PreferredDate),
		fieldScheduledDate: formatOptionalTime(req.ScheduledDate),
		fieldUpdatedAt:     updatedAt,
	}
}

func serviceRequestFromRecord(rec airtableRecord) ServiceRequest {
	req := ServiceRequest{
		ID:            rec.ID,
		Type:          ServiceRequestType(rec.Fields.str(fieldType)),
		Status:        ServiceRequestStatus(rec.Fields.str(fieldStatus)),
		CustomerName:  rec.Fields.str(fieldCustomerName),
		CustomerEmail: rec.Fields.str(fieldCustomerEmail),
		CustomerPhone: rec.Fields.str(fieldCustomerPhone),
		Description:   rec.Fields.str(fieldDescription),
		PreferredDate: parseOptionalTime(rec.Fields.str(fieldPreferredDate)),
		ScheduledDate: parseOptionalTime(rec.Fields.str(fieldScheduledDate)),
		UpdatedAt:     parseOptionalTime(rec.Fields.str(fieldUpdatedAt)),
	}
	if created, ok := ParseTime(rec.Fields.str(fieldCreatedAt)); ok {
		req.CreatedAt = created
	} else if created, ok := ParseTime(rec.CreatedTime); ok {
		req.CreatedAt = created
	}
	return req
}

func (f airtableFields) str(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
