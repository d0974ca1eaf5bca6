package records

import "context"

// Store is the tabular record store holding inquiries, FAQs and service requests.
//
// Every method reports failures as errors. Whether a failure is best-effort
// (inquiry logging, listings) or load-bearing (create, point lookup, update)
// is decided by the caller.
type Store interface {
	LogInquiry(ctx context.Context, message, response string) (*Inquiry, error)
	ListFAQs(ctx context.Context) ([]FAQ, error)
	CreateServiceRequest(ctx context.Context, req ServiceRequest) (*ServiceRequest, error)
	UpdateServiceRequest(ctx context.Context, req ServiceRequest) (*ServiceRequest, error)
	ListServiceRequests(ctx context.Context) ([]ServiceRequest, error)
	GetServiceRequest(ctx context.Context, id string) (*ServiceRequest, error)
}

// FAQSource is the read side used to build the assistant knowledge supplement.
type FAQSource interface {
	ListFAQs(ctx context.Context) ([]FAQ, error)
}
