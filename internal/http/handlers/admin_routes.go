package handlers

import "github.com/go-chi/chi/v5"

// RegisterAdminRoutes mounts the back-office endpoints on an already
// authenticated router. Nil handlers are skipped.
func RegisterAdminRoutes(r chi.Router, requests *AdminServiceRequestsHandler, faqs *AdminFAQHandler) {
	if requests != nil {
		r.Route("/service-requests", func(r chi.Router) {
			r.Get("/", requests.ListServiceRequests)
			r.Get("/{requestID}", requests.GetServiceRequest)
			r.Put("/{requestID}", requests.UpdateServiceRequest)
			r.Post("/{requestID}/reschedule", requests.RescheduleServiceRequest)
		})
		r.Get("/calendar/events", requests.ListCalendarEvents)
	}
	if faqs != nil {
		r.Get("/faqs", faqs.ListFAQs)
		r.Delete("/faqs/cache", faqs.InvalidateCache)
	}
}
