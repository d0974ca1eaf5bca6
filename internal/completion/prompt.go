package completion

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/storage-assistant/internal/records"
)

const personaPrompt = `You are a friendly customer service assistant for a self-storage company.
You help customers arrange storage collections and deliveries, answer questions about storage options,
and help with existing storage. Keep replies short, clear and polite. If a customer wants to book a
collection or delivery, ask for their name, email, phone number, preferred date and what needs storing.`

const extractionPrompt = `You are an AI assistant that analyzes customer messages to detect service requests.
Extract the following information from the message:
1. Service type (collection, delivery, inquiry, or other)
2. Customer name (if provided)
3. Customer email (if provided)
4. Customer phone (if provided)
5. Preferred date (if provided)
6. Description of the request

Respond in JSON format only with these fields:
{"isServiceRequest": boolean, "type": string, "customerName": string, "customerEmail": string, "customerPhone": string, "preferredDate": string, "description": string}

If the message is not a service request, set isServiceRequest to false and leave other fields empty.`

const faqSupplementHeader = "\n\nHere are some frequently asked questions and their answers:\n"

// FAQSupplement renders faqs as the numbered knowledge block appended to the
// persona prompt. No FAQs yields an empty string.
func FAQSupplement(faqs []records.FAQ) string {
	if len(faqs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(faqSupplementHeader)
	for i, faq := range faqs {
		fmt.Fprintf(&b, "%d. Q: %s\nA: %s\n\n", i+1, faq.Question, faq.Answer)
	}
	return b.String()
}

// replySystemPrompt is the persona prompt with the FAQ supplement appended.
func replySystemPrompt(faqs []records.FAQ) string {
	return personaPrompt + FAQSupplement(faqs)
}

// extractionContext anchors relative dates such as "tomorrow".
func extractionContext(now time.Time) string {
	return fmt.Sprintf("Today's date is %s (%s). Resolve relative dates against it and report preferredDate as YYYY-MM-DD.",
		now.Format(time.DateOnly), now.Weekday())
}
