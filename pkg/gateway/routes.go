package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// The gateway exposes an allow-list of Dialogflow v2beta1 operations; any
// path or verb not listed here is unreachable and 404s from the router.
var (
	getRoutes = []string{
		"/conversations/{conversationID}",                      // Get conversation
		"/conversations/{conversationID}/suggestions:{action}", // Search articles
		"/conversations/{conversationID}/participants",         // List participants
		"/conversations/{conversationID}/participants/{participantID}", // Get participant
		"/conversations/{conversationID}/messages",                     // List messages
		"/answerRecords/{answerRecordID}",                              // Get answer record
	}

	postRoutes = []string{
		"/conversations", // Create new conversations
		"/conversations/{conversationID}/suggestions:{action}", // Generate summary
		"/conversations/{conversationID}/participants",         // Create new participant
		"/conversations/{conversationID}/participants/{participantID}/suggestions:{action}", // Suggest smart replies
		"/conversations/{conversationID}/participants/{participantID}:{action}",             // Analyze content
		"/answerRecords/{answerRecordID}",                                                   // Create answer record
	}

	patchRoutes = []string{
		"/answerRecords/{answerRecordID}", // Patch answer record
	}
)

// Router returns the allow-listed route tree, to be mounted under the
// project- and location-scoped path prefixes.
func Router(f *Forwarder) http.Handler {
	r := chi.NewRouter()

	for _, route := range getRoutes {
		r.Get(route, f.ServeHTTP)
	}
	for _, route := range postRoutes {
		r.Post(route, f.ServeHTTP)
	}
	for _, route := range patchRoutes {
		r.Patch(route, f.ServeHTTP)
	}

	return r
}
