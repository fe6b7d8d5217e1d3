package domain

// JobKindAnalyzeMeal tags meal-analysis jobs on the queue.
const JobKindAnalyzeMeal = "meal:analyze"

// AnalysisJob is the queue payload for one meal analysis. It carries
// everything a worker needs: the event to reconcile into, the owning
// user, the durable image URL, and the raw bytes (base64) so the worker
// never depends on storage availability at dequeue time. The payload is
// transient; it is never persisted beyond the queue's lifetime.
type AnalysisJob struct {
	EventID     string `json:"eventId"`
	UserID      string `json:"userId"`
	ImageURL    string `json:"imageUrl"`
	ImageBase64 string `json:"imageBase64"`
}
