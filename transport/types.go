package transport

// SourceFilter restricts which documents the query service searches.
type SourceFilter string

const (
	FilterAll    SourceFilter = "all"
	FilterReport SourceFilter = "report"
)

// QueryRequest is the body of POST /api/assistant/query.
type QueryRequest struct {
	Question     string       `json:"question"`
	SourceFilter SourceFilter `json:"source_filter"`
}

// QueryResponse is a successful answer. RetrievedDocuments is never nil.
type QueryResponse struct {
	Answer             string   `json:"answer"`
	RetrievedDocuments []string `json:"retrieved_documents"`
}

// Health is the body of GET /api/health.
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// UploadResult is the body of a successful document upload.
type UploadResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Dashboard is the normalized aggregate view of all feedback.
type Dashboard struct {
	SentimentTrend    []SentimentPoint
	TopicDistribution []Topic
	RecentFeedback    []FeedbackItem
}

// SentimentPoint counts feedback per sentiment on one day.
type SentimentPoint struct {
	Date     string
	Positive int
	Negative int
	Neutral  int
}

// Topic is one slice of the topic distribution.
type Topic struct {
	Name       string
	Value      int
	Percentage *float64
	Fill       string
}

// FeedbackSource says where a piece of feedback came from.
type FeedbackSource string

const (
	SourceDataset  FeedbackSource = "dataset"
	SourceDocument FeedbackSource = "document"
)

// FeedbackItem is one recent piece of feedback.
type FeedbackItem struct {
	ID        string
	Source    FeedbackSource
	Sentiment string
	Text      string
	Summary   string
	Timestamp string
}
