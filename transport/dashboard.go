package transport

import (
	"fmt"
	"time"
)

const (
	fillVerified    = "#82ca9d"
	fillNotVerified = "#ffc658"
	fillOther       = "#8884d8"

	serverDateLayout  = "2006-01-02"
	displayDateLayout = "Jan 2, 2006"

	noContent = "No content"
)

type rawDashboard struct {
	SentimentOverTime []rawSentimentPoint `json:"sentiment_over_time"`
	TopicDistribution []rawTopic          `json:"topic_distribution"`
	RecentFeedback    []rawFeedback       `json:"recent_feedback"`
}

type rawSentimentPoint struct {
	Date     string `json:"date"`
	Positive *int   `json:"positive"`
	Negative *int   `json:"negative"`
	Neutral  *int   `json:"neutral"`
}

type rawTopic struct {
	Name       string   `json:"name"`
	Value      int      `json:"value"`
	Percentage *float64 `json:"percentage"`
}

type rawFeedback struct {
	Topic         string `json:"topic"`
	Sentiment     string `json:"sentiment"`
	ReviewBody    string `json:"review_body"`
	ReviewSummary string `json:"review_summary"`
	ReviewDate    string `json:"review_date"`
}

func normalizeDashboard(raw *rawDashboard) *Dashboard {
	d := &Dashboard{
		SentimentTrend:    make([]SentimentPoint, 0, len(raw.SentimentOverTime)),
		TopicDistribution: make([]Topic, 0, len(raw.TopicDistribution)),
		RecentFeedback:    make([]FeedbackItem, 0, len(raw.RecentFeedback)),
	}

	for _, p := range raw.SentimentOverTime {
		d.SentimentTrend = append(d.SentimentTrend, SentimentPoint{
			Date:     displayDate(p.Date),
			Positive: countOrZero(p.Positive),
			Negative: countOrZero(p.Negative),
			Neutral:  countOrZero(p.Neutral),
		})
	}

	for _, t := range raw.TopicDistribution {
		d.TopicDistribution = append(d.TopicDistribution, Topic{
			Name:       t.Name,
			Value:      t.Value,
			Percentage: t.Percentage,
			Fill:       topicFill(t.Name),
		})
	}

	for i, f := range raw.RecentFeedback {
		source := SourceDataset
		if f.Topic == "Document" {
			source = SourceDocument
		}
		text := f.ReviewBody
		if text == "" {
			text = noContent
		}
		summary := f.ReviewSummary
		if summary == "" {
			summary = f.ReviewBody
		}
		d.RecentFeedback = append(d.RecentFeedback, FeedbackItem{
			ID:        fmt.Sprintf("feedback-%d", i),
			Source:    source,
			Sentiment: f.Sentiment,
			Text:      text,
			Summary:   summary,
			Timestamp: f.ReviewDate,
		})
	}

	return d
}

// displayDate renders a server date as "Jan 2, 2006", leaving unknown layouts untouched.
func displayDate(s string) string {
	for _, layout := range []string{serverDateLayout, time.RFC3339, time.RFC1123} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(displayDateLayout)
		}
	}
	return s
}

func topicFill(name string) string {
	switch name {
	case "Verified":
		return fillVerified
	case "Not Verified":
		return fillNotVerified
	default:
		return fillOther
	}
}

func countOrZero(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
