// Package models holds the view models returned by the API. All human-readable
// fields are rendered here so the frontend never formats raw microseconds.
package models

import (
	"sort"
	"time"

	"github.com/mergestat/timediff"
	"github.com/samber/lo"
	"github.com/tracelens/tracelens/internal/database"
	"github.com/tracelens/tracelens/internal/humanize"
	"github.com/tracelens/tracelens/internal/query"
)

// ServiceSummary is one entry in the service list.
type ServiceSummary struct {
	Name           string `json:"name"`
	OperationCount int    `json:"operationCount"`
}

// TraceSummary is a single row in the trace search results.
type TraceSummary struct {
	TraceID        string `json:"traceID"`
	RootService    string `json:"rootService"`
	RootOperation  string `json:"rootOperation"`
	StartTime      string `json:"startTime"`
	StartDate      string `json:"startDate"`
	Age            string `json:"age"`
	Duration       string `json:"duration"`
	DurationMicros int64  `json:"durationMicros"`
	SpanCount      int    `json:"spanCount"`
	ServiceCount   int    `json:"serviceCount"`
	Pinned         bool   `json:"pinned"`
}

// SpanRow is a single span within a trace detail view.
type SpanRow struct {
	SpanID         string  `json:"spanID"`
	ParentSpanID   string  `json:"parentSpanID,omitempty"`
	Service        string  `json:"service"`
	Operation      string  `json:"operation"`
	StartOffset    string  `json:"startOffset"`
	Duration       string  `json:"duration"`
	DurationMicros int64   `json:"durationMicros"`
	PercentOfTrace float64 `json:"percentOfTrace"`
}

// TraceDetail is the full view of a single trace.
type TraceDetail struct {
	TraceID        string    `json:"traceID"`
	StartTime      string    `json:"startTime"`
	StartDate      string    `json:"startDate"`
	Duration       string    `json:"duration"`
	DurationMicros int64     `json:"durationMicros"`
	Services       []string  `json:"services"`
	Spans          []SpanRow `json:"spans"`
	Pinned         bool      `json:"pinned"`
}

// PinView is a pinned trace as returned by the API.
type PinView struct {
	PinID     string `json:"pinID"`
	TraceID   string `json:"traceID"`
	Service   string `json:"service"`
	Title     string `json:"title"`
	Note      string `json:"note,omitempty"`
	Duration  string `json:"duration"`
	StartDate string `json:"startDate"`
	PinnedAt  string `json:"pinnedAt"`
}

// rootSpan returns the span that starts earliest; references make no
// difference for display purposes when the root is missing from the batch.
func rootSpan(t query.Trace) *query.Span {
	if len(t.Spans) == 0 {
		return nil
	}
	root := &t.Spans[0]
	for i := range t.Spans {
		if t.Spans[i].StartTime < root.StartTime {
			root = &t.Spans[i]
		}
	}
	return root
}

// traceBounds returns the trace start and total duration in microseconds,
// covering the full span window rather than just the root span.
func traceBounds(t query.Trace) (start, duration int64) {
	if len(t.Spans) == 0 {
		return 0, 0
	}
	start = t.Spans[0].StartTime
	end := start
	for _, s := range t.Spans {
		if s.StartTime < start {
			start = s.StartTime
		}
		if s.StartTime+s.Duration > end {
			end = s.StartTime + s.Duration
		}
	}
	return start, end - start
}

func serviceNames(t query.Trace) []string {
	names := lo.Map(lo.Values(t.Processes), func(p query.Process, _ int) string {
		return p.ServiceName
	})
	names = lo.Uniq(names)
	sort.Strings(names)
	return names
}

// NewTraceSummary renders a search result row. now is the reference for
// relative labels so a page of results is classified consistently.
func NewTraceSummary(t query.Trace, now time.Time, pinned bool) TraceSummary {
	start, duration := traceBounds(t)
	summary := TraceSummary{
		TraceID:        t.TraceID,
		StartTime:      humanize.FormatDatetime(start),
		StartDate:      humanize.FormatRelativeDateAt(now, time.UnixMicro(start), false),
		Age:            timediff.TimeDiff(time.UnixMicro(start), timediff.WithStartTime(now)),
		Duration:       humanize.FormatDuration(duration),
		DurationMicros: duration,
		SpanCount:      len(t.Spans),
		ServiceCount:   len(serviceNames(t)),
		Pinned:         pinned,
	}
	if root := rootSpan(t); root != nil {
		summary.RootOperation = root.OperationName
		if proc, ok := t.Processes[root.ProcessID]; ok {
			summary.RootService = proc.ServiceName
		}
	}
	return summary
}

// NewTraceDetail renders the full trace view. Span rows are sorted by start
// time and each row carries its share of the total trace duration.
func NewTraceDetail(t query.Trace, now time.Time, pinned bool) TraceDetail {
	start, duration := traceBounds(t)

	ordered := make([]query.Span, len(t.Spans))
	copy(ordered, t.Spans)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartTime < ordered[j].StartTime
	})

	spans := make([]SpanRow, 0, len(ordered))
	for _, s := range ordered {
		row := SpanRow{
			SpanID:         s.SpanID,
			Operation:      s.OperationName,
			StartOffset:    humanize.FormatMillisecondTime(s.StartTime - start),
			Duration:       humanize.FormatDuration(s.Duration),
			DurationMicros: s.Duration,
			PercentOfTrace: humanize.GetPercentageOfDuration(float64(s.Duration), float64(duration)),
		}
		if proc, ok := t.Processes[s.ProcessID]; ok {
			row.Service = proc.ServiceName
		}
		for _, ref := range s.References {
			if ref.RefType == "CHILD_OF" {
				row.ParentSpanID = ref.SpanID
				break
			}
		}
		spans = append(spans, row)
	}

	return TraceDetail{
		TraceID:        t.TraceID,
		StartTime:      humanize.FormatDatetime(start),
		StartDate:      humanize.FormatRelativeDateAt(now, time.UnixMicro(start), true),
		Duration:       humanize.FormatDuration(duration),
		DurationMicros: duration,
		Services:       serviceNames(t),
		Spans:          spans,
		Pinned:         pinned,
	}
}

// SearchView is a recorded search query as shown in the recent-searches list.
type SearchView struct {
	Service   string `json:"service"`
	Operation string `json:"operation,omitempty"`
	Limit     int    `json:"limit"`
	When      string `json:"when"`
}

// NewSearchView renders a recorded search for the API.
func NewSearchView(s database.SearchQuery, now time.Time) SearchView {
	return SearchView{
		Service:   s.Service,
		Operation: s.Operation,
		Limit:     s.Limit,
		When:      timediff.TimeDiff(s.CreatedAt, timediff.WithStartTime(now)),
	}
}

// NewPinView renders a pinned trace for the API.
func NewPinView(pin database.TracePin, now time.Time) PinView {
	return PinView{
		PinID:     pin.PinID,
		TraceID:   pin.TraceID,
		Service:   pin.ServiceName,
		Title:     pin.Title,
		Note:      pin.Note,
		Duration:  humanize.FormatDuration(pin.DurationMicros),
		StartDate: humanize.FormatRelativeDateAt(now, time.UnixMicro(pin.StartTimeMicros), false),
		PinnedAt:  timediff.TimeDiff(pin.CreatedAt, timediff.WithStartTime(now)),
	}
}
