package reminder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	summaryWindowDays = 7

	summaryDateLayout = "Mon, Jan 2"
	summaryTimeLayout = "3:04 PM"
	nothingScheduled  = "Nothing scheduled"
)

// SummaryResult summarises one daily summary pass.
type SummaryResult struct {
	Sent   int `json:"sent"`
	Errors int `json:"errors"`
}

// Digest is one family's view of the coming days.
type Digest struct {
	Date     time.Time
	Today    []Event
	Tomorrow []Event
	Tests    []Event
}

// BuildDigest partitions events into today's, tomorrow's and the test events
// starting within the next seven days, all relative to the calendar day of now in loc.
func BuildDigest(events []Event, now time.Time, loc *time.Location) Digest {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	tomorrow := today.AddDate(0, 0, 1)
	dayAfter := today.AddDate(0, 0, 2)
	// Half-open: the tests window ends at the start of the eighth day.
	weekEnd := today.AddDate(0, 0, summaryWindowDays)

	sorted := append([]Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	digest := Digest{Date: today}
	for _, event := range sorted {
		start := event.Start
		switch {
		case within(start, today, tomorrow):
			digest.Today = append(digest.Today, event)
		case within(start, tomorrow, dayAfter):
			digest.Tomorrow = append(digest.Tomorrow, event)
		}
		if event.Category == CategoryTest && within(start, today, weekEnd) {
			digest.Tests = append(digest.Tests, event)
		}
	}
	return digest
}

func within(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

// Payload renders the digest for one recipient.
func (d Digest) Payload(name string, loc *time.Location, appURL string) Payload {
	if loc == nil {
		loc = time.Local
	}
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Good morning, %s!\n", name)

	b.WriteString("\nToday\n")
	writeEventLines(&b, d.Today, loc, summaryTimeLayout)
	b.WriteString("\nTomorrow\n")
	writeEventLines(&b, d.Tomorrow, loc, summaryTimeLayout)
	if len(d.Tests) > 0 {
		fmt.Fprintf(&b, "\nTests in the next %d days\n", summaryWindowDays)
		writeEventLines(&b, d.Tests, loc, summaryDateLayout)
	}

	payload := Payload{
		Title: "Daily Schedule - " + d.Date.Format(summaryDateLayout),
		Body:  strings.TrimRight(b.String(), "\n"),
		Tag:   "summary-" + d.Date.Format("2006-01-02"),
	}
	if appURL != "" {
		payload.URL = strings.TrimRight(appURL, "/") + "/dashboard"
	}
	return payload
}

func writeEventLines(b *strings.Builder, events []Event, loc *time.Location, layout string) {
	if len(events) == 0 {
		b.WriteString(nothingScheduled + "\n")
		return
	}
	for _, event := range events {
		when := "All day"
		if !event.AllDay || layout == summaryDateLayout {
			when = event.Start.In(loc).Format(layout)
		}
		b.WriteString(when + " " + event.Title)
		if event.PersonName != "" {
			b.WriteString(" (" + event.PersonName + ")")
		}
		b.WriteString("\n")
	}
}

// SendDailySummary sends one summary email to every user that belongs to a
// family. It does not deduplicate; callers invoke it at most once a day.
func (e *Engine) SendDailySummary(ctx context.Context) (SummaryResult, error) {
	if e == nil || e.events == nil || e.directory == nil || e.dispatcher == nil {
		return SummaryResult{Errors: 1}, ErrEngineNotConfigured
	}

	started := time.Now()
	now := e.now()
	logger := e.loggerFor(ctx, passSummary)

	var result SummaryResult
	defer func() {
		e.observer.ObservePass(passSummary, time.Since(started), result.Sent, result.Errors)
	}()

	recipients, err := e.directory.SummaryRecipients(ctx)
	if err != nil {
		result.Errors = 1
		logger.ErrorContext(ctx, "failed to load summary recipients", "error", err)
		return result, fmt.Errorf("load summary recipients: %w", err)
	}

	local := now.In(e.loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, e.loc)
	to := from.AddDate(0, 0, summaryWindowDays)

	digests := make(map[string]Digest)
	for _, recipient := range recipients {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if recipient.FamilyID == "" || recipient.Email == "" {
			continue
		}
		recipientLogger := logger.With("user_id", recipient.UserID, "family_id", recipient.FamilyID)

		digest, ok := digests[recipient.FamilyID]
		if !ok {
			events, err := e.events.FamilyEvents(ctx, recipient.FamilyID, from, to)
			if err != nil {
				result.Errors++
				recipientLogger.ErrorContext(ctx, "failed to load family events", "error", err)
				continue
			}
			digest = BuildDigest(events, now, e.loc)
			digests[recipient.FamilyID] = digest
		}

		err := e.dispatcher.Dispatch(ctx, ChannelEmail, recipient, digest.Payload(recipient.Name, e.loc, e.appURL))
		if errors.Is(err, ErrChannelUnavailable) {
			recipientLogger.DebugContext(ctx, "email channel unavailable, summary skipped")
			continue
		}
		e.observer.ObserveDelivery(ChannelEmail, err)
		if err != nil {
			result.Errors++
			recipientLogger.WarnContext(ctx, "failed to send daily summary", "error", err)
			continue
		}
		result.Sent++
	}

	logger.InfoContext(ctx, "daily summary completed", "recipients", len(recipients), "sent", result.Sent, "errors", result.Errors)
	return result, nil
}
