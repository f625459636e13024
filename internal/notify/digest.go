package notify

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DigestStats is a snapshot of unread state for the periodic digest.
type DigestStats struct {
	Conversations       int // conversations with at least one unread message
	UnreadMessages      int
	UnreadNotifications int
}

// BuildDigest formats an unread summary alert. Returns nil (suppressed) when
// everything is read: an empty digest is noise, not news.
func BuildDigest(stats DigestStats) *Alert {
	if stats.UnreadMessages == 0 && stats.UnreadNotifications == 0 {
		return nil
	}
	body := fmt.Sprintf("%s unread across %s", Pluralize(stats.UnreadMessages, "message"),
		Pluralize(stats.Conversations, "conversation"))
	if stats.UnreadNotifications > 0 {
		body += fmt.Sprintf(", plus %s", Pluralize(stats.UnreadNotifications, "notification"))
	}
	return &Alert{
		Title: "Unread digest",
		Body:  body,
		Count: stats.UnreadMessages + stats.UnreadNotifications,
	}
}

// Pluralize renders "1 new message" / "3 new messages" style phrases.
func Pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Returns 0 on parse error.
func NextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}
