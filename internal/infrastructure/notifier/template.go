// Package notifier delivers inactivity reminder emails.
package notifier

import (
	"bytes"
	"fmt"
	htmltmpl "html/template"
	texttmpl "text/template"

	"github.com/tle-eliminators/cf-tracker/internal/domain/student"
	"github.com/tle-eliminators/cf-tracker/pkg/timeutil"
)

// ReminderSubject is the subject line of every inactivity reminder.
const ReminderSubject = "Reminder: Continue Your Codeforces Practice"

// NoSubmission is shown instead of a date when the student never submitted.
const NoSubmission = "N/A"

// Message is a rendered email ready for a provider.
type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Text    string
	HTML    string
}

type reminderData struct {
	Name           string
	ThresholdDays  int
	CurrentRating  int
	SolvedProblems int
	LastSubmission string
	TeamName       string
}

const reminderText = `Hello {{.Name}},

We noticed that you haven't solved any problems on Codeforces in the past {{.ThresholdDays}} days.
Regular practice is key to improving your programming skills. We encourage you to get back to solving problems!

Your current stats:
- Current Rating: {{.CurrentRating}}
- Total Problems Solved: {{.SolvedProblems}}
- Last Submission: {{.LastSubmission}}

Keep up the good work!

Best regards,
{{.TeamName}}

If you'd like to stop receiving these reminders, please contact your coach or update your preferences.
`

const reminderHTML = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Hello {{.Name}},</h2>
  <p>We noticed that you haven't solved any problems on Codeforces in the past {{.ThresholdDays}} days.</p>
  <p>Regular practice is key to improving your programming skills. We encourage you to get back to solving problems!</p>
  <p>Your current stats:</p>
  <ul>
    <li>Current Rating: {{.CurrentRating}}</li>
    <li>Total Problems Solved: {{.SolvedProblems}}</li>
    <li>Last Submission: {{.LastSubmission}}</li>
  </ul>
  <p>Keep up the good work!</p>
  <p>Best regards,<br>{{.TeamName}}</p>
  <hr>
  <p style="font-size: 12px; color: #666;">
    If you'd like to stop receiving these reminders, please contact your coach or update your preferences.
  </p>
</div>
`

var (
	textTemplate = texttmpl.Must(texttmpl.New("reminder.txt").Option("missingkey=error").Parse(reminderText))
	htmlTemplate = htmltmpl.Must(htmltmpl.New("reminder.gohtml").Option("missingkey=error").Parse(reminderHTML))
)

// Renderer builds reminder messages.
type Renderer struct {
	TeamName      string
	ThresholdDays int
}

// Render builds the reminder for st. The HTML body escapes student-supplied text.
func (r Renderer) Render(st *student.Student) (*Message, error) {
	data := reminderData{
		Name:           st.Name,
		ThresholdDays:  r.ThresholdDays,
		CurrentRating:  st.CurrentRating,
		SolvedProblems: st.SolvedProblems,
		LastSubmission: timeutil.FormatDateOr(st.LastSubmissionDate, NoSubmission),
		TeamName:       r.TeamName,
	}

	var text, html bytes.Buffer
	if err := textTemplate.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("rendering text reminder: %w", err)
	}
	if err := htmlTemplate.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("rendering html reminder: %w", err)
	}

	return &Message{
		ToName:  st.Name,
		ToEmail: st.Email,
		Subject: ReminderSubject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
