// internal/notification/templates.go

package notifications

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"

	"github.com/imadgeboyega/gratitude-backend/internal/models"
)

const (
	// WeeklySummarySubject is the subject line of every weekly summary email
	WeeklySummarySubject = "Your Weekly Gratitude Summary"

	entryTimeLayout = "Mon Jan 2, 3:04 PM"
)

// SummaryLine is one rendered entry in a weekly summary
type SummaryLine struct {
	Text string
	When string
}

type summaryData struct {
	Title string
	Lines []SummaryLine
}

const summaryTextTemplate = `Your Weekly Gratitude Summary 🌟
{{if .Lines}}
Here are your gratitude moments from the past week:
{{range .Lines}}
- {{.Text}} ({{.When}}){{end}}

Keep cultivating gratitude! See you next week.
{{else}}
We missed you this week! Looking forward to your gratitude entries next week. 🌟
{{end}}`

const summaryHTMLTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .header {
            background: linear-gradient(135deg, #f6d365 0%, #fda085 100%);
            color: white;
            padding: 30px;
            text-align: center;
            border-radius: 10px 10px 0 0;
        }
        .content {
            background: white;
            padding: 30px;
            border: 1px solid #e0e0e0;
            border-radius: 0 0 10px 10px;
        }
        .when {
            color: #888;
            font-size: 13px;
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Title}} 🌟</h1>
    </div>
    <div class="content">
    {{- if .Lines}}
        <p>Here are your gratitude moments from the past week:</p>
        <ul>
        {{- range .Lines}}
            <li>{{.Text}} <span class="when">({{.When}})</span></li>
        {{- end}}
        </ul>
        <p>Keep cultivating gratitude! See you next week.</p>
    {{- else}}
        <p>We missed you this week! Looking forward to your gratitude entries next week. 🌟</p>
    {{- end}}
    </div>
</body>
</html>
`

var (
	summaryText = template.Must(template.New("summary.txt").Parse(summaryTextTemplate))
	summaryHTML = htmltemplate.Must(htmltemplate.New("summary.html").Parse(summaryHTMLTemplate))
)

// SummaryLines formats entries for display in loc, preserving their order
func SummaryLines(entries []models.Entry, loc *time.Location) []SummaryLine {
	if loc == nil {
		loc = time.UTC
	}
	lines := make([]SummaryLine, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, SummaryLine{
			Text: e.Text,
			When: e.Timestamp.In(loc).Format(entryTimeLayout),
		})
	}
	return lines
}

// RenderWeeklySummary renders the plain text and HTML bodies of a weekly summary
func RenderWeeklySummary(entries []models.Entry, loc *time.Location) (text, html string, err error) {
	data := summaryData{
		Title: WeeklySummarySubject,
		Lines: SummaryLines(entries, loc),
	}

	var tbuf bytes.Buffer
	if err := summaryText.Execute(&tbuf, data); err != nil {
		return "", "", fmt.Errorf("failed to render summary text: %v", err)
	}

	var hbuf bytes.Buffer
	if err := summaryHTML.Execute(&hbuf, data); err != nil {
		return "", "", fmt.Errorf("failed to render summary html: %v", err)
	}

	return tbuf.String(), hbuf.String(), nil
}
