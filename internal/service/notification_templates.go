package service

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/noah-isme/provider-admission-api/internal/models"
)

const brandName = "Provider Network"

type notificationCopy struct {
	subject    string
	heading    string
	paragraphs []string
}

var notificationCopies = map[models.ApplicationStatus]notificationCopy{
	models.ApplicationStatusSubmitted: {
		subject: "We received your provider application",
		heading: "Application received",
		paragraphs: []string{
			"Thanks for applying to join the %s. Your application has been submitted and scored.",
			"Our team will review it shortly. You will hear from us as soon as the status changes.",
		},
	},
	models.ApplicationStatusInReview: {
		subject: "Your provider application is under review",
		heading: "Review in progress",
		paragraphs: []string{
			"A member of the %s team has started reviewing your application.",
			"Reviews usually take a few business days. No action is needed from you right now.",
		},
	},
	models.ApplicationStatusApproved: {
		subject: "Your provider application has been approved",
		heading: "Welcome aboard",
		paragraphs: []string{
			"Congratulations! Your application to the %s has been approved.",
			"Your provider profile is now visible to founders. Sign in to complete your listing.",
		},
	},
	models.ApplicationStatusRejected: {
		subject: "Update on your provider application",
		heading: "Application decision",
		paragraphs: []string{
			"Thank you for your interest in the %s. After careful review we are unable to approve your application at this time.",
			"You are welcome to apply again once your experience or portfolio has grown.",
		},
	},
}

// renderNotification builds the subject and HTML body for a status. Rejections carry the reviewer notes when present.
func renderNotification(req models.NotificationRequest) (models.NotificationTemplate, error) {
	copyText, ok := notificationCopies[req.Status]
	if !ok {
		return models.NotificationTemplate{}, fmt.Errorf("no notification template for status %q", req.Status)
	}

	name := strings.TrimSpace(req.RecipientName)
	if name == "" {
		name = "there"
	}

	var body strings.Builder
	body.WriteString(`<div style="font-family:Arial,Helvetica,sans-serif;max-width:600px;margin:0 auto;color:#111827;">`)
	body.WriteString(`<h2 style="margin:0 0 18px 0;">`)
	body.WriteString(template.HTMLEscapeString(copyText.heading))
	body.WriteString(`</h2>`)
	writeParagraph(&body, "Hi "+name+",")
	for _, p := range copyText.paragraphs {
		writeParagraph(&body, fmt.Sprintf(p, brandName))
	}
	if req.Status == models.ApplicationStatusRejected && req.ReviewerNotes != nil && strings.TrimSpace(*req.ReviewerNotes) != "" {
		body.WriteString(`<div style="margin:0 0 18px 0;padding:12px 16px;border:1px solid #e5e7eb;border-radius:8px;background-color:#f9fafb;">`)
		body.WriteString(`<p style="margin:0 0 8px 0;font-size:13px;color:#6b7280;">Reviewer notes</p>`)
		writeParagraph(&body, *req.ReviewerNotes)
		body.WriteString(`</div>`)
	}
	writeParagraph(&body, "Reference: "+req.ApplicationID)
	body.WriteString(`</div>`)

	return models.NotificationTemplate{Subject: copyText.subject, HTML: body.String()}, nil
}

func writeParagraph(b *strings.Builder, text string) {
	escaped := template.HTMLEscapeString(strings.TrimSpace(text))
	escaped = strings.ReplaceAll(strings.ReplaceAll(escaped, "\r\n", "\n"), "\n", "<br />")
	b.WriteString(`<p style="margin:0 0 18px 0;line-height:1.7;word-break:break-word;">`)
	b.WriteString(escaped)
	b.WriteString(`</p>`)
}
