package model

import "time"

// NotificationPrefs controls which channels a project's analysis results are
// delivered to and which findings they include.
type NotificationPrefs struct {
	EmailOnPush bool
	EmailOnPR   bool
	// MinSeverity filters findings included in email reports. Findings below
	// the threshold are counted on the run but omitted from the report body.
	MinSeverity Severity
	// ExtraRecipients are notified in addition to the project owner's email.
	ExtraRecipients []string
}

// DefaultNotificationPrefs returns the preferences applied to a newly
// connected project.
func DefaultNotificationPrefs() NotificationPrefs {
	return NotificationPrefs{
		EmailOnPush:     true,
		EmailOnPR:       false,
		MinSeverity:     SeverityInfo,
		ExtraRecipients: []string{},
	}
}

// Project is a tenant's monitored repository.
type Project struct {
	ID         string
	UserID     string
	OwnerEmail string

	RepoOwner string
	RepoName  string
	// GitHubRepoID is GitHub's numeric repository id, used to resolve the
	// destination project of an incoming webhook delivery.
	GitHubRepoID int64

	// WebhookSecret is the per-project HMAC key shared with GitHub at hook
	// creation time. WebhookID is GitHub's hook id, kept for teardown.
	WebhookSecret string
	WebhookID     int64

	Status      ProjectStatus
	CustomRules []string
	Prefs       NotificationPrefs

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RepoFullName returns the repository coordinates as "owner/name".
func (p Project) RepoFullName() string {
	return p.RepoOwner + "/" + p.RepoName
}

// Recipients returns the full email delivery list: the owner's primary email
// followed by any configured extra recipients.
func (p Project) Recipients() []string {
	out := make([]string, 0, 1+len(p.Prefs.ExtraRecipients))
	if p.OwnerEmail != "" {
		out = append(out, p.OwnerEmail)
	}
	out = append(out, p.Prefs.ExtraRecipients...)
	return out
}
