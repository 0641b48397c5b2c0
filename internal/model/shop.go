package model

import "strings"

// Presence records what the website resolver learned about a shop's website.
type Presence string

const (
	PresenceUnresolved      Presence = ""                 // resolver has not run
	PresenceConfirmed       Presence = "confirmed"        // lookup returned a website
	PresenceConfirmedAbsent Presence = "confirmed_absent" // lookup succeeded, no website
	PresenceUnverified      Presence = "unverified"       // lookup failed after retries
)

// Resolved reports whether the resolver has produced an outcome.
func (p Presence) Resolved() bool {
	return p != PresenceUnresolved
}

// Column renders the presence for the HasWebsite output column. Confirmed and
// ConfirmedAbsent collapse to true/false; Unverified stays distinguishable.
func (p Presence) Column() string {
	switch p {
	case PresenceConfirmed:
		return "true"
	case PresenceUnverified:
		return "unverified"
	default:
		return "false"
	}
}

// Ordering is the online-ordering posture of a shop.
type Ordering string

const (
	OrderingUnclassified Ordering = ""
	OrderingDirect       Ordering = "direct"
	OrderingThirdParty   Ordering = "third_party"
	OrderingNone         Ordering = "none"
)

// ShopEntry is one spreadsheet row before deduplication.
type ShopEntry struct {
	Section     string `json:"section"`
	Row         int    `json:"row"`
	SourceID    string `json:"source_id,omitempty"`
	AccountName string `json:"account_name"`
	BillingCity string `json:"billing_city,omitempty"`
	BillingZip  string `json:"billing_zip,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// ShopRecord is the canonical, deduplicated record for one physical business.
type ShopRecord struct {
	ShopID         string   `json:"shop_id"`
	AccountName    string   `json:"account_name"`
	BillingCity    string   `json:"billing_city,omitempty"`
	BillingZip     string   `json:"billing_zip,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	Sections       []string `json:"sections,omitempty"`
	Website        string   `json:"website,omitempty"`
	HasWebsite     Presence `json:"has_website,omitempty"`
	DirectOrdering Ordering `json:"direct_ordering,omitempty"`
	Note           string   `json:"note,omitempty"`
}

// AddNote appends a note fragment, separating fragments with "; ".
func (r *ShopRecord) AddNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if r.Note == "" {
		r.Note = note
		return
	}
	r.Note += "; " + note
}

// Classified reports whether the record has been through both the resolver
// and the classifier.
func (r *ShopRecord) Classified() bool {
	return r.HasWebsite.Resolved() && r.DirectOrdering != OrderingUnclassified
}

// OutreachMessage is the generated outreach text for one shop.
type OutreachMessage struct {
	ShopID       string `json:"shop_id"`
	EmailSubject string `json:"email_subject"`
	EmailBody    string `json:"email_body"`
	SmsBody      string `json:"sms_body"`
}
