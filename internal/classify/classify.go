// Package classify decides whether a shop takes orders directly, through a
// third-party aggregator, or not online at all.
package classify

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/shopscan/internal/model"
)

// NoteUnparseable marks a confirmed website whose host could not be read.
const NoteUnparseable = "unparseable website"

// ExtractDomain returns the lowercased host of website without scheme,
// port, path, query, or a leading www.
func ExtractDomain(website string) (string, error) {
	raw := strings.TrimSpace(website)
	if raw == "" {
		return "", eris.New("classify: empty website")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrapf(err, "classify: parse %q", website)
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	host = strings.TrimPrefix(host, "www.")
	if host == "" || strings.ContainsAny(host, " /\\") {
		return "", eris.Errorf("classify: no host in %q", website)
	}
	return host, nil
}

// Classify maps a resolved website onto an ordering posture and an optional
// note. Only a confirmed website can be Direct or ThirdParty.
func Classify(website string, presence model.Presence, set *DomainSet) (model.Ordering, string) {
	if presence != model.PresenceConfirmed {
		return model.OrderingNone, ""
	}
	host, err := ExtractDomain(website)
	if err != nil {
		return model.OrderingThirdParty, NoteUnparseable
	}
	if entry, ok := set.Match(host); ok {
		return model.OrderingThirdParty, "website appears to be third-party ordering (" + entry + ")"
	}
	return model.OrderingDirect, ""
}

// Apply classifies rec in place.
func Apply(rec *model.ShopRecord, set *DomainSet) {
	ordering, note := Classify(rec.Website, rec.HasWebsite, set)
	rec.DirectOrdering = ordering
	rec.AddNote(note)
}
