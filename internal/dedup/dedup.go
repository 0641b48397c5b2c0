// Package dedup merges shop entries from several roster sections into one
// canonical record per physical business.
package dedup

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/shopscan/internal/model"
)

const defaultPhoneRegion = "US"

// shopNamespace seeds the UUIDv5 shop ids so identical input yields identical ids.
var shopNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("shopscan.shop"))

// Result is the canonical record set plus the match-key index that built it.
type Result struct {
	Records []*model.ShopRecord
	// Index maps every match key seen to the ShopID that owns it. It is
	// complete once Dedup returns and is not modified afterwards.
	Index  map[string]string
	Merged int // entries folded into another entry's record
}

// Deduplicator matches entries on normalized (name, zip) and, failing that,
// on E.164 phone number. There is no fuzzy matching.
type Deduplicator struct {
	region string
}

// New creates a Deduplicator. phoneRegion is the default region used to
// parse phone numbers without a country code.
func New(phoneRegion string) *Deduplicator {
	if phoneRegion == "" {
		phoneRegion = defaultPhoneRegion
	}
	return &Deduplicator{region: strings.ToUpper(phoneRegion)}
}

// keyed is an entry with its match keys. founding is the key that names the
// entry: its name key, or its phone key when it has no name.
type keyed struct {
	entry    model.ShopEntry
	founding string
	keys     []string
}

// Dedup folds entries into canonical records. Entries sharing any match key
// belong to one record, transitively, so the grouping and the ShopIDs do not
// depend on input order. Records come out in the order their first entry was
// seen; for each field the earliest non-empty value wins.
func (d *Deduplicator) Dedup(entries []model.ShopEntry) *Result {
	fold := newFolder()
	links := newUnionFind()
	items := make([]keyed, 0, len(entries))

	for _, e := range entries {
		var keys []string
		for _, k := range []string{fold.nameKey(e.AccountName, e.BillingZip), d.phoneKey(e.Phone)} {
			if k != "" {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			zap.L().Warn("dedup: entry has no match key, skipping",
				zap.String("section", e.Section),
				zap.Int("row", e.Row),
			)
			continue
		}
		for _, k := range keys {
			links.union(keys[0], k)
		}
		items = append(items, keyed{entry: e, founding: keys[0], keys: keys})
	}

	var roots []string
	groups := make(map[string][]keyed)
	for _, it := range items {
		root := links.find(it.founding)
		if _, ok := groups[root]; !ok {
			roots = append(roots, root)
		}
		groups[root] = append(groups[root], it)
	}

	res := &Result{Index: make(map[string]string)}
	for _, root := range roots {
		rec := d.build(groups[root])
		for _, it := range groups[root] {
			for _, k := range it.keys {
				res.Index[k] = rec.ShopID
			}
		}
		res.Records = append(res.Records, rec)
		res.Merged += len(groups[root]) - 1
	}

	return res
}

// build folds one group, in input order, into a record. The ShopID comes
// from the smallest founding key in the group.
func (d *Deduplicator) build(group []keyed) *model.ShopRecord {
	founding := group[0].founding
	for _, it := range group[1:] {
		if it.founding < founding {
			founding = it.founding
		}
	}

	first := group[0].entry
	rec := &model.ShopRecord{
		ShopID:      uuid.NewSHA1(shopNamespace, []byte(founding)).String(),
		AccountName: first.AccountName,
		BillingCity: first.BillingCity,
		BillingZip:  first.BillingZip,
		Phone:       first.Phone,
		Sections:    []string{first.Section},
	}
	for _, it := range group[1:] {
		d.merge(rec, it.entry)
	}
	return rec
}

func (d *Deduplicator) merge(rec *model.ShopRecord, e model.ShopEntry) {
	if !slices.Contains(rec.Sections, e.Section) {
		rec.Sections = append(rec.Sections, e.Section)
	}

	mergeField(rec, "AccountName", &rec.AccountName, e.AccountName, nil)
	mergeField(rec, "BillingCity", &rec.BillingCity, e.BillingCity, nil)
	mergeField(rec, "BillingZip", &rec.BillingZip, e.BillingZip, nil)
	mergeField(rec, "Phone", &rec.Phone, e.Phone, func(a, b string) bool {
		pa, pb := d.normalizePhone(a), d.normalizePhone(b)
		if pa != "" && pb != "" {
			return pa == pb
		}
		return a == b
	})
}

// mergeField keeps the earliest non-empty value and notes a conflict when
// both sides are non-empty and not equal.
func mergeField(rec *model.ShopRecord, name string, kept *string, incoming string, equal func(a, b string) bool) {
	if incoming == "" {
		return
	}
	if *kept == "" {
		*kept = incoming
		return
	}
	same := *kept == incoming
	if equal != nil {
		same = equal(*kept, incoming)
	}
	if !same {
		rec.AddNote(fmt.Sprintf("conflicting %s: merged as '%s', discarded '%s'", name, *kept, incoming))
	}
}

func (d *Deduplicator) phoneKey(raw string) string {
	p := d.normalizePhone(raw)
	if p == "" {
		return ""
	}
	return "phone:" + p
}

// normalizePhone formats a phone as E.164, or returns "" if it is not a
// valid number for the region.
func (d *Deduplicator) normalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	number, err := phonenumbers.Parse(raw, d.region)
	if err != nil {
		return ""
	}
	if !phonenumbers.IsValidNumber(number) {
		return ""
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

// folder normalizes text for match keys: NFKC, Unicode case folding and
// collapsed whitespace. A cases.Caser is stateful, so one folder serves a
// single Dedup call.
type folder struct {
	caser cases.Caser
}

func newFolder() *folder {
	return &folder{caser: cases.Fold()}
}

func (f *folder) fold(s string) string {
	s = f.caser.String(norm.NFKC.String(s))
	return strings.Join(strings.Fields(s), " ")
}

func (f *folder) nameKey(name, zip string) string {
	n := f.fold(name)
	if n == "" {
		return ""
	}
	return "name:" + n + "|" + f.fold(zip)
}

// NameKey exposes the primary match key for callers that need to test
// whether two entries would merge.
func NameKey(name, zip string) string {
	return newFolder().nameKey(name, zip)
}

// unionFind groups match keys that appeared together on an entry.
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string)}
}

func (u *unionFind) find(k string) string {
	p, ok := u.parent[k]
	if !ok {
		u.parent[k] = k
		return k
	}
	if p == k {
		return k
	}
	root := u.find(p)
	u.parent[k] = root
	return root
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}
