package classify

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/shopscan/internal/config"
)

// MatchPolicy selects how a website host is compared to set entries.
type MatchPolicy string

const (
	// MatchSuffix treats the entry and any subdomain of it as third-party.
	MatchSuffix MatchPolicy = "suffix"
	// MatchExact treats only the entry itself as third-party.
	MatchExact MatchPolicy = "exact"
)

// DomainSet is an immutable set of third-party ordering domains.
type DomainSet struct {
	domains []string
	policy  MatchPolicy
}

// NewDomainSet normalizes and deduplicates domains. Entries may be bare
// hosts, wildcards or full URLs; blank entries are skipped and an entry with
// no usable host is an error. An empty policy means MatchSuffix.
func NewDomainSet(domains []string, policy MatchPolicy) (*DomainSet, error) {
	if policy == "" {
		policy = MatchSuffix
	}
	seen := make(map[string]struct{}, len(domains))
	out := make([]string, 0, len(domains))
	for _, raw := range domains {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		d, err := normalizeEntry(raw)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Strings(out)
	return &DomainSet{domains: out, policy: policy}, nil
}

// FromConfig builds the set from classify config: the configured list (or
// the defaults when unset) plus the optional domains file.
func FromConfig(cfg config.ClassifyConfig) (*DomainSet, error) {
	domains := cfg.ThirdPartyDomains
	if len(domains) == 0 {
		domains = config.DefaultThirdPartyDomains
	}
	domains = append([]string(nil), domains...)

	if cfg.DomainsFile != "" {
		extra, err := LoadDomainsFile(cfg.DomainsFile)
		if err != nil {
			return nil, err
		}
		domains = append(domains, extra...)
	}
	return NewDomainSet(domains, MatchPolicy(cfg.Match))
}

// LoadDomainsFile reads extra domains. Files ending in .yaml or .yml hold a
// YAML list (or a mapping with a "domains" list); anything else is one
// domain per line with # comments.
func LoadDomainsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "classify: read domains file %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAMLDomains(data, path)
	default:
		return parseLineDomains(data), nil
	}
}

func parseYAMLDomains(data []byte, path string) ([]string, error) {
	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc struct {
		Domains []string `yaml:"domains"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "classify: parse domains file %s", path)
	}
	return doc.Domains, nil
}

func parseLineDomains(data []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Domains returns the sorted entries.
func (s *DomainSet) Domains() []string {
	return append([]string(nil), s.domains...)
}

// Policy returns the match policy.
func (s *DomainSet) Policy() MatchPolicy {
	return s.policy
}

// Len returns the number of entries.
func (s *DomainSet) Len() int {
	return len(s.domains)
}

// Match reports the entry host falls under, if any. Suffix matches only on
// label boundaries: ubereats.com matches store.ubereats.com, never
// notubereats.com.
func (s *DomainSet) Match(host string) (string, bool) {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, d := range s.domains {
		if host == d {
			return d, true
		}
		if s.policy == MatchSuffix && strings.HasSuffix(host, "."+d) {
			return d, true
		}
	}
	return "", false
}

// normalizeEntry reduces an entry to the host form ExtractDomain gives a
// website, so "https://www.UberEats.com/" and "ubereats.com" are the same.
func normalizeEntry(raw string) (string, error) {
	d := strings.TrimPrefix(strings.TrimSpace(raw), "*.")
	host, err := ExtractDomain(d)
	if err != nil {
		return "", eris.Wrapf(err, "classify: invalid third-party domain %q", raw)
	}
	host = strings.Trim(strings.TrimPrefix(host, "*."), ".")
	if host == "" || strings.Contains(host, "*") {
		return "", eris.Errorf("classify: invalid third-party domain %q", raw)
	}
	return host, nil
}
