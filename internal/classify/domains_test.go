package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/shopscan/internal/config"
	"github.com/sells-group/shopscan/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewDomainSet_Normalizes(t *testing.T) {
	set, err := NewDomainSet([]string{" DoorDash.com ", "www.grubhub.com", "*.toasttab.com", "doordash.com", "", ".slicelife.com."}, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"doordash.com", "grubhub.com", "slicelife.com", "toasttab.com"}, set.Domains())
	assert.Equal(t, MatchSuffix, set.Policy())
	assert.Equal(t, 4, set.Len())
}

func TestNewDomainSet_URLEntries(t *testing.T) {
	set, err := NewDomainSet([]string{
		"https://www.UberEats.com/",
		"http://order.toasttab.com:443/online?x=1",
		"ubereats.com",
	}, MatchSuffix)
	require.NoError(t, err)
	assert.Equal(t, []string{"order.toasttab.com", "ubereats.com"}, set.Domains())

	ordering, note := Classify("https://www.ubereats.com/store/tonys", model.PresenceConfirmed, set)
	assert.Equal(t, model.OrderingThirdParty, ordering)
	assert.Contains(t, note, "(ubereats.com)")
}

func TestNewDomainSet_RejectsUnparseable(t *testing.T) {
	for _, bad := range []string{"uber eats.com", "https://", "*."} {
		_, err := NewDomainSet([]string{"doordash.com", bad}, MatchSuffix)
		require.Error(t, err, bad)
		assert.Contains(t, err.Error(), "invalid third-party domain")
	}
}

func TestNewDomainSet_Defaults(t *testing.T) {
	set, err := NewDomainSet([]string{"doordash.com"}, "")
	require.NoError(t, err)

	assert.Equal(t, MatchSuffix, set.Policy())
	assert.Equal(t, 1, set.Len())
}

func TestDomainSet_Match(t *testing.T) {
	set, err := NewDomainSet([]string{"ubereats.com"}, MatchSuffix)
	require.NoError(t, err)

	entry, ok := set.Match("store.ubereats.com")
	assert.True(t, ok)
	assert.Equal(t, "ubereats.com", entry)

	_, ok = set.Match("UBEREATS.COM.")
	assert.True(t, ok)

	_, ok = set.Match("notubereats.com")
	assert.False(t, ok)

	_, ok = set.Match("ubereats.com.evil.io")
	assert.False(t, ok)
}

func TestLoadDomainsFile_Lines(t *testing.T) {
	path := writeFile(t, "domains.txt", "# aggregators\ntoasttab.com\n\n  chownow.com  # added 2025\n")

	got, err := LoadDomainsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"toasttab.com", "chownow.com"}, got)
}

func TestLoadDomainsFile_YAMLList(t *testing.T) {
	path := writeFile(t, "domains.yaml", "- toasttab.com\n- chownow.com\n")

	got, err := LoadDomainsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"toasttab.com", "chownow.com"}, got)
}

func TestLoadDomainsFile_YAMLMapping(t *testing.T) {
	path := writeFile(t, "domains.yml", "domains:\n  - toasttab.com\n")

	got, err := LoadDomainsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"toasttab.com"}, got)
}

func TestLoadDomainsFile_Missing(t *testing.T) {
	_, err := LoadDomainsFile(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read domains file")
}

func TestLoadDomainsFile_BadYAML(t *testing.T) {
	path := writeFile(t, "domains.yaml", "domains: [unclosed\n")

	_, err := LoadDomainsFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse domains file")
}

func TestFromConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		set, err := FromConfig(config.ClassifyConfig{})
		require.NoError(t, err)
		assert.Equal(t, len(config.DefaultThirdPartyDomains), set.Len())
		_, ok := set.Match("slicelife.com")
		assert.True(t, ok)
	})

	t.Run("configured list plus file", func(t *testing.T) {
		path := writeFile(t, "extra.txt", "toasttab.com\n")
		set, err := FromConfig(config.ClassifyConfig{
			ThirdPartyDomains: []string{"doordash.com"},
			DomainsFile:       path,
			Match:             "exact",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"doordash.com", "toasttab.com"}, set.Domains())
		assert.Equal(t, MatchExact, set.Policy())
	})

	t.Run("bad configured entry", func(t *testing.T) {
		_, err := FromConfig(config.ClassifyConfig{ThirdPartyDomains: []string{"https://www.UberEats.com/", "uber eats.com"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "uber eats.com")
	})

	t.Run("url entries in file", func(t *testing.T) {
		path := writeFile(t, "extra.txt", "https://www.Toasttab.com/order\n")
		set, err := FromConfig(config.ClassifyConfig{ThirdPartyDomains: []string{"doordash.com"}, DomainsFile: path})
		require.NoError(t, err)
		assert.Equal(t, []string{"doordash.com", "toasttab.com"}, set.Domains())
	})

	t.Run("unreadable file", func(t *testing.T) {
		_, err := FromConfig(config.ClassifyConfig{DomainsFile: "/does/not/exist"})
		assert.Error(t, err)
	})

	t.Run("does not alias defaults", func(t *testing.T) {
		before := append([]string(nil), config.DefaultThirdPartyDomains...)
		path := writeFile(t, "extra.txt", "toasttab.com\n")
		_, err := FromConfig(config.ClassifyConfig{DomainsFile: path})
		require.NoError(t, err)
		assert.Equal(t, before, config.DefaultThirdPartyDomains)
	})
}
