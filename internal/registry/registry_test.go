package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const domainsYAML = `
domains:
  football:
    name: Football
    active: true
    keywords: [Inter, Juventus]
    max_results: { dev: 5, prod: 20 }
    policy: { requests_per_second: 1, max_concurrent: 2, max_pages_per_site: 100, max_depth: 2, refresh_after_hours: 24, max_failures: 3 }
  tech:
    name: Tech
    active: false
    keywords: [AI]
`

const sitesYAML = `
sites:
  gazzetta:
    name: Gazzetta
    base_url: https://example.gazzetta.test
    domain: football
    active: true
    priority: 1
    discovery_pages:
      calcio: { url: /calcio, active: true, max_links: 50 }
domain_mapping:
  football: [gazzetta]
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_BuildsDomainsAndSites(t *testing.T) {
	domainsPath := writeTemp(t, "domains.yaml", domainsYAML)
	sitesPath := writeTemp(t, "sites.yaml", sitesYAML)

	r, err := Load(domainsPath, sitesPath, "dev")
	require.NoError(t, err)

	football, err := r.Domain("football")
	require.NoError(t, err)
	assert.True(t, football.Active)
	assert.Equal(t, []string{"Inter", "Juventus"}, football.Keywords)
	assert.Equal(t, 2, football.Policy.MaxDepth)

	sites := r.SitesForDomain("football")
	require.Len(t, sites, 1)
	assert.Equal(t, "gazzetta", sites[0].ID)
	assert.Equal(t, []string{"/calcio"}, sites[0].DiscoveryHints)

	active := r.ActiveDomains()
	require.Len(t, active, 1)
	assert.Equal(t, "football", active[0].ID)
}

func TestLoad_UnknownDomainErrors(t *testing.T) {
	domainsPath := writeTemp(t, "domains.yaml", domainsYAML)
	sitesPath := writeTemp(t, "sites.yaml", sitesYAML)

	r, err := Load(domainsPath, sitesPath, "dev")
	require.NoError(t, err)

	_, err = r.Domain("basketball")
	require.Error(t, err)
}
