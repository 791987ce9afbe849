// Package registry loads the Domain and Site Registries from YAML
// configuration files: a curated, config-load-time set of topical Domains
// and the Sites crawled under them, immutable for the life of the process.
package registry

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
	crawlerrors "github.com/fcollova/tanea-crawler/internal/core/errors"
)

// domainFile mirrors spec.md §6's domain definition tree.
type domainFile struct {
	Domains map[string]domainEntry `yaml:"domains"`
}

type domainEntry struct {
	Name                   string         `yaml:"name"`
	Description            string         `yaml:"description"`
	Active                 bool           `yaml:"active"`
	Keywords               []string       `yaml:"keywords"`
	MaxResults             maxResultsFile `yaml:"max_results"`
	VectorCollectionPrefix string         `yaml:"vector_collection_prefix"`
	Policy                 policyFile     `yaml:"policy"`
}

type maxResultsFile struct {
	Dev  int `yaml:"dev"`
	Prod int `yaml:"prod"`
}

type policyFile struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxConcurrent     int     `yaml:"max_concurrent"`
	MaxPagesPerSite   int     `yaml:"max_pages_per_site"`
	MaxDepth          int     `yaml:"max_depth"`
	RefreshAfterHours int     `yaml:"refresh_after_hours"`
	MaxFailures       int     `yaml:"max_failures"`
}

// siteFile mirrors spec.md §6's site definition tree.
type siteFile struct {
	Sites         map[string]siteEntry `yaml:"sites"`
	DomainMapping map[string][]string  `yaml:"domain_mapping"`
}

type siteEntry struct {
	Name           string                   `yaml:"name"`
	BaseURL        string                   `yaml:"base_url"`
	Domain         string                   `yaml:"domain"`
	Active         bool                     `yaml:"active"`
	DiscoveryPages map[string]discoveryPage `yaml:"discovery_pages"`
	Priority       int                      `yaml:"priority"`
	PolicyOverride *policyFile              `yaml:"policy_override"`
}

type discoveryPage struct {
	URL      string `yaml:"url"`
	Active   bool   `yaml:"active"`
	MaxLinks int    `yaml:"max_links"`
}

// Registry holds the loaded Domains and Sites, keyed by id.
type Registry struct {
	domains  map[string]domain.Domain
	sites    map[string]domain.Site
	byDomain map[string][]string // domainID -> siteIDs
}

// Load reads domainsPath and sitesPath and builds a Registry. env selects
// which max_results column feeds a Domain's result cap (dev or prod).
func Load(domainsPath, sitesPath, env string) (*Registry, error) {
	var df domainFile
	if err := readYAML(domainsPath, &df); err != nil {
		return nil, fmt.Errorf("load domains: %w", err)
	}

	var sf siteFile
	if err := readYAML(sitesPath, &sf); err != nil {
		return nil, fmt.Errorf("load sites: %w", err)
	}

	domains := make(map[string]domain.Domain, len(df.Domains))
	for id, d := range df.Domains {
		domains[id] = domain.Domain{
			ID:         id,
			Name:       d.Name,
			Active:     d.Active,
			Keywords:   d.Keywords,
			Policy:     toPolicy(d.Policy),
			MaxResults: maxResultsFor(d.MaxResults, env),
		}
	}

	sites := make(map[string]domain.Site, len(sf.Sites))
	byDomain := make(map[string][]string)
	for id, s := range sf.Sites {
		var hints []string
		for _, page := range s.DiscoveryPages {
			if page.Active {
				hints = append(hints, page.URL)
			}
		}
		var override *domain.Policy
		if s.PolicyOverride != nil {
			p := toPolicy(*s.PolicyOverride)
			override = &p
		}
		sites[id] = domain.Site{
			ID:             id,
			DomainID:       s.Domain,
			Name:           s.Name,
			BaseURL:        s.BaseURL,
			Active:         s.Active,
			DiscoveryHints: hints,
			PolicyOverride: override,
		}
		byDomain[s.Domain] = append(byDomain[s.Domain], id)
	}
	for domainID, ids := range sf.DomainMapping {
		byDomain[domainID] = mergeUnique(byDomain[domainID], ids)
	}

	return &Registry{domains: domains, sites: sites, byDomain: byDomain}, nil
}

func toPolicy(p policyFile) domain.Policy {
	return domain.Policy{
		RequestsPerSecond: p.RequestsPerSecond,
		MaxConcurrent:     p.MaxConcurrent,
		MaxPagesPerSite:   p.MaxPagesPerSite,
		MaxDepth:          p.MaxDepth,
		RefreshAfter:      hoursToDuration(p.RefreshAfterHours),
		MaxFailures:       p.MaxFailures,
	}
}

// Domain returns an active or inactive Domain by id.
func (r *Registry) Domain(id string) (domain.Domain, error) {
	d, ok := r.domains[id]
	if !ok {
		return domain.Domain{}, crawlerrors.ErrDomainNotFound
	}
	return d, nil
}

// Site returns a Site by id.
func (r *Registry) Site(id string) (domain.Site, error) {
	s, ok := r.sites[id]
	if !ok {
		return domain.Site{}, crawlerrors.ErrSiteNotFound
	}
	return s, nil
}

// ActiveDomains returns every Domain with Active = true.
func (r *Registry) ActiveDomains() []domain.Domain {
	var out []domain.Domain
	for _, d := range r.domains {
		if d.Active {
			out = append(out, d)
		}
	}
	return out
}

// SitesForDomain returns every active Site mapped to domainID.
func (r *Registry) SitesForDomain(domainID string) []domain.Site {
	var out []domain.Site
	for _, id := range r.byDomain[domainID] {
		if s, ok := r.sites[id]; ok && s.Active {
			out = append(out, s)
		}
	}
	return out
}

func mergeUnique(existing, add []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		seen[v] = struct{}{}
	}
	out := existing
	for _, v := range add {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func hoursToDuration(hours int) time.Duration {
	return time.Duration(hours) * time.Hour
}

// maxResultsFor picks the dev or prod result cap for a Domain based on the
// running environment; anything other than "prod" falls back to dev.
func maxResultsFor(m maxResultsFile, env string) int {
	if env == "prod" {
		return m.Prod
	}
	return m.Dev
}

func readYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
