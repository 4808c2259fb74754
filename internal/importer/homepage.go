package importer

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/shelf/internal/icon"
)

// homepageEntry is a single link in a Homepage bookmarks.yaml.
type homepageEntry struct {
	Icon        string `yaml:"icon"`
	Abbr        string `yaml:"abbr"`
	Href        string `yaml:"href"`
	Description string `yaml:"description"`
}

// The YAML structure is: - Group: [ - Name: [ { icon, abbr, href } ] ]
// Each link name maps to a list holding a single entry.
type (
	homepageGroup  map[string][]map[string][]homepageEntry
	homepageConfig []homepageGroup
)

var templateVar = regexp.MustCompile(`\{\{[^}]+\}\}`)

// stripTemplateVariables removes Homepage template variables from YAML
// Example: {{HOMEPAGE_VAR_GITEA_URL}} -> ""
func stripTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAll(data, []byte(`""`))
}

// ParseHomepage reads a Homepage bookmarks.yaml. Groups become categories,
// link names become titles and an abbreviation becomes a tag. Links without
// href, typically those whose href was a template variable, are dropped.
func ParseHomepage(data []byte) ([]Entry, error) {
	var cfg homepageConfig
	if err := yaml.Unmarshal(stripTemplateVariables(data), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse bookmarks yaml: %w", err)
	}

	var entries []Entry
	for _, group := range cfg {
		for groupName, links := range group {
			for _, link := range links {
				for name, list := range link {
					if len(list) == 0 {
						continue
					}
					e := list[0]
					href := strings.TrimSpace(e.Href)
					if href == "" {
						continue
					}

					entry := Entry{Category: strings.TrimSpace(groupName)}
					entry.Input.URL = href
					entry.Input.Title = strings.TrimSpace(name)
					entry.Input.Description = e.Description
					if icon.IsRemote(e.Icon) {
						entry.Input.Icon = e.Icon
					}
					if e.Abbr != "" {
						entry.Input.Tags = []string{e.Abbr}
					}
					entries = append(entries, entry)
				}
			}
		}
	}
	return entries, nil
}
