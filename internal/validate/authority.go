package validate

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/truthgate/internal/model"
)

// AuthorityClassifier assigns source tiers from URLs and source names
type AuthorityClassifier struct {
	domainMap    map[string]model.SourceTier
	sourceMap    map[string]model.SourceTier
	pathPatterns []*compiledPattern
}

type compiledPattern struct {
	pattern *regexp.Regexp
	tier    model.SourceTier
}

// NewAuthorityClassifier creates a new authority classifier
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		config = &model.DefaultConfig().Authority
	}

	classifier := &AuthorityClassifier{
		domainMap: make(map[string]model.SourceTier),
		sourceMap: make(map[string]model.SourceTier),
	}

	for domain, tier := range config.DomainMap {
		if t := ParseTier(tier); t.Valid() {
			classifier.domainMap[strings.ToLower(domain)] = t
		}
	}
	for name, tier := range config.SourceMap {
		if t := ParseTier(tier); t.Valid() {
			classifier.sourceMap[strings.ToLower(name)] = t
		}
	}

	for _, pp := range config.PathPatterns {
		re, err := regexp.Compile(pp.Pattern)
		if err != nil {
			continue
		}
		if t := ParseTier(pp.Tier); t.Valid() {
			classifier.pathPatterns = append(classifier.pathPatterns, &compiledPattern{pattern: re, tier: t})
		}
	}

	return classifier
}

// Classify returns the tier of a record's source.
// The most specific configured domain wins, then the source name,
// then path patterns, then the .gov suffix.
func (a *AuthorityClassifier) Classify(sourceName, rawURL string) model.SourceTier {
	parsed, err := url.Parse(rawURL)
	if err == nil {
		host := strings.ToLower(parsed.Hostname())

		// Walk from the full host towards the registrable domain
		for h := host; h != ""; {
			if tier, ok := a.domainMap[h]; ok {
				return tier
			}
			idx := strings.Index(h, ".")
			if idx < 0 {
				break
			}
			h = h[idx+1:]
		}

		if tier, ok := a.sourceMap[strings.ToLower(sourceName)]; ok {
			return tier
		}

		for _, cp := range a.pathPatterns {
			if cp.pattern.MatchString(parsed.Path) {
				return cp.tier
			}
		}

		if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".mil") {
			return model.TierOfficial
		}
	} else if tier, ok := a.sourceMap[strings.ToLower(sourceName)]; ok {
		return tier
	}

	return model.TierOther
}

// ParseTier converts a tier name to a SourceTier. Unknown names return "".
func ParseTier(tier string) model.SourceTier {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case "official", "4":
		return model.TierOfficial
	case "peer-reviewed", "peer_reviewed", "peerreviewed", "3":
		return model.TierPeerReviewed
	case "news", "2":
		return model.TierNews
	case "other", "1":
		return model.TierOther
	default:
		return ""
	}
}
