package scope

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/Sriram-PR/corpus-crawler/pkg/config"
	"github.com/Sriram-PR/corpus-crawler/pkg/utils"
)

// Filter decides crawl-eligibility of canonical URLs. It is immutable after construction
// and safe for concurrent use.
type Filter struct {
	allowedDomains     []string
	restrictedPaths    map[string]string
	trapPattern        *regexp.Regexp
	excludedSubstrings []string
	blacklist          map[string]struct{}
	disallowedPatterns []*regexp.Regexp
}

// NewFilter compiles the scope policy. cfg is expected to have passed ScopeConfig.Validate;
// empty rule lists simply disable the corresponding rule.
func NewFilter(cfg config.ScopeConfig) (*Filter, error) {
	f := &Filter{
		restrictedPaths: make(map[string]string, len(cfg.RestrictedPaths)),
		blacklist:       make(map[string]struct{}, len(cfg.BlacklistedExtensions)),
	}
	for _, d := range cfg.AllowedDomains {
		if d = strings.Trim(strings.ToLower(d), "."); d != "" {
			f.allowedDomains = append(f.allowedDomains, d)
		}
	}
	for host, prefix := range cfg.RestrictedPaths {
		f.restrictedPaths[strings.ToLower(host)] = strings.ToLower(prefix)
	}
	if cfg.TrapPattern != "" {
		re, err := regexp.Compile(cfg.TrapPattern)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid trap_pattern '%s': %v", utils.ErrConfigValidation, cfg.TrapPattern, err)
		}
		f.trapPattern = re
	}
	for _, s := range cfg.ExcludedSubstrings {
		if s != "" {
			f.excludedSubstrings = append(f.excludedSubstrings, strings.ToLower(s))
		}
	}
	for _, ext := range cfg.BlacklistedExtensions {
		f.blacklist[strings.TrimPrefix(strings.ToLower(ext), ".")] = struct{}{}
	}
	patterns, err := utils.CompileRegexPatterns(cfg.DisallowedPathPatterns)
	if err != nil {
		return nil, err
	}
	f.disallowedPatterns = patterns
	return f, nil
}

// InScope reports whether a canonical URL may be crawled. Unparseable input is rejected.
func (f *Filter) InScope(canonical string) bool {
	return f.Check(canonical) == nil
}

// Check returns nil for an in-scope URL, or an error wrapping utils.ErrScopeViolation that names
// the first rule the URL failed. The query string never affects the verdict.
func (f *Filter) Check(canonical string) error {
	u, err := url.Parse(canonical)
	if err != nil {
		return fmt.Errorf("%w: unparseable URL: %v", utils.ErrScopeViolation, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: scheme '%s' not allowed", utils.ErrScopeViolation, scheme)
	}

	host := strings.ToLower(u.Hostname())
	if !f.domainAllowed(host) {
		return fmt.Errorf("%w: host '%s' not in allowed domains", utils.ErrScopeViolation, host)
	}

	lowerPath := strings.ToLower(u.Path)
	if prefix, restricted := f.restrictedPaths[host]; restricted && !strings.HasPrefix(lowerPath, prefix) {
		return fmt.Errorf("%w: path '%s' outside required prefix '%s' for host '%s'", utils.ErrScopeViolation, lowerPath, prefix, host)
	}

	if f.trapPattern != nil && f.trapPattern.MatchString(lowerPath) {
		return fmt.Errorf("%w: path '%s' matches trap pattern", utils.ErrScopeViolation, lowerPath)
	}

	for _, s := range f.excludedSubstrings {
		if strings.Contains(lowerPath, s) {
			return fmt.Errorf("%w: path '%s' contains excluded substring '%s'", utils.ErrScopeViolation, lowerPath, s)
		}
	}

	if ext := extension(lowerPath); ext != "" {
		if _, blocked := f.blacklist[ext]; blocked {
			return fmt.Errorf("%w: extension '.%s' is blacklisted", utils.ErrScopeViolation, ext)
		}
	}

	for _, re := range f.disallowedPatterns {
		if re.MatchString(lowerPath) {
			return fmt.Errorf("%w: path '%s' matches disallowed pattern '%s'", utils.ErrScopeViolation, lowerPath, re.String())
		}
	}
	return nil
}

// domainAllowed matches host against allowed domains exactly or as a dot-separated subdomain.
func (f *Filter) domainAllowed(host string) bool {
	if host == "" {
		return false
	}
	for _, d := range f.allowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// extension returns the text after the final '.' of the last path segment, or "".
func extension(p string) string {
	last := p[strings.LastIndexByte(p, '/')+1:]
	idx := strings.LastIndexByte(last, '.')
	if idx < 0 || idx == len(last)-1 {
		return ""
	}
	return last[idx+1:]
}
