package whitelist

import (
	"strings"

	"go.uber.org/zap"
)

// Checker decides whether an address belongs to one of the configured mail
// domains. An empty domain list accepts every address.
type Checker struct {
	domains map[string]struct{}
	logger  *zap.Logger
}

// NewChecker creates a new domain checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	set := make(map[string]struct{}, len(domains))
	normalized := make([]string, 0, len(domains))
	for _, domain := range domains {
		d := strings.ToLower(strings.TrimSpace(domain))
		if d == "" {
			continue
		}
		if _, dup := set[d]; !dup {
			set[d] = struct{}{}
			normalized = append(normalized, d)
		}
	}

	if len(normalized) > 0 && logger != nil {
		logger.Info("Initialized domain checker", zap.Strings("domains", normalized))
	}

	return &Checker{
		domains: set,
		logger:  logger,
	}
}

// Accepts reports whether the address domain is one we receive mail for
func (c *Checker) Accepts(addr string) bool {
	if len(c.domains) == 0 {
		return true
	}

	domain := Domain(addr)
	if domain == "" {
		return false
	}

	if _, ok := c.domains[domain]; ok {
		return true
	}
	if c.logger != nil {
		c.logger.Debug("Domain not accepted", zap.String("domain", domain))
	}
	return false
}

// Domain returns the lowercased domain of addr, or "" when addr has none
func Domain(addr string) string {
	addr = strings.Trim(strings.TrimSpace(addr), "<>")
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return strings.ToLower(addr[at+1:])
}

// LocalPart returns the lowercased part of addr before the last "@"
func LocalPart(addr string) string {
	addr = strings.Trim(strings.TrimSpace(addr), "<>")
	if at := strings.LastIndex(addr, "@"); at >= 0 {
		addr = addr[:at]
	}
	return strings.ToLower(addr)
}
