package responsetransformer

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// Rules adjust origin response headers before the response is stored or returned.
// The first matching rule is applied.
type Rules []Rule

type Rule struct {
	// Path prefix the request path must have.
	Prefix string `yaml:"prefix"`
	// Exact request path.
	Path string `yaml:"path"`
	// Query parameters the request must have. An empty value only requires presence.
	Query map[string]string `yaml:"query"`
	// Headers set only when the origin did not send them.
	Defaults map[string]string `yaml:"defaults"`
	// Headers always set, replacing what the origin sent.
	Headers map[string]string `yaml:"headers"`
}

func (r Rules) Apply(res *http.Response) {
	// only apply rules for successes
	if res.StatusCode != http.StatusOK || res.Request == nil {
		return
	}
	if rule := r.find(res.Request); rule != nil {
		applyRuleToResponse(*rule, res)
	}
}

func applyRuleToResponse(rule Rule, res *http.Response) {
	for name, value := range rule.Defaults {
		if res.Header.Get(name) == "" {
			log.Trace().Msgf("Applying default header %s", name)
			res.Header.Set(name, value)
		}
	}
	for name, value := range rule.Headers {
		log.Trace().Msgf("Setting header %s", name)
		res.Header.Set(name, value)
	}
}

func (r Rules) find(req *http.Request) *Rule {
rulesLoop:
	for i, rule := range r {
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			continue
		}
		if rule.Path != "" && rule.Path != req.URL.Path {
			continue
		}
		if rule.Prefix != "" && !strings.HasPrefix(req.URL.Path, rule.Prefix) {
			continue
		}
		if len(rule.Query) > 0 {
			qry := req.URL.Query()
			for name, value := range rule.Query {
				if value == "" && !qry.Has(name) {
					continue rulesLoop
				} else if value != "" && qry.Get(name) != value {
					continue rulesLoop
				}
			}
		}
		return &r[i]
	}
	return nil
}
