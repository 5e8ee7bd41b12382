package useragent

import (
	"math/rand"
)

// Identifier is appended to rotated agents so site owners can recognise the
// crawler in their logs.
const Identifier = "SpaceCrawler/1.0"

// defaultAgents holds current release strings for the major browsers.
var defaultAgents = []string{
	// Chrome on Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	// Chrome on macOS
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	// Firefox on Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:130.0) Gecko/20100101 Firefox/130.0",
	// Firefox on macOS
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:130.0) Gecko/20100101 Firefox/130.0",
	// Safari on macOS
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.0 Safari/605.1.15",
	// Edge on Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36 Edg/129.0.0.0",
	// Chrome on Linux
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
}

// Rotator hands out user-agent strings for outgoing requests. When rotation
// is disabled every call returns the fallback agent. The zero pool is never
// used; New always installs the browser pool.
type Rotator struct {
	agents   []string
	fallback string
	enabled  bool
	identify bool
}

// New creates a Rotator. fallback is returned verbatim when rotation is
// disabled; identify appends the crawler identification suffix to rotated
// agents.
func New(enabled, identify bool, fallback string) *Rotator {
	return &Rotator{
		agents:   defaultAgents,
		fallback: fallback,
		enabled:  enabled,
		identify: identify,
	}
}

// Next returns the user-agent for the next request. Safe for concurrent use;
// selection is independent per call with no per-domain affinity.
func (r *Rotator) Next() string {
	if !r.enabled {
		return r.fallback
	}

	agent := r.agents[rand.Intn(len(r.agents))]
	if r.identify {
		agent = agent + " (" + Identifier + ")"
	}
	return agent
}

// Pool returns the rotation pool, mainly for startup logging.
func (r *Rotator) Pool() []string {
	return r.agents
}
