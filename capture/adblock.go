package capture

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// adDomains are ad and tracking hosts whose requests are aborted when
// ad blocking is enabled. Banners and consent overlays served from these
// hosts would otherwise land in the screenshots.
var adDomains = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"googletagservices.com": {},
	"adnxs.com":             {},
	"adsrvr.org":            {},
	"amazon-adsystem.com":   {},
	"criteo.com":            {},
	"criteo.net":            {},
	"outbrain.com":          {},
	"taboola.com":           {},
	"moatads.com":           {},
	"pubmatic.com":          {},
	"rubiconproject.com":    {},
	"scorecardresearch.com": {},
	"quantserve.com":        {},
	"media.net":             {},
	"openx.net":             {},
	"casalemedia.com":       {},
	"serving-sys.com":       {},
	"sharethis.com":         {},
	"addthis.com":           {},
	"consensu.org":          {},
	"cookielaw.org":         {},
	"onetrust.com":          {},
}

// isAdDomain reports whether host or any parent domain is blocklisted.
func isAdDomain(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for host != "" {
		if _, ok := adDomains[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			break
		}
		host = host[idx+1:]
	}
	return false
}

// setupAdBlock intercepts every request on page and fails those bound for
// an ad domain. The caller stops the returned router when done with the page.
func setupAdBlock(page *rod.Page) *rod.HijackRouter {
	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if u, err := url.Parse(h.Request.URL().String()); err == nil && isAdDomain(u.Hostname()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()

	return router
}
