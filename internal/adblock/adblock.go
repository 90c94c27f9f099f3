// Package adblock holds the request block list and the cosmetic script
// injected when content blocking is enabled.
package adblock

import "strings"

var patterns = []string{
	"*://*.doubleclick.net/*",
	"*://*.googlesyndication.com/*",
	"*://*.googleadservices.com/*",
	"*://*.adtago.s3.amazonaws.com/*",
	"*://*.adnxs.com/*",
	"*://*.ads.google.com/*",
	"*://*.google-analytics.com/*",
	"*://*.facebook.com/tr*",
	"*://*.hotjar.com/*",
	"*://*.criteo.com/*",
	"*://*.moatads.com/*",
	"*://*.taboola.com/*",
	"*://*.outbrain.com/*",
	"*://*.amazon-adsystem.com/*",
	"*://*.scorecardresearch.com/*",
	"*://*.zedo.com/*",
	"*://*.pubmatic.com/*",
	"*://*.openx.net/*",
	"*://*.adroll.com/*",
	"*://*.quantserve.com/*",
	"*://*.rubiconproject.com/*",
	"*://*.chartbeat.com/*",
	"*://*.clicktale.net/*",
	"*://*.clarity.ms/*",
	"*://*.adservice.google.com/*",
	"*://*.adsystem.com/*",
	"*://*.advertising.com/*",
	"*://*.carbonads.net/*",
	"*://*.adligature.com/*",
	"*://*.adcolony.com/*",
	"*://*.admob.com/*",
	"*://*.appsflyer.com/*",
	"*://*.unityads.unity3d.com/*",
	"*://*.applovin.com/*",
	"*://*.vungle.com/*",
	"*://*.ironsource.com/*",
}

// Patterns returns the blocked URL patterns in the wildcard syntax the
// engine's request blocking understands.
func Patterns() []string {
	out := make([]string, len(patterns))
	copy(out, patterns)
	return out
}

// Blocked reports whether rawURL matches a block pattern. Only "*" is
// special, and it may match "/".
func Blocked(rawURL string) bool {
	for _, pattern := range patterns {
		if wildcardMatch(pattern, rawURL) {
			return true
		}
	}
	return false
}

func wildcardMatch(pattern, value string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == value
	}
	if !strings.HasPrefix(value, parts[0]) {
		return false
	}
	value = value[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(value, part)
		if idx < 0 {
			return false
		}
		value = value[idx+len(part):]
	}
	return strings.HasSuffix(value, last)
}

// Script hides common ad containers and skips video ads on the two sites
// that serve them in-player. It is safe to inject more than once.
const Script = `(function () {
  if (window.__netbrowserAdblock) { return; }
  window.__netbrowserAdblock = true;
  var selectors = [
    'ins.adsbygoogle', 'iframe[src*="doubleclick.net"]', '[id^="google_ads_"]',
    '.ytd-banner-promo-renderer', '.ytd-statement-banner-renderer', '#masthead-ad',
    '[data-test-selector="ad-banner-default-text"]'
  ];
  var style = document.createElement('style');
  style.textContent = selectors.join(',') + '{display:none !important}';
  (document.head || document.documentElement).appendChild(style);
  var tick = function () {
    var host = window.location.hostname;
    var video = document.querySelector('video');
    if (host.indexOf('youtube.com') !== -1) {
      var skip = document.querySelector('.ytp-ad-skip-button, .ytp-ad-skip-button-modern, .videoAdUiSkipButton');
      if (skip) { skip.click(); }
      if (video && document.querySelector('.ad-showing')) {
        video.muted = true;
        video.playbackRate = 16;
      }
    } else if (host.indexOf('twitch.tv') !== -1) {
      if (video && document.querySelector('[data-test-selector="ad-banner-default-text"]')) {
        video.muted = true;
      }
    }
  };
  window.setInterval(tick, 1000);
})();`

// Hosts returns the distinct host suffixes named by the patterns, for
// display.
func Hosts() []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		host := strings.TrimPrefix(pattern, "*://*.")
		host, _, _ = strings.Cut(host, "/")
		if !seen[host] {
			seen[host] = true
			out = append(out, host)
		}
	}
	return out
}
