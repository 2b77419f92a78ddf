package sophia

import (
	"errors"
	"net/http"
)

const maxRedirects = 10

// NewHTTPClient returns the client used for upstream calls. The pool keeps
// one idle connection per concurrent photo fetch.
func NewHTTPClient(maxConnsPerHost int) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if maxConnsPerHost > tr.MaxIdleConnsPerHost {
		tr.MaxIdleConnsPerHost = maxConnsPerHost
	}

	return &http.Client{
		Transport:     tr,
		CheckRedirect: checkRedirect,
	}
}

// checkRedirect keeps the original headers on GET redirects. A redirected
// POST would be replayed as a GET without its body, so the redirect response
// itself is returned instead.
func checkRedirect(r *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}
	if len(via) > 0 {
		if via[0].Method != http.MethodGet {
			return http.ErrUseLastResponse
		}
		r.Header = via[0].Header.Clone()
	}
	return nil
}
