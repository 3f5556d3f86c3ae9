package llm

import (
	"net/http"
	"net/url"

	"golang.org/x/net/http/httpproxy"
)

// newProxyFunc routes provider traffic through explicit proxies. Without
// explicit proxies the standard HTTP_PROXY/HTTPS_PROXY/NO_PROXY variables
// apply. An https request falls back to the http proxy when no https proxy
// is set.
func newProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}
	if httpsProxy == "" {
		httpsProxy = httpProxy
	}

	proxy := (&httpproxy.Config{
		HTTPProxy:  httpProxy,
		HTTPSProxy: httpsProxy,
		NoProxy:    noProxy,
	}).ProxyFunc()

	return func(req *http.Request) (*url.URL, error) {
		return proxy(req.URL)
	}
}

// newHTTPClient builds the client used for provider calls
func newHTTPClient(cfg Config, timeout int) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = newProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
	return &http.Client{
		Timeout:   secondsOr(timeout, 60),
		Transport: transport,
	}
}
