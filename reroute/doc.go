// Package reroute rewrites outbound request paths with declarative rules.
//
// A rule maps a (method, path pattern) pair to a replacement template:
//
//	table := reroute.Compile([]reroute.Rule{
//		{From: `^/orig/(?<id>[^/]+)$`, To: "/reroute/$id/append"},
//		{From: reroute.Endpoint{Method: http.MethodPost, URL: "^/users$"}, To: "/v2/users"},
//	})
//
//	table.Route(http.MethodGet, "/orig/42") // "/reroute/42/append"
//
// A bare pattern applies to every method. Rules are tried in declaration
// order and the first match wins. Malformed rules are dropped by Compile.
//
// Transport wraps an http.RoundTripper so that requests issued through it are
// rerouted before they reach the network. Only the URL path changes; scheme,
// host and query are left untouched.
package reroute
