// Package fetch is an HTTP client core with declarative request rerouting,
// content-negotiated response decoding and file downloads.
//
// # Quick Start
//
//	client, err := fetch.New("/api")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.Get(ctx, "/users", &fetch.RequestConfig{
//	    Params: map[string]string{"page": "2"},
//	})
//	if err != nil {
//	    if httpErr, ok := fetch.AsHTTPError(err); ok {
//	        log.Printf("status %d: %s", httpErr.StatusCode, httpErr.Text())
//	    }
//	    return err
//	}
//
//	users := resp.Data.([]any)
//
// # Decoding
//
// Successful responses are decoded by Content-Type: text/* into a string,
// application/json into the parsed value, anything else into a Blob. A 204
// leaves Data nil. RequestConfig.OutputTransform replaces the default, and
// RequestConfig.Raw skips the pipeline entirely, status check included.
//
// # Headers
//
// Headers are layered: Content-Type: application/json, then Config.Headers,
// then RequestConfig.Headers. Multipart calls skip the JSON default and use
// the form's boundary Content-Type unless one was set explicitly.
//
// # Rerouting
//
// Config.ReroutingRules rewrite request paths before they leave the client:
//
//	client, err := fetch.NewWithConfig(&fetch.Config{
//	    ReroutingRules: []reroute.Rule{
//	        {From: `^/orig/(?<id>[^/]+)$`, To: "/reroute/$id/append"},
//	        {From: reroute.Endpoint{Method: "POST", URL: "^/users$"}, To: "/v2/users"},
//	    },
//	})
//
// Each client owns its transport chain, so rules never leak into other
// clients or http.DefaultClient.
//
// # Downloads
//
// With RequestConfig.DownloadAsFile, Get, Post and PostMultipart pass the
// body to Config.Saver together with the Content-Disposition filename.
//
// # Errors
//
// Non-2xx responses return *HTTPError. Transport errors are returned as they
// came from the transport. Every error goes through Config.ErrorHandler,
// which by default logs a single line. Nothing is retried.
package fetch
