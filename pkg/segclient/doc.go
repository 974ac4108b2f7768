// Package segclient is a thin client for the frame segmentation backend.
//
// A Client maps each backend endpoint to one method. Payloads are forwarded
// unmodified and successful calls return the raw response body. Failures are
// returned as produced by the transport, or as *httpclient.StatusError for
// non-2xx responses. There is no retry, caching or batching.
package segclient
