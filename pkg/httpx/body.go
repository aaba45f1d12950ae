package httpx

import (
	"io"
	"net/http"
)

// maxDrainBytes caps how much of an abandoned response body is read before
// closing. Past this, closing (and losing the connection) is cheaper than
// reading.
const maxDrainBytes = 64 << 10

// DrainClose drains and closes a response body so the underlying connection
// can be reused. Call it on responses whose body the caller will never read,
// e.g. a 401 that is about to be replaced by a retry.
func DrainClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	_ = resp.Body.Close()
}
