package middleware

import (
	"bytes"
	"net/http"

	goIdem "github.com/MrEthical07/goIdem"
)

// recorder captures a downstream response in memory.
type recorder struct {
	header      http.Header
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func newRecorder() *recorder {
	return &recorder{header: make(http.Header)}
}

func (r *recorder) Header() http.Header {
	return r.header
}

func (r *recorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
}

func (r *recorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(p)
}

func (r *recorder) response() *goIdem.Response {
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	return &goIdem.Response{
		StatusCode: status,
		Header:     r.header,
		Body:       r.body.Bytes(),
	}
}
