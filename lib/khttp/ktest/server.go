// Package ktest provides http handlers and recorders to write tests
// against fake remote services.
package ktest

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

type Handler func(w http.ResponseWriter, r *http.Request)

// Recorder invokes an handler keeping track of the requests and responses.
//
// It is safe to use concurrently.
type Recorder struct {
	Handler Handler

	lock     sync.Mutex
	request  []*http.Request
	response []*http.Response
}

func Capture(handler Handler) *Recorder {
	return &Recorder{Handler: handler}
}

func (capture *Recorder) Handle(w http.ResponseWriter, r *http.Request) {
	response := httptest.NewRecorder()
	response.Body = bytes.NewBuffer(nil)

	capture.Handler(response, r)
	result := response.Result()

	capture.lock.Lock()
	capture.request = append(capture.request, r)
	capture.response = append(capture.response, result)
	capture.lock.Unlock()

	for key, values := range result.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(result.StatusCode)
	w.Write(response.Body.Bytes())
}

func (capture *Recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	capture.Handle(w, r)
}

// Requests returns a copy of the requests received so far.
func (capture *Recorder) Requests() []*http.Request {
	capture.lock.Lock()
	defer capture.lock.Unlock()
	return append([]*http.Request{}, capture.request...)
}

// Responses returns a copy of the responses returned so far.
func (capture *Recorder) Responses() []*http.Response {
	capture.lock.Lock()
	defer capture.lock.Unlock()
	return append([]*http.Response{}, capture.response...)
}

// Paths returns the URL paths requested, in order.
func (capture *Recorder) Paths() []string {
	result := []string{}
	for _, r := range capture.Requests() {
		result = append(result, r.URL.Path)
	}
	return result
}

// Slow will slow down the responses by the specified amount.
// Convenient to try to trigger timeouts, or race conditions.
func Slow(d time.Duration, h Handler) Handler {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
		h(w, r)
	}
}

// StringHandler just returns a string.
func StringHandler(message string) Handler {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s", message)
	}
}

// JSONHandler returns the supplied json document with the specified status.
func JSONHandler(status int, document string) Handler {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, document)
	}
}

// StatusHandler returns the status code with no body.
func StatusHandler(status int) Handler {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}
}

// ErrorHandler returns a StatusInternalServerError.
func ErrorHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "all kitties have died", http.StatusInternalServerError)
}

// HangingHandler hangs until the client goes away.
func HangingHandler(w http.ResponseWriter, r *http.Request) {
	<-r.Context().Done()
}

// StartServer starts an httptest.Server dispatching to a fresh mux, with
// h handling /. Close the returned server when done.
func StartServer(h Handler) (*http.ServeMux, *httptest.Server) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h)
	return mux, httptest.NewServer(mux)
}
