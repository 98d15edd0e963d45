package server

import (
	"encoding/json"
	"net/http"
)

// Problem type URIs for RFC 7807 responses from the host itself.
const (
	ProblemTypeNotFound         = "https://sitewatch.dev/problems/not-found"
	ProblemTypeBadRequest       = "https://sitewatch.dev/problems/bad-request"
	ProblemTypeMethodNotAllowed = "https://sitewatch.dev/problems/method-not-allowed"
	ProblemTypeRateLimited      = "https://sitewatch.dev/problems/rate-limited"
	ProblemTypeInternal         = "https://sitewatch.dev/problems/internal-error"
)

// Problem is an RFC 7807 Problem Details body.
type Problem struct {
	Type     string `json:"type" example:"https://sitewatch.dev/problems/bad-request"`
	Title    string `json:"title" example:"Bad Request"`
	Status   int    `json:"status" example:"400"`
	Detail   string `json:"detail,omitempty" example:"invalid limit parameter"`
	Instance string `json:"instance,omitempty" example:"/api/v1/watch/alerts"`
}

// WriteProblem serializes p with the problem+json content type.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func problem(w http.ResponseWriter, status int, typeURI, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     typeURI,
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// NotFound writes a 404 problem response.
func NotFound(w http.ResponseWriter, detail, instance string) {
	problem(w, http.StatusNotFound, ProblemTypeNotFound, detail, instance)
}

// BadRequest writes a 400 problem response.
func BadRequest(w http.ResponseWriter, detail, instance string) {
	problem(w, http.StatusBadRequest, ProblemTypeBadRequest, detail, instance)
}

// MethodNotAllowed writes a 405 problem response.
func MethodNotAllowed(w http.ResponseWriter, detail, instance string) {
	problem(w, http.StatusMethodNotAllowed, ProblemTypeMethodNotAllowed, detail, instance)
}

// RateLimited writes a 429 problem response.
func RateLimited(w http.ResponseWriter, detail, instance string) {
	problem(w, http.StatusTooManyRequests, ProblemTypeRateLimited, detail, instance)
}

// InternalError writes a 500 problem response.
func InternalError(w http.ResponseWriter, detail, instance string) {
	problem(w, http.StatusInternalServerError, ProblemTypeInternal, detail, instance)
}
