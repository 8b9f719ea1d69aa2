package studio

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/genstudio/api/internal/credit"
	"github.com/genstudio/api/internal/model"
)

// reply is one scripted answer of the fake server.
type reply struct {
	status int
	body   any
}

func processing() reply {
	return reply{http.StatusOK, model.StatusResponse{Success: true, Status: "processing"}}
}

func completed(urls ...string) reply {
	res := &model.StatusResult{}
	for _, u := range urls {
		res.Images = append(res.Images, model.ResultImage{URL: u})
	}
	return reply{http.StatusOK, model.StatusResponse{Success: true, Status: "completed", Result: res}}
}

func failed(msg string, refunded int) reply {
	return reply{http.StatusOK, model.StatusResponse{Success: true, Status: "failed", ErrorMessage: msg, CreditsRefunded: refunded}}
}

func apiFailure(status int, code, msg string) reply {
	return reply{status, map[string]any{"success": false, "error": msg, "error_code": code}}
}

// fakeServer plays the generation API.
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	mu           sync.Mutex
	balance      int
	nextID       int
	submitted    []model.SubmitRequest
	submitErr    *reply
	submitGate   chan struct{}
	submitSeen   chan struct{}
	scripts      map[string][]reply
	statusCalls  map[string]int
	uploads      []string
	creditCalls  int
	upgradeCalls int
	upgrade      func(call int) reply
	authHeaders  []string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{
		t:           t,
		balance:     50,
		scripts:     make(map[string][]reply),
		statusCalls: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/{provider}/submit", fs.handleSubmit)
	mux.HandleFunc("GET /api/{provider}/status/{taskId}", fs.handleStatus)
	mux.HandleFunc("POST /api/{provider}/upgrade/{taskId}", fs.handleUpgrade)
	mux.HandleFunc("GET /api/{provider}/history", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.HistoryResponse{Success: true, Items: []model.StatusResponse{{TaskID: "t1", Status: "completed"}}, Page: 1, Limit: 20, Total: 1})
	})
	mux.HandleFunc("DELETE /api/{provider}/history/{taskId}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("taskId") == "missing" {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "task not found", "error_code": "NOT_FOUND"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/upload", fs.handleUpload)
	mux.HandleFunc("GET /api/credits", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.creditCalls++
		body := model.CreditsResponse{Success: true, Balance: fs.balance, Pricing: credit.DefaultPricing()}
		fs.mu.Unlock()
		writeJSON(w, http.StatusOK, body)
	})
	mux.HandleFunc("/img.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
	})
	mux.HandleFunc("/page.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	})

	fs.srv = httptest.NewServer(mux)
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) URL() string { return fs.srv.URL }

func (fs *fakeServer) script(taskID string, steps ...reply) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.scripts[taskID] = steps
}

func (fs *fakeServer) calls(taskID string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.statusCalls[taskID]
}

func (fs *fakeServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	fs.authHeaders = append(fs.authHeaders, r.Header.Get("Authorization"))
	gate, seen := fs.submitGate, fs.submitSeen
	fs.mu.Unlock()

	if seen != nil {
		seen <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	var req model.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error(), "error_code": "VALIDATION_ERROR"})
		return
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.submitted = append(fs.submitted, req)
	if fs.submitErr != nil {
		writeJSON(w, fs.submitErr.status, fs.submitErr.body)
		return
	}
	fs.nextID++
	fs.balance -= 4
	writeJSON(w, http.StatusOK, model.SubmitResponse{
		Success:          true,
		TaskID:           fmt.Sprintf("t%d", fs.nextID),
		CreditsUsed:      4,
		RemainingCredits: fs.balance,
	})
}

func (fs *fakeServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("taskId")

	fs.mu.Lock()
	fs.statusCalls[id]++
	n := fs.statusCalls[id]
	steps := fs.scripts[id]
	fs.mu.Unlock()

	if len(steps) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "task not found", "error_code": "NOT_FOUND"})
		return
	}
	if n > len(steps) {
		n = len(steps)
	}
	step := steps[n-1]
	writeJSON(w, step.status, step.body)
}

func (fs *fakeServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	fs.upgradeCalls++
	n := fs.upgradeCalls
	fn := fs.upgrade
	fs.mu.Unlock()

	if fn == nil {
		writeJSON(w, http.StatusOK, model.UpgradeResponse{Success: true, VideoURL: "https://cdn.test/hd.mp4"})
		return
	}
	step := fn(n)
	writeJSON(w, step.status, step.body)
}

func (fs *fakeServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "file is required", "error_code": "VALIDATION_ERROR"})
		return
	}
	file.Close()

	fs.mu.Lock()
	fs.uploads = append(fs.uploads, header.Filename)
	fs.mu.Unlock()
	writeJSON(w, http.StatusOK, model.UploadResponse{Success: true, URL: "https://cdn.test/" + header.Filename})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
