package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/logger"
)

// userSyncResponse carries the results of the accounts that ran alongside
// the error of those that did not.
type userSyncResponse struct {
	Results []domain.SyncResult `json:"results"`
	Error   string              `json:"error,omitempty"`
}

// handleSyncAccount handles POST /accounts/{accountID}/sync. With ?async=true
// the pass runs in the background and the request returns 202.
func (s *Server) handleSyncAccount(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		notConfigured(w)
		return
	}
	accountID := chi.URLParam(r, "accountID")

	if r.URL.Query().Get("async") == "true" {
		ctx := context.WithoutCancel(r.Context())
		go func() {
			if _, err := s.sync.Sync(ctx, accountID); err != nil {
				logger.Warn("background sync of account %s: %v", accountID, err)
			}
		}()
		writeJSON(w, http.StatusAccepted, map[string]string{"account_id": accountID, "status": "started"})
		return
	}

	result, err := s.sync.Sync(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSyncUser handles POST /users/{userID}/sync.
func (s *Server) handleSyncUser(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		notConfigured(w)
		return
	}

	results, err := s.sync.SyncUser(r.Context(), chi.URLParam(r, "userID"))
	resp := userSyncResponse{Results: results}
	if resp.Results == nil {
		resp.Results = []domain.SyncResult{}
	}
	status := http.StatusOK
	if err != nil {
		status, resp.Error = statusFor(err)
	}
	writeJSON(w, status, resp)
}

// handleStatus handles GET /accounts/{accountID}/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		notConfigured(w)
		return
	}

	status, err := s.sync.Status(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account_id":      status.AccountID,
		"running":         status.Running,
		"stage":           status.Stage,
		"items_processed": status.ItemsProcessed,
		"error_count":     status.ErrorCount,
	})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if s.accounts == nil {
		notConfigured(w)
		return
	}
	if err := s.accounts.Disconnect(r.Context(), chi.URLParam(r, "accountID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	if s.accounts == nil {
		notConfigured(w)
		return
	}
	accounts, err := s.accounts.List(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts, "count": len(accounts)})
}

func (s *Server) handleRepositories(w http.ResponseWriter, r *http.Request) {
	if s.accounts == nil {
		notConfigured(w)
		return
	}
	repos, err := s.accounts.Repositories(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"repositories": repos, "count": len(repos)})
}

func (s *Server) handleOrganizations(w http.ResponseWriter, r *http.Request) {
	if s.accounts == nil {
		notConfigured(w)
		return
	}
	orgs, err := s.accounts.Organizations(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs, "count": len(orgs)})
}

// handleConnect handles GET /connect/{appID}?user=<id> by redirecting the
// browser to the provider's authorization page.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if s.accounts == nil {
		notConfigured(w)
		return
	}
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "user query parameter is required"})
		return
	}

	req, err := s.accounts.BeginConnect(r.Context(), chi.URLParam(r, "appID"), s.redirectURI(r))
	if err != nil {
		writeError(w, err)
		return
	}
	s.pending.put(req.State, userID, *req)
	http.Redirect(w, r, req.URL, http.StatusFound)
}

// handleCallback completes the flow started by handleConnect.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if s.accounts == nil {
		notConfigured(w)
		return
	}
	query := r.URL.Query()
	if code := query.Get("error"); code != "" {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error: fmt.Sprintf("authorization denied: %s %s", code, query.Get("error_description")),
		})
		return
	}

	userID, req, ok := s.pending.take(query.Get("state"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown or expired authorization state"})
		return
	}
	code := query.Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing authorization code"})
		return
	}

	account, err := s.accounts.CompleteConnect(r.Context(), userID, req, code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (s *Server) redirectURI(r *http.Request) string {
	if s.baseURL != "" {
		return s.baseURL + CallbackPath
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + CallbackPath
}

func (s *Server) handleWebhookSetup(w http.ResponseWriter, r *http.Request) {
	if s.hooks == nil {
		notConfigured(w)
		return
	}
	result, err := s.hooks.SetupWebhook(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "integrationID"))
	writeHookResult(w, result, err)
}

func (s *Server) handleWebhookUpdate(w http.ResponseWriter, r *http.Request) {
	if s.hooks == nil {
		notConfigured(w)
		return
	}
	result, err := s.hooks.UpdateWebhook(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "integrationID"))
	writeHookResult(w, result, err)
}

func (s *Server) handleProviderData(w http.ResponseWriter, r *http.Request) {
	if s.hooks == nil {
		notConfigured(w)
		return
	}
	result, err := s.hooks.SyncProviderData(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "integrationID"))
	writeHookResult(w, result, err)
}

type buildStatusRequest struct {
	State       domain.BuildState `json:"state"`
	LinkToBuild *bool             `json:"link_to_build"`
}

// handleBuildStatus handles POST /builds/{buildID}/status with a JSON body
// {"state": "success", "link_to_build": true}.
func (s *Server) handleBuildStatus(w http.ResponseWriter, r *http.Request) {
	if s.hooks == nil {
		notConfigured(w)
		return
	}

	var body buildStatusRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	if !body.State.IsValid() {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("unknown build state %q", body.State)})
		return
	}
	link := true
	if body.LinkToBuild != nil {
		link = *body.LinkToBuild
	}

	result, err := s.hooks.SendBuildStatus(r.Context(), chi.URLParam(r, "buildID"), body.State, link)
	writeHookResult(w, result, err)
}

// writeHookResult reports a provider side effect. A provider refusal is a
// bad gateway; the provider's response is passed through.
func writeHookResult(w http.ResponseWriter, result *domain.HookResult, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	if result == nil {
		writeError(w, errors.New("hook call returned no result"))
		return
	}
	status := http.StatusOK
	if !result.OK {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, result)
}
