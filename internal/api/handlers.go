// handlers.go - HTTP handlers of the privatepay API.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"privatepay/internal/orchestrator"
	"privatepay/internal/types"
)

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req fundsRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if req.Account.IsZero() {
		s.fail(w, badRequest{"missing account"})
		return
	}
	if err := s.backend.Orchestrator.DepositFunds(r.Context(), req.Account, req.Amount); err != nil {
		s.fail(w, err)
		return
	}
	s.balance(w, r, req.Account)
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var req fundsRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	account, err := actingAccount(r, req.Account)
	if err != nil {
		s.fail(w, err)
		return
	}
	execution, err := s.backend.Orchestrator.WithdrawFunds(r.Context(), account, req.Amount)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawResponse{Execution: execution})
}

func (s *Server) executePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	caller, err := actingAccount(r, req.Caller)
	if err != nil {
		s.fail(w, err)
		return
	}
	receipt, err := s.backend.Orchestrator.ExecutePrivatePayment(r.Context(), caller, req.request(), req.Decoys)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newReceiptResponse(uuid.NewString(), receipt))
}

func (s *Server) privacyScore(w http.ResponseWriter, r *http.Request) {
	account, err := userParam(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	score, err := s.backend.Orchestrator.CalculatePrivacyScore(r.Context(), account)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{Account: account, PrivacyScore: score, Rating: orchestrator.Rating(score)})
}

func (s *Server) privacyMetrics(w http.ResponseWriter, r *http.Request) {
	account, err := userParam(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	metrics, err := s.backend.Orchestrator.PrivacyMetrics(r.Context(), account)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newMetricsResponse(account, metrics))
}

func (s *Server) globalStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	global, err := s.backend.Orchestrator.GlobalStats(ctx)
	if err != nil {
		s.fail(w, err)
		return
	}
	ledger, err := s.backend.Ledger.Stats(ctx)
	if err != nil {
		s.fail(w, err)
		return
	}
	proofs, err := s.backend.Proofs.Stats(ctx)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, globalStatsResponse{
		SettledPayments:     global.SettledPayments,
		DecoysEmitted:       global.DecoysEmitted,
		Profiles:            global.Profiles,
		AveragePrivacyScore: global.AveragePrivacyScore,
		LedgerExecutions:    ledger.TotalExecutions,
		LedgerVolume:        ledger.TotalVolume,
		ProofsAccepted:      proofs.Accepted,
		ProofsRejected:      proofs.Rejected,
		ProofAcceptanceRate: proofs.Rate,
	})
}

func (s *Server) vaultBalance(w http.ResponseWriter, r *http.Request) {
	var named types.Address
	if r.URL.Query().Get("user") != "" {
		user, err := userParam(r)
		if err != nil {
			s.fail(w, err)
			return
		}
		named = user
	}
	account, err := actingAccount(r, named)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.balance(w, r, account)
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request, account types.Address) {
	balance, err := s.backend.Orchestrator.VaultBalance(r.Context(), account)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Account: account, Balance: balance})
}

func (s *Server) suggestDecoys(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := strconv.ParseUint(q.Get("amount"), 10, 64)
	if err != nil {
		s.fail(w, badRequest{"amount must be an unsigned integer"})
		return
	}
	count := orchestrator.MinDecoys
	if raw := q.Get("count"); raw != "" {
		if count, err = strconv.Atoi(raw); err != nil {
			s.fail(w, badRequest{"count must be an integer"})
			return
		}
	}
	seed := time.Now().UnixNano()
	if raw := q.Get("seed"); raw != "" {
		if seed, err = strconv.ParseInt(raw, 10, 64); err != nil {
			s.fail(w, badRequest{"seed must be an integer"})
			return
		}
	}
	decoys, err := orchestrator.SuggestDecoys(amount, count, seed)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decoys)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	health := s.health.CheckHealth(r.Context())
	code := http.StatusOK
	if health.OverallStatus == Unhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, statusResponse{
		HealthCheckResponse: CreateHealthResponse(health),
		Paused:              s.backend.Orchestrator.Paused(),
	})
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Orchestrator.Pause(r.Context(), s.backend.Orchestrator.Admin()); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) unpause(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Orchestrator.Unpause(r.Context(), s.backend.Orchestrator.Admin()); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setPrivacyScore(w http.ResponseWriter, r *http.Request) {
	var req scoreOverrideRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if err := s.backend.Orchestrator.SetPrivacyScore(r.Context(), s.backend.Orchestrator.Admin(), req.Account, req.Score); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) forceAccept(w http.ResponseWriter, r *http.Request) {
	var req forceAcceptRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	inputs := make([]*big.Int, len(req.Inputs))
	for i, raw := range req.Inputs {
		v, ok := new(big.Int).SetString(raw, 0)
		if !ok {
			s.fail(w, badRequest{fmt.Sprintf("input %d is not an integer", i)})
			return
		}
		inputs[i] = v
	}
	if err := s.backend.Orchestrator.ForceAcceptProof(r.Context(), s.backend.Orchestrator.Admin(), req.Proof, inputs); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func userParam(r *http.Request) (types.Address, error) {
	raw := r.URL.Query().Get("user")
	if raw == "" {
		return types.Address{}, badRequest{"missing user parameter"}
	}
	a, err := types.ParseAddress(raw)
	if err != nil {
		return types.Address{}, badRequest{err.Error()}
	}
	return a, nil
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest{fmt.Sprintf("invalid request body: %v", err)}
	}
	return nil
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	var bad badRequest
	if errors.As(err, &bad) {
		writeError(w, codeBadRequest, http.StatusBadRequest, bad.msg)
		return
	}
	code, status := classify(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	writeError(w, code, status, err.Error())
}

func writeError(w http.ResponseWriter, code string, status int, msg string) {
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
