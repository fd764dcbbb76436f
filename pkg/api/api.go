package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/agenc-io/agenc-registry/pkg/chain"
	"github.com/agenc-io/agenc-registry/pkg/ledger"
	"github.com/agenc-io/agenc-registry/pkg/types"
)

// API serves the browsing client: raw account reads plus the instruction
// surface. Signing happens wallet-side; requests carry the caller address.
type API struct {
	chain  *chain.Chain
	logger *zap.Logger
	server *http.Server
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func NewAPI(c *chain.Chain, logger *zap.Logger, port int) (*API, error) {
	api := &API{
		chain:  c,
		logger: logger,
	}

	router := mux.NewRouter()
	router.Use(api.requestID)
	api.setupRoutes(router)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	api.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return api, nil
}

func (api *API) setupRoutes(router *mux.Router) {
	// Health check
	router.HandleFunc("/health", api.HealthCheck).Methods("GET")

	// Account reads
	router.HandleFunc("/config", api.GetConfig).Methods("GET")
	router.HandleFunc("/models", api.ListModels).Methods("GET")
	router.HandleFunc("/models/{addr}", api.GetModel).Methods("GET")
	router.HandleFunc("/models/{addr}/versions/{n}", api.GetModelVersion).Methods("GET")
	router.HandleFunc("/agents", api.ListAgents).Methods("GET")
	router.HandleFunc("/agents/{addr}", api.GetAgent).Methods("GET")
	router.HandleFunc("/tasks", api.ListTasks).Methods("GET")
	router.HandleFunc("/tasks/{addr}", api.GetTask).Methods("GET")
	router.HandleFunc("/tasks/{addr}/claims", api.GetTaskClaims).Methods("GET")
	router.HandleFunc("/tasks/{addr}/escrow", api.GetTaskEscrow).Methods("GET")
	router.HandleFunc("/balances/{addr}", api.GetBalance).Methods("GET")

	// Development faucet
	router.HandleFunc("/faucet", api.Faucet).Methods("POST")

	// Instruction surface
	router.HandleFunc("/tx/initialize", api.TxInitialize).Methods("POST")
	router.HandleFunc("/tx/publish-model", api.TxPublishModel).Methods("POST")
	router.HandleFunc("/tx/add-version", api.TxAddVersion).Methods("POST")
	router.HandleFunc("/tx/update-metadata", api.TxUpdateMetadata).Methods("POST")
	router.HandleFunc("/tx/deprecate-model", api.TxDeprecateModel).Methods("POST")
	router.HandleFunc("/tx/transfer-ownership", api.TxTransferOwnership).Methods("POST")
	router.HandleFunc("/tx/register-agent", api.TxRegisterAgent).Methods("POST")
	router.HandleFunc("/tx/create-task", api.TxCreateTask).Methods("POST")
	router.HandleFunc("/tx/claim-task", api.TxClaimTask).Methods("POST")
	router.HandleFunc("/tx/submit-completion", api.TxSubmitCompletion).Methods("POST")
	router.HandleFunc("/tx/validate-completion", api.TxValidateCompletion).Methods("POST")
	router.HandleFunc("/tx/dispute-task", api.TxDisputeTask).Methods("POST")
	router.HandleFunc("/tx/resolve-dispute", api.TxResolveDispute).Methods("POST")
	router.HandleFunc("/tx/cancel-task", api.TxCancelTask).Methods("POST")
}

func (api *API) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-Id", id)
		api.logger.Debug("request",
			zap.String("id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

func (api *API) Start() error {
	api.logger.Info("Starting API server", zap.String("addr", api.server.Addr))
	return api.server.ListenAndServe()
}

func (api *API) Stop(ctx context.Context) error {
	return api.server.Shutdown(ctx)
}

// Health check handler
func (api *API) HealthCheck(w http.ResponseWriter, r *http.Request) {
	api.sendResponse(w, APIResponse{
		Success: true,
		Data: map[string]string{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (api *API) GetConfig(w http.ResponseWriter, r *http.Request) {
	addr, _ := types.ConfigAddress()
	acc, err := api.chain.Ledger().GetAccount(addr)
	if err != nil {
		api.sendChainError(w, err)
		return
	}
	api.sendResponse(w, APIResponse{Success: true, Data: acc})
}

func (api *API) ListModels(w http.ResponseWriter, r *http.Request) {
	api.listAccounts(w, types.KindModel)
}

func (api *API) ListAgents(w http.ResponseWriter, r *http.Request) {
	api.listAccounts(w, types.KindAgent)
}

func (api *API) ListTasks(w http.ResponseWriter, r *http.Request) {
	api.listAccounts(w, types.KindTask)
}

func (api *API) listAccounts(w http.ResponseWriter, kind types.Kind) {
	accounts, err := api.chain.Ledger().List(kind)
	if err != nil {
		api.sendError(w, "Failed to list accounts", http.StatusInternalServerError)
		return
	}
	out := make(map[string]types.Account, len(accounts))
	for addr, acc := range accounts {
		out[addr.String()] = acc
	}
	api.sendResponse(w, APIResponse{Success: true, Data: out})
}

func (api *API) GetModel(w http.ResponseWriter, r *http.Request) {
	api.getAccount(w, r, types.KindModel)
}

func (api *API) GetAgent(w http.ResponseWriter, r *http.Request) {
	api.getAccount(w, r, types.KindAgent)
}

func (api *API) GetTask(w http.ResponseWriter, r *http.Request) {
	api.getAccount(w, r, types.KindTask)
}

func (api *API) getAccount(w http.ResponseWriter, r *http.Request, kind types.Kind) {
	addr, err := pathAddress(r, "addr")
	if err != nil {
		api.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	acc, err := api.chain.Ledger().GetAccount(addr)
	if err != nil {
		api.sendChainError(w, err)
		return
	}
	if acc.Kind() != kind {
		api.sendError(w, "Account kind mismatch", http.StatusNotFound)
		return
	}
	api.sendResponse(w, APIResponse{Success: true, Data: acc})
}

func (api *API) GetModelVersion(w http.ResponseWriter, r *http.Request) {
	modelAddr, err := pathAddress(r, "addr")
	if err != nil {
		api.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	n, err := strconv.ParseUint(mux.Vars(r)["n"], 10, 32)
	if err != nil {
		api.sendError(w, "Invalid version number", http.StatusBadRequest)
		return
	}
	versionAddr, _ := types.VersionAddress(modelAddr, uint32(n))
	acc, err := api.chain.Ledger().GetAccount(versionAddr)
	if err != nil {
		api.sendChainError(w, err)
		return
	}
	api.sendResponse(w, APIResponse{Success: true, Data: acc})
}

func (api *API) GetTaskClaims(w http.ResponseWriter, r *http.Request) {
	taskAddr, err := pathAddress(r, "addr")
	if err != nil {
		api.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	all, err := api.chain.Ledger().List(types.KindClaim)
	if err != nil {
		api.sendError(w, "Failed to list claims", http.StatusInternalServerError)
		return
	}
	out := make(map[string]types.Account)
	for addr, acc := range all {
		if acc.(*types.TaskClaim).Task == taskAddr {
			out[addr.String()] = acc
		}
	}
	api.sendResponse(w, APIResponse{Success: true, Data: out})
}

func (api *API) GetTaskEscrow(w http.ResponseWriter, r *http.Request) {
	taskAddr, err := pathAddress(r, "addr")
	if err != nil {
		api.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	escrowAddr, _ := types.EscrowAddress(taskAddr)
	acc, err := api.chain.Ledger().GetAccount(escrowAddr)
	if err != nil {
		api.sendChainError(w, err)
		return
	}
	api.sendResponse(w, APIResponse{Success: true, Data: acc})
}

func (api *API) GetBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "addr")
	if err != nil {
		api.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	balance, err := api.chain.Ledger().Balance(addr)
	if err != nil {
		api.sendError(w, "Failed to read balance", http.StatusInternalServerError)
		return
	}
	api.sendResponse(w, APIResponse{
		Success: true,
		Data:    map[string]interface{}{"address": addr, "balance": balance},
	})
}

func (api *API) Faucet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address types.Address `json:"address"`
		Amount  uint64        `json:"amount"`
	}
	if !api.decode(w, r, &req) {
		return
	}
	if err := api.chain.Fund(req.Address, req.Amount); err != nil {
		api.sendChainError(w, err)
		return
	}
	api.sendResponse(w, APIResponse{Success: true})
}

// Instruction handlers

func (api *API) TxInitialize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller types.Address `json:"caller"`
	}
	if !api.decode(w, r, &req) {
		return
	}
	addr, err := api.chain.Initialize(req.Caller)
	if err != nil {
		api.sendChainError(w, err)
		return
	}
	api.sendResponse(w, APIResponse{Success: true, Data: map[string]interface{}{"config": addr}})
}

func (api *API) TxPublishModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller      types.Address `json:"caller"`
		Name        string        `json:"name"`
		WeightsHash types.Hash32  `json:"weights_hash"`
		MetadataURI string        `json:"metadata_uri"`
		License     types.License `json:"license"`
	}
	if !api.decode(w, r, &req) {
		return
	}
	res, err := api.chain.PublishModel(chain.PublishModelRequest{
		Caller:      req.Caller,
		Name:        req.Name,
		WeightsHash: req.WeightsHash,
		MetadataURI: req.MetadataURI,
		License:     req.License,
	})
	if err != nil {
		api.sendChainError(w, err)
		return
	}
	api.sendResponse(w, APIResponse{Success: true, Data: res})
}

func (api *API) TxAddVersion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller      types.Address `json:"caller"`
		Model       types.Address `json:"model"`
		WeightsHash types.Hash32  `json:"weights_hash"`
		MetadataURI string        `json:"metadata_uri"`
	}
	if !api.decode(w, r, &req) {
		return
	}
	addr, err := api.chain.AddVersion(chain.AddVersionRequest{
		Caller:      req.Caller,
		Model:       req.Model,
		WeightsHash: req.WeightsHash,
		MetadataURI: req.MetadataURI,
	})
	if err != nil {
		api.sendChainError(w, err)
		return
	}
	api.sendResponse(w, APIResponse{Success: true, Data: map[string]interface{}{"version": addr}})
}

func (api *API) TxUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller      types.Address `json:"caller"`
		Model       types.Address `json:"model"`
		MetadataURI string        `json:"metadata_uri"`
	}
	if !api.decode(w, r, &req) {
		return
	}
	if err := api.chain.UpdateMetadata(req.Caller, req.Model, req.MetadataURI); err != nil {
		api.sendChainError(w, err)
		return
	}
	api.sendResponse(w, APIResponse{Success: true})
}

func (api *API) TxDeprecateModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller types.Address `json:"caller"`
		Model  types.Address `json:"model"`
	}
	if !api.decode(w, r, &req) {
		return
	}
	if err := api.chain.DeprecateModel(req.Caller, req.Model); err != nil {
		api.sendChainError(w, err)
		return
	}
	api.sendResponse(w, APIResponse{Success: true})
}

func (api *API) TxTransferOwnership(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller   types.Address `json:"caller"`
		Model    types.Address `json:"model"`
		NewOwner types.Address `json:"new_owner"`
	}
	if !api.decode(w, r, &req) {
		return
	}
	if err := api.chain.TransferOwnership(req.Caller, req.Model, req.NewOwner); err != nil {
		api.sendChainError(w, err)
		return
	}
	api.sendResponse(w, APIResponse{Success: true})
}

func (api *API) TxRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller       types.Address `json:"caller"`
		AgentID      string        `json:"agent_id"`
		Capabilities uint64        `json:"capabilities"`
		Endpoint     string        `json:"endpoint"`
		MetadataURI  string        `json:"metadata_uri"`
		Stake        uint64        `json:"stake"`
	}
	if !api.decode(w, r, &req) {
		return
	}
	agentID, err := parseID(req.AgentID)
	if err != nil {
		api.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	addr, err := api.chain.RegisterAgent(chain.RegisterAgentRequest{
		Caller:       req.Caller,
		AgentID:      agentID,
		Capabilities: types.Capability(req.Capabilities),
		Endpoint:     req.Endpoint,
		MetadataURI:  req.MetadataURI,
		Stake:        req.Stake,
	})
	if err != nil {
		api.sendChainError(w, err)
		return
	}
	api.sendResponse(w, APIResponse{Success: true, Data: map[string]interface{}{"agent": addr}})
}

func (api *API) TxCreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller               types.Address  `json:"caller"`
		TaskID               string         `json:"task_id"`
		RequiredCapabilities uint64         `json:"required_capabilities"`
		Description          []byte         `json:"description"`
		ConstraintHash       types.Hash32   `json:"constraint_hash"`
		RewardAmount         uint64         `json:"reward_amount"`
		RewardMint           *types.Address `json:"reward_mint,omitempty"`
		MaxWorkers           uint16         `json:"max_workers"`
		RequiredCompletions  uint16         `json:"required_completions"`
		TaskType             uint8          `json:"task_type"`
		MinReputation        uint32         `json:"min_reputation"`
		Deadline             int64          `json:"deadline"`
		DependsOn            *types.Address `json:"depends_on,omitempty"`
		ProtocolFeeBps       uint16         `json:"protocol_fee_bps"`
	}
	if !api.decode(w, r, &req) {
		return
	}
	taskID, err := parseID(req.TaskID)
	if err != nil {
		api.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := api.chain.CreateTask(chain.CreateTaskRequest{
		Caller:               req.Caller,
		TaskID:               taskID,
		RequiredCapabilities: types.Capability(req.RequiredCapabilities),
		Description:          req.Description,
		ConstraintHash:       req.ConstraintHash,
		RewardAmount:         req.RewardAmount,
		RewardMint:           req.RewardMint,
		MaxWorkers:           req.MaxWorkers,
		RequiredCompletions:  req.RequiredCompletions,
		Type:                 types.TaskType(req.TaskType),
		MinReputation:        req.MinReputation,
		Deadline:             req.Deadline,
		DependsOn:            req.DependsOn,
		ProtocolFeeBps:       req.ProtocolFeeBps,
	})
	if err != nil {
		api.sendChainError(w, err)
		return
	}
	api.sendResponse(w, APIResponse{Success: true, Data: res})
}

func (api *API) TxClaimTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller types.Address `json:"caller"`
		Agent  types.Address `json:"agent"`
		Task   types.Address `json:"task"`
	}
	if !api.decode(w, r, &req) {
		return
	}
	if err := api.chain.ClaimTask(req.Caller, req.Agent, req.Task); err != nil {
		api.sendChainError(w, err)
		return
	}
	api.sendResponse(w, APIResponse{Success: true})
}

func (api *API) TxSubmitCompletion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller types.Address `json:"caller"`
		Agent  types.Address `json:"agent"`
		Task   types.Address `json:"task"`
		Result []byte        `json:"result"`
	}
	if !api.decode(w, r, &req) {
		return
	}
	if err := api.chain.SubmitCompletion(req.Caller, req.Agent, req.Task, req.Result); err != nil {
		api.sendChainError(w, err)
		return
	}
	api.sendResponse(w, APIResponse{Success: true})
}

func (api *API) TxValidateCompletion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller    types.Address `json:"caller"`
		Validator types.Address `json:"validator"`
		Task      types.Address `json:"task"`
		Accept    bool          `json:"accept"`
	}
	if !api.decode(w, r, &req) {
		return
	}
	if err := api.chain.ValidateCompletion(req.Caller, req.Validator, req.Task, req.Accept); err != nil {
		api.sendChainError(w, err)
		return
	}
	api.sendResponse(w, APIResponse{Success: true})
}

func (api *API) TxDisputeTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller types.Address `json:"caller"`
		Task   types.Address `json:"task"`
	}
	if !api.decode(w, r, &req) {
		return
	}
	if err := api.chain.DisputeTask(req.Caller, req.Task); err != nil {
		api.sendChainError(w, err)
		return
	}
	api.sendResponse(w, APIResponse{Success: true})
}

func (api *API) TxResolveDispute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller  types.Address `json:"caller"`
		Arbiter types.Address `json:"arbiter"`
		Task    types.Address `json:"task"`
		Outcome uint8         `json:"outcome"`
	}
	if !api.decode(w, r, &req) {
		return
	}
	if err := api.chain.ResolveDispute(req.Caller, req.Arbiter, req.Task, types.DisputeOutcome(req.Outcome)); err != nil {
		api.sendChainError(w, err)
		return
	}
	api.sendResponse(w, APIResponse{Success: true})
}

func (api *API) TxCancelTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller types.Address `json:"caller"`
		Task   types.Address `json:"task"`
	}
	if !api.decode(w, r, &req) {
		return
	}
	if err := api.chain.CancelTask(req.Caller, req.Task); err != nil {
		api.sendChainError(w, err)
		return
	}
	api.sendResponse(w, APIResponse{Success: true})
}

// Helper functions

func (api *API) decode(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		api.sendError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (api *API) sendResponse(w http.ResponseWriter, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (api *API) sendError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}

// sendChainError maps instruction failures onto HTTP status codes, keeping
// the specific error kind in the body.
func (api *API) sendChainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chain.ErrInvalidArgument), errors.Is(err, chain.ErrInvalidAddress):
		status = http.StatusBadRequest
	case errors.Is(err, chain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrAccountAlreadyExists),
		errors.Is(err, chain.ErrAlreadyInitialized),
		errors.Is(err, chain.ErrAlreadyDeprecated),
		errors.Is(err, chain.ErrAlreadySubmitted):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, chain.ErrModelDeprecated),
		errors.Is(err, chain.ErrTaskNotOpen),
		errors.Is(err, chain.ErrTaskNotInProgress),
		errors.Is(err, chain.ErrTaskNotPendingValidation),
		errors.Is(err, chain.ErrTaskNotDisputed),
		errors.Is(err, chain.ErrTaskNotCancellable),
		errors.Is(err, chain.ErrTaskFull),
		errors.Is(err, chain.ErrCapabilityMismatch),
		errors.Is(err, chain.ErrInsufficientReputation),
		errors.Is(err, chain.ErrDependencyNotMet),
		errors.Is(err, chain.ErrDeadlineExceeded),
		errors.Is(err, chain.ErrAgentNotActive),
		errors.Is(err, chain.ErrSelfValidation),
		errors.Is(err, chain.ErrInsufficientStake):
		status = http.StatusUnprocessableEntity
	}
	api.sendError(w, err.Error(), status)
}

func pathAddress(r *http.Request, key string) (types.Address, error) {
	return types.AddressFromHex(mux.Vars(r)[key])
}

func parseID(s string) ([32]byte, error) {
	var id [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid id %q: %w", s, err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("invalid id length: got %d bytes, want 32", len(b))
	}
	copy(id[:], b)
	return id, nil
}
