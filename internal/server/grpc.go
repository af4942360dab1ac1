package server

import (
	"VaultCore/internal/core"
	"VaultCore/internal/observability"
	"VaultCore/internal/query"
	"VaultCore/internal/registry"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Server hosts the gRPC endpoint (health + reflection, for ops tooling)
// and the HTTP/JSON API on a gateway mux. Vault and auction operations are
// plain JSON routes; the engine serializes them internally.
type Server struct {
	grpcServer    *grpc.Server
	httpServer    *http.Server
	grpcAddr      string
	httpAddr      string
	healthChecker *observability.HealthChecker
}

// Deps holds all dependencies needed by the API surface.
type Deps struct {
	Engine         *core.Engine
	Query          *query.Service
	MetricsHandler http.Handler
	HealthChecker  *observability.HealthChecker
}

// NewServer creates the server with all routes registered.
func NewServer(grpcAddr, httpAddr string, deps *Deps) *Server {
	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// Reflection for grpcurl / grpcui
	reflection.Register(grpcServer)

	mux := runtime.NewServeMux()
	api := &apiHandler{engine: deps.Engine, query: deps.Query}
	api.register(mux)

	httpMux := http.NewServeMux()
	if deps.HealthChecker != nil {
		httpMux.HandleFunc("/healthz", deps.HealthChecker.LivenessHandler)
		httpMux.HandleFunc("/readyz", deps.HealthChecker.ReadinessHandler)
	}
	if deps.MetricsHandler != nil {
		httpMux.Handle("/metrics", deps.MetricsHandler)
	}
	httpMux.Handle("/", mux)

	return &Server{
		grpcServer: grpcServer,
		httpServer: &http.Server{
			Addr:    httpAddr,
			Handler: httpMux,
		},
		grpcAddr:      grpcAddr,
		httpAddr:      httpAddr,
		healthChecker: deps.HealthChecker,
	}
}

// StartGRPC starts the gRPC server (blocking).
func (s *Server) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		log.Println("INFO: gRPC server shutting down...")
		s.grpcServer.GracefulStop()
	}()

	log.Printf("INFO: gRPC server listening on %s", s.grpcAddr)
	return s.grpcServer.Serve(lis)
}

// StartHTTP starts the HTTP/JSON API (blocking).
func (s *Server) StartHTTP(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		log.Println("INFO: HTTP server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("INFO: HTTP server listening on %s", s.httpAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// ============================================================================
// HTTP/JSON API
// ============================================================================

type apiHandler struct {
	engine *core.Engine
	query  *query.Service
}

func (h *apiHandler) register(mux *runtime.ServeMux) {
	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{"GET", "/v1/system", h.getSystem},
		{"GET", "/v1/assets/{asset}", h.getAsset},
		{"GET", "/v1/assets/{asset}/vaults/{owner}", h.getVault},
		{"GET", "/v1/auctions/{auction_id}", h.getAuction},
		{"GET", "/v1/ops", h.getOps},
		{"POST", "/v1/assets", h.initAsset},
		{"POST", "/v1/assets/{asset}/vaults/{owner}/standby", h.modifyStandby},
		{"POST", "/v1/assets/{asset}/equity", h.modifyEquity},
		{"POST", "/v1/assets/{asset}/debt", h.modifyDebt},
		{"POST", "/v1/assets/{asset}/interest", h.collectInterest},
		{"POST", "/v1/assets/{asset}/vaults/{owner}/liquidate", h.liquidateVault},
		{"POST", "/v1/auctions/{auction_id}/bids", h.placeBid},
		{"POST", "/v1/auctions/{auction_id}/buy", h.buyItNow},
		{"POST", "/v1/auctions/{auction_id}/finalize", h.finalizeSale},
		{"POST", "/v1/auctions/{auction_id}/reset", h.resetAuction},
		{"POST", "/v1/auctions/{auction_id}/cancel", h.cancelAuction},
		{"POST", "/v1/roles/grant", h.grantRole},
		{"POST", "/v1/roles/revoke", h.revokeRole},
	}

	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, r.handler); err != nil {
			// Route table is static; a failure here is a programming error.
			panic(fmt.Sprintf("register %s %s: %v", r.method, r.pattern, err))
		}
	}
}

// --- reads ---

func (h *apiHandler) getSystem(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, h.query.GetSystem())
}

func (h *apiHandler) getAsset(w http.ResponseWriter, r *http.Request, params map[string]string) {
	resp, err := h.query.GetAsset(params["asset"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *apiHandler) getVault(w http.ResponseWriter, r *http.Request, params map[string]string) {
	owner, err := uuid.Parse(params["owner"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid owner: %w", err))
		return
	}
	resp, err := h.query.GetVault(params["asset"], owner)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *apiHandler) getAuction(w http.ResponseWriter, r *http.Request, params map[string]string) {
	auctionID, err := uuid.Parse(params["auction_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid auction_id: %w", err))
		return
	}
	resp, err := h.query.GetAuction(auctionID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *apiHandler) getOps(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	from, _ := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.query.GetOpHistory(r.Context(), from, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ops": entries})
}

// --- mutations ---
// Callers identify themselves in the request body; authorization is
// enforced by the engine's access registry, not the transport.

type initAssetRequest struct {
	Caller     string `json:"caller"`
	AssetID    string `json:"asset_id"`
	Ceiling    string `json:"ceiling"`
	Floor      string `json:"floor"`
	VaultLimit string `json:"vault_limit"`
}

func (h *apiHandler) initAsset(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req initAssetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseUUIDField(w, "caller", req.Caller)
	if !ok {
		return
	}
	ceiling, ok := parseFixedField(w, "ceiling", req.Ceiling)
	if !ok {
		return
	}
	floor, ok := parseFixedField(w, "floor", req.Floor)
	if !ok {
		return
	}
	vaultLimit, ok := parseFixedField(w, "vault_limit", req.VaultLimit)
	if !ok {
		return
	}

	if err := h.engine.InitAsset(caller, req.AssetID, ceiling, floor, vaultLimit); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type modifyStandbyRequest struct {
	Caller string `json:"caller"`
	Delta  string `json:"delta"`
}

func (h *apiHandler) modifyStandby(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req modifyStandbyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseUUIDField(w, "caller", req.Caller)
	if !ok {
		return
	}
	owner, err := uuid.Parse(params["owner"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid owner: %w", err))
		return
	}
	delta, ok := parseFixedField(w, "delta", req.Delta)
	if !ok {
		return
	}

	if err := h.engine.ModifyStandby(caller, params["asset"], owner, delta); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type modifyPositionRequest struct {
	Caller          string `json:"caller"`
	DeltaCollateral string `json:"delta_collateral"`
	DeltaClaim      string `json:"delta_claim"`
}

func (h *apiHandler) modifyEquity(w http.ResponseWriter, r *http.Request, params map[string]string) {
	h.modifyPosition(w, r, params["asset"], h.engine.ModifyEquity)
}

func (h *apiHandler) modifyDebt(w http.ResponseWriter, r *http.Request, params map[string]string) {
	h.modifyPosition(w, r, params["asset"], h.engine.ModifyDebt)
}

func (h *apiHandler) modifyPosition(
	w http.ResponseWriter,
	r *http.Request,
	assetID string,
	op func(uuid.UUID, string, *big.Int, *big.Int) error,
) {
	var req modifyPositionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseUUIDField(w, "caller", req.Caller)
	if !ok {
		return
	}
	deltaCollateral, ok := parseFixedField(w, "delta_collateral", req.DeltaCollateral)
	if !ok {
		return
	}
	deltaClaim, ok := parseFixedField(w, "delta_claim", req.DeltaClaim)
	if !ok {
		return
	}

	if err := op(caller, assetID, deltaCollateral, deltaClaim); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type callerRequest struct {
	Caller string `json:"caller"`
}

func (h *apiHandler) collectInterest(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseUUIDField(w, "caller", req.Caller)
	if !ok {
		return
	}

	if err := h.engine.CollectInterest(caller, params["asset"]); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *apiHandler) liquidateVault(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseUUIDField(w, "caller", req.Caller)
	if !ok {
		return
	}
	owner, err := uuid.Parse(params["owner"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid owner: %w", err))
		return
	}

	auctionID, err := h.engine.LiquidateVault(caller, params["asset"], owner)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"auction_id": auctionID.String()})
}

type placeBidRequest struct {
	Caller string `json:"caller"`
	Price  string `json:"price"`
	Lot    string `json:"lot"`
}

func (h *apiHandler) placeBid(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req placeBidRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseUUIDField(w, "caller", req.Caller)
	if !ok {
		return
	}
	auctionID, err := uuid.Parse(params["auction_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid auction_id: %w", err))
		return
	}
	price, ok := parseFixedField(w, "price", req.Price)
	if !ok {
		return
	}
	lot, ok := parseFixedField(w, "lot", req.Lot)
	if !ok {
		return
	}

	if err := h.engine.PlaceBid(caller, auctionID, price, lot); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type buyItNowRequest struct {
	Caller   string `json:"caller"`
	MaxPrice string `json:"max_price"`
	Lot      string `json:"lot"`
}

func (h *apiHandler) buyItNow(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req buyItNowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseUUIDField(w, "caller", req.Caller)
	if !ok {
		return
	}
	auctionID, err := uuid.Parse(params["auction_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid auction_id: %w", err))
		return
	}
	maxPrice, ok := parseFixedField(w, "max_price", req.MaxPrice)
	if !ok {
		return
	}
	lot, ok := parseFixedField(w, "lot", req.Lot)
	if !ok {
		return
	}

	if err := h.engine.BuyItNow(caller, auctionID, maxPrice, lot); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *apiHandler) finalizeSale(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseUUIDField(w, "caller", req.Caller)
	if !ok {
		return
	}
	auctionID, err := uuid.Parse(params["auction_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid auction_id: %w", err))
		return
	}

	if err := h.engine.FinalizeSale(caller, auctionID); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *apiHandler) resetAuction(w http.ResponseWriter, r *http.Request, params map[string]string) {
	auctionID, err := uuid.Parse(params["auction_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid auction_id: %w", err))
		return
	}

	if err := h.engine.ResetAuction(auctionID); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type cancelAuctionRequest struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
}

func (h *apiHandler) cancelAuction(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req cancelAuctionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseUUIDField(w, "caller", req.Caller)
	if !ok {
		return
	}
	recipient, ok := parseUUIDField(w, "recipient", req.Recipient)
	if !ok {
		return
	}
	auctionID, err := uuid.Parse(params["auction_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid auction_id: %w", err))
		return
	}

	if err := h.engine.CancelAuction(caller, auctionID, recipient); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type roleRequest struct {
	Caller  string `json:"caller"`
	Role    string `json:"role"`
	Account string `json:"account"`
}

func (h *apiHandler) grantRole(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	h.modifyRole(w, r, h.engine.GrantRole)
}

func (h *apiHandler) revokeRole(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	h.modifyRole(w, r, h.engine.RevokeRole)
}

func (h *apiHandler) modifyRole(
	w http.ResponseWriter,
	r *http.Request,
	op func(uuid.UUID, registry.Role, uuid.UUID) error,
) {
	var req roleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseUUIDField(w, "caller", req.Caller)
	if !ok {
		return
	}
	account, ok := parseUUIDField(w, "account", req.Account)
	if !ok {
		return
	}
	role, err := registry.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := op(caller, role, account); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- helpers ---

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return false
	}
	return true
}

func parseUUIDField(w http.ResponseWriter, field, value string) (uuid.UUID, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid %s: %w", field, err))
		return uuid.Nil, false
	}
	return id, true
}

func parseFixedField(w http.ResponseWriter, field, value string) (*big.Int, bool) {
	if value == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing %s", field))
		return nil, false
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid %s: %q is not a decimal integer", field, value))
		return nil, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("WARN: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
