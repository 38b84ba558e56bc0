// Package httpapi exposes the engine's dispatch surface over REST.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/chainlot/lottery-engine/internal/app"
	"github.com/chainlot/lottery-engine/internal/dispatch"
	"github.com/chainlot/lottery-engine/internal/domain/lottery"
	"github.com/chainlot/lottery-engine/internal/metrics"
	"github.com/chainlot/lottery-engine/pkg/logger"
)

// Handler routes REST calls into the engine's dispatcher.
type Handler struct {
	app *app.Application
	log *logger.Logger
}

// NewHandler returns the engine's REST router.
func NewHandler(application *app.Application, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &Handler{app: application, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/lotteries", h.dispatchBody("createLottery")).Methods(http.MethodPost)
	v1.HandleFunc("/lotteries/current", h.dispatchPath("getCurrentLotteryNo")).Methods(http.MethodGet)
	v1.HandleFunc("/lotteries/{lottery_no}", h.dispatchPath("getLotteryInfo")).Methods(http.MethodGet)
	v1.HandleFunc("/lotteries/{lottery_no}/phase", h.dispatchPath("getLotteryPhase")).Methods(http.MethodGet)
	v1.HandleFunc("/lotteries/{lottery_no}/sales", h.dispatchPath("getLotterySales")).Methods(http.MethodGet)
	v1.HandleFunc("/lotteries/{lottery_no}/url", h.dispatchPath("getLotteryURL")).Methods(http.MethodGet)
	v1.HandleFunc("/lotteries/{lottery_no}/tickets", h.dispatchBody("buyTicketTx")).Methods(http.MethodPost)
	v1.HandleFunc("/lotteries/{lottery_no}/tickets/{ticket_no}/owner", h.dispatchPath("getTicketOwner")).Methods(http.MethodGet)
	v1.HandleFunc("/lotteries/{lottery_no}/purchases", h.dispatchPath("getNumPurchaseTxs")).Methods(http.MethodGet)
	v1.HandleFunc("/lotteries/{lottery_no}/purchases/{index}", h.dispatchPath("getIthPurchasedTicketTx")).Methods(http.MethodGet)
	v1.HandleFunc("/lotteries/{lottery_no}/reveals", h.dispatchBody("revealRndNumberTx")).Methods(http.MethodPost)
	v1.HandleFunc("/lotteries/{lottery_no}/finalize", h.dispatchBody("finalizeLottery")).Methods(http.MethodPost)
	v1.HandleFunc("/lotteries/{lottery_no}/winners", h.winnersByAddr).Methods(http.MethodGet).Queries("addr", "{addr}")
	v1.HandleFunc("/lotteries/{lottery_no}/winners/{index}", h.dispatchPath("getIthWinningTicket")).Methods(http.MethodGet)
	v1.HandleFunc("/lotteries/{lottery_no}/proceeds", h.dispatchBody("withdrawTicketProceeds")).Methods(http.MethodPost)
	v1.HandleFunc("/lotteries/{lottery_no}/refunds/{index}", h.dispatchBody("withdrawTicketRefund")).Methods(http.MethodPost)
	v1.HandleFunc("/admin/payment-token", h.dispatchBody("setPaymentToken")).Methods(http.MethodPost)

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dispatchBody decodes the JSON body as operation params, merges in path
// variables and dispatches.
func (h *Handler) dispatchBody(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := map[string]any{}
		if r.Body != nil {
			if err := decodeJSON(r.Body, &params); err != nil && !errors.Is(err, io.EOF) {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		}
		mergePathVars(params, mux.Vars(r))
		h.call(w, r, op, params)
	}
}

// dispatchPath builds the params purely from path variables.
func (h *Handler) dispatchPath(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := map[string]any{}
		mergePathVars(params, mux.Vars(r))
		h.call(w, r, op, params)
	}
}

func (h *Handler) winnersByAddr(w http.ResponseWriter, r *http.Request) {
	params := map[string]any{"addr": r.URL.Query().Get("addr")}
	mergePathVars(params, mux.Vars(r))
	h.call(w, r, "checkIfAddrTicketWon", params)
}

func (h *Handler) call(w http.ResponseWriter, r *http.Request, op string, params map[string]any) {
	result, err := h.app.Dispatcher.Call(r.Context(), op, dispatch.Request{
		Caller: CallerFrom(r.Context()),
		Params: params,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// mergePathVars copies mux path variables into the params, converting the
// numeric ones so handlers see integers.
func mergePathVars(params map[string]any, vars map[string]string) {
	for k, v := range vars {
		switch k {
		case "lottery_no", "ticket_no", "index", "purchase_index":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				params[k] = n
				if k == "index" {
					params["purchase_index"] = n
				}
				continue
			}
		}
		params[k] = v
	}
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, lottery.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, lottery.ErrNoSuchLottery),
		errors.Is(err, lottery.ErrNoSuchPurchase),
		errors.Is(err, lottery.ErrNoSuchTicket),
		errors.Is(err, dispatch.ErrUnknownOperation):
		return http.StatusNotFound
	case errors.Is(err, lottery.ErrAlreadyRevealed),
		errors.Is(err, lottery.ErrAlreadyWithdrawn),
		errors.Is(err, lottery.ErrAlreadyRefunded):
		return http.StatusConflict
	case errors.Is(err, lottery.ErrLotteryEnded),
		errors.Is(err, lottery.ErrRevealWindowClosed),
		errors.Is(err, lottery.ErrNotEligible),
		errors.Is(err, lottery.ErrNotFinalized),
		errors.Is(err, lottery.ErrLotteryNotCanceled),
		errors.Is(err, lottery.ErrNotOwner):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func decodeJSON(r io.Reader, dst any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
