package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/core/domain"
	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/core/service"
	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/port"
)

// HTTPHandler exposes the order, prep sheet, and production tracking
// operations. Authentication happens upstream; the acting user arrives in
// the X-Actor header and is threaded through every mutating call.
type HTTPHandler struct {
	orders   *service.OrderService
	batches  *service.BatchService
	tracking *service.TrackingService
}

func NewHTTPHandler(orders *service.OrderService, batches *service.BatchService, tracking *service.TrackingService) *HTTPHandler {
	return &HTTPHandler{orders: orders, batches: batches, tracking: tracking}
}

// Register wires every route onto mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("POST /api/orders/{id}/status", h.UpdateOrderStatus)
	mux.HandleFunc("POST /api/orders/status", h.BulkUpdateOrderStatus)
	mux.HandleFunc("POST /api/batches", h.CreateDraftBatch)
	mux.HandleFunc("GET /api/batches/{id}", h.GetBatch)
	mux.HandleFunc("POST /api/batches/{id}/orders", h.AssignOrder)
	mux.HandleFunc("DELETE /api/batches/{id}/orders/{orderID}", h.UnassignOrder)
	mux.HandleFunc("POST /api/batches/{id}/extras", h.AddExtra)
	mux.HandleFunc("PATCH /api/batches/{id}/extras/{itemID}", h.UpdateExtra)
	mux.HandleFunc("DELETE /api/batches/{id}/extras/{itemID}", h.RemoveExtra)
	mux.HandleFunc("POST /api/batches/{id}/finalize", h.FinalizeBatch)
	mux.HandleFunc("GET /api/batches/available-orders", h.ListAvailableOrders)
	mux.HandleFunc("POST /api/records/{id}/disposition", h.UpdateDisposition)
	mux.HandleFunc("POST /api/records/{id}/split", h.SplitRecord)
	mux.HandleFunc("GET /api/slots/{id}/capacity", h.SlotCapacity)
}

type statusRequest struct {
	Status string `json:"status"`
}

type bulkStatusRequest struct {
	OrderIDs []string `json:"order_ids"`
	Status   string   `json:"status"`
}

type createBatchRequest struct {
	Date string `json:"date"`
}

type assignOrderRequest struct {
	OrderID string `json:"order_id"`
}

type extraRequest struct {
	FlavorID string `json:"flavor_id"`
	Flavor   string `json:"flavor"`
	Quantity int    `json:"quantity"`
}

type finalizeRequest struct {
	ActualQuantities map[string]int `json:"actual_quantities"`
}

type dispositionRequest struct {
	Disposition    string `json:"disposition"`
	SalePriceCents int    `json:"sale_price_cents"`
}

type splitRequest struct {
	Quantity    int    `json:"quantity"`
	Disposition string `json:"disposition"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w)
		return
	}
	err := h.orders.UpdateStatus(r.Context(), actor(r), r.PathValue("id"), domain.OrderStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "order status updated"})
}

func (h *HTTPHandler) BulkUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w)
		return
	}
	err := h.orders.BulkUpdateStatus(r.Context(), actor(r), req.OrderIDs, domain.OrderStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "order statuses updated"})
}

func (h *HTTPHandler) CreateDraftBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, domain.Validationf("date must be YYYY-MM-DD, got %q", req.Date))
		return
	}
	b, err := h.batches.CreateDraft(r.Context(), actor(r), date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, batchResponse(b))
}

func (h *HTTPHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	b, err := h.batches.GetBatch(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse(b))
}

func (h *HTTPHandler) AssignOrder(w http.ResponseWriter, r *http.Request) {
	var req assignOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w)
		return
	}
	if req.OrderID == "" {
		writeError(w, domain.Validationf("order_id is required"))
		return
	}
	if err := h.batches.AssignOrder(r.Context(), actor(r), r.PathValue("id"), req.OrderID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "order assigned"})
}

func (h *HTTPHandler) UnassignOrder(w http.ResponseWriter, r *http.Request) {
	err := h.batches.UnassignOrder(r.Context(), actor(r), r.PathValue("id"), r.PathValue("orderID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "order unassigned"})
}

func (h *HTTPHandler) AddExtra(w http.ResponseWriter, r *http.Request) {
	var req extraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w)
		return
	}
	item, err := h.batches.AddExtra(r.Context(), actor(r), r.PathValue("id"), req.FlavorID, req.Flavor, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, itemResponse(*item))
}

func (h *HTTPHandler) UpdateExtra(w http.ResponseWriter, r *http.Request) {
	var req extraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w)
		return
	}
	err := h.batches.UpdateExtra(r.Context(), actor(r), r.PathValue("id"), r.PathValue("itemID"), req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "extra updated"})
}

func (h *HTTPHandler) RemoveExtra(w http.ResponseWriter, r *http.Request) {
	err := h.batches.RemoveExtra(r.Context(), actor(r), r.PathValue("id"), r.PathValue("itemID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "extra removed"})
}

func (h *HTTPHandler) FinalizeBatch(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w)
		return
	}
	b, err := h.batches.Finalize(r.Context(), actor(r), r.PathValue("id"), req.ActualQuantities)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse(b))
}

func (h *HTTPHandler) ListAvailableOrders(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		writeError(w, domain.Validationf("date must be YYYY-MM-DD, got %q", raw))
		return
	}
	orders, err := h.batches.ListAvailableOrders(r.Context(), date)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]orderJSON, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) UpdateDisposition(w http.ResponseWriter, r *http.Request) {
	var req dispositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w)
		return
	}
	err := h.tracking.UpdateDisposition(r.Context(), actor(r), r.PathValue("id"),
		domain.Disposition(req.Disposition), req.SalePriceCents)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "disposition updated"})
}

func (h *HTTPHandler) SplitRecord(w http.ResponseWriter, r *http.Request) {
	var req splitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w)
		return
	}
	sibling, err := h.tracking.Split(r.Context(), actor(r), r.PathValue("id"),
		req.Quantity, domain.Disposition(req.Disposition))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, recordResponse(*sibling))
}

func (h *HTTPHandler) SlotCapacity(w http.ResponseWriter, r *http.Request) {
	sc, err := h.orders.SlotOpenCapacity(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"slot_id":       sc.SlotID,
		"capacity":      sc.Capacity,
		"committed":     sc.Committed,
		"open_capacity": sc.OpenCapacity,
	})
}

type orderJSON struct {
	ID       string            `json:"id"`
	SlotID   string            `json:"slot_id"`
	Customer string            `json:"customer"`
	Status   string            `json:"status"`
	Lines    []domain.LineItem `json:"lines"`
	Units    int               `json:"units"`
}

func orderResponse(o domain.Order) orderJSON {
	return orderJSON{
		ID:       o.ID,
		SlotID:   o.SlotID,
		Customer: o.Customer,
		Status:   string(o.Status),
		Lines:    o.Lines,
		Units:    o.UnitQuantity(),
	}
}

type itemJSON struct {
	ID              string `json:"id"`
	OrderID         string `json:"order_id,omitempty"`
	Customer        string `json:"customer,omitempty"`
	FlavorID        string `json:"flavor_id"`
	Flavor          string `json:"flavor"`
	PlannedQuantity int    `json:"planned_quantity"`
}

func itemResponse(i domain.BatchItem) itemJSON {
	return itemJSON{
		ID:              i.ID,
		OrderID:         i.OrderID,
		Customer:        i.Customer,
		FlavorID:        i.FlavorID,
		Flavor:          i.Flavor,
		PlannedQuantity: i.PlannedQuantity,
	}
}

type batchJSON struct {
	ID          string     `json:"id"`
	TargetDate  string     `json:"target_date"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy string     `json:"completed_by,omitempty"`
	Items       []itemJSON `json:"items"`
}

func batchResponse(b *domain.Batch) batchJSON {
	items := make([]itemJSON, 0, len(b.Items))
	for _, i := range b.Items {
		items = append(items, itemResponse(i))
	}
	return batchJSON{
		ID:          b.ID,
		TargetDate:  b.TargetDate.Format("2006-01-02"),
		Status:      string(b.Status),
		CompletedAt: b.CompletedAt,
		CompletedBy: b.CompletedBy,
		Items:       items,
	}
}

type recordJSON struct {
	ID             string `json:"id"`
	BatchID        string `json:"batch_id"`
	OrderID        string `json:"order_id,omitempty"`
	ParentID       string `json:"parent_id,omitempty"`
	FlavorID       string `json:"flavor_id"`
	Flavor         string `json:"flavor"`
	Quantity       int    `json:"quantity"`
	Disposition    string `json:"disposition"`
	SalePriceCents int    `json:"sale_price_cents"`
}

func recordResponse(rec domain.ProductionRecord) recordJSON {
	return recordJSON{
		ID:             rec.ID,
		BatchID:        rec.BatchID,
		OrderID:        rec.OrderID,
		ParentID:       rec.ParentID,
		FlavorID:       rec.FlavorID,
		Flavor:         rec.Flavor,
		Quantity:       rec.Quantity,
		Disposition:    string(rec.Disposition),
		SalePriceCents: rec.SalePriceCents,
	}
}

func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	return "unknown"
}

func writeError(w http.ResponseWriter, err error) {
	var validation domain.ValidationError
	var notFound domain.NotFoundError
	var state domain.StateError

	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
		message = validation.Msg
	case errors.As(err, &notFound):
		status = http.StatusNotFound
		message = notFound.Error()
	case errors.As(err, &state):
		status = http.StatusConflict
		message = state.Msg
	case errors.Is(err, port.ErrConflict):
		status = http.StatusConflict
		message = "changed by a concurrent update, reload and retry"
	}

	writeJSON(w, status, messageResponse{Success: false, Message: message})
}

func writeBadBody(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, messageResponse{Success: false, Message: "invalid request body"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
