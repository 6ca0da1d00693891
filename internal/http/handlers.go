package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"budsjett/internal/core"
	"budsjett/internal/services"
)

type createAccountRequest struct {
	Name string `json:"name"`
}

type accountResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

func toAccountResponse(a core.Account) accountResponse {
	return accountResponse{ID: a.ID, Name: a.Name, Owner: a.Owner}
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing X-Owner header")
		return
	}

	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	account, err := s.plans.CreateAccount(r.Context(), req.Name, owner)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing X-Owner header")
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := s.plans.GetAccount(r.Context(), owner, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

type itemRequest struct {
	AccountID      int64       `json:"accountId"`
	Title          string      `json:"title"`
	Category       string      `json:"category"`
	Emoji          string      `json:"emoji"`
	Notes          string      `json:"notes"`
	Amount         int64       `json:"amount"`
	Recurring      bool        `json:"recurring"`
	StartMonth     core.Month  `json:"startMonth"`
	EndMonth       *core.Month `json:"endMonth"`
	IntervalMonths int         `json:"intervalMonths"`
	IntervalWeeks  int         `json:"intervalWeeks"`
	Weekday        int         `json:"weekday"`
	AnchorDay      int         `json:"anchorDay"`
}

func (req itemRequest) toItem() core.BudgetItem {
	return core.BudgetItem{
		AccountID:      req.AccountID,
		Title:          req.Title,
		Category:       req.Category,
		Emoji:          req.Emoji,
		Notes:          req.Notes,
		Amount:         req.Amount,
		Recurring:      req.Recurring,
		StartMonth:     req.StartMonth,
		EndMonth:       req.EndMonth,
		IntervalMonths: req.IntervalMonths,
		IntervalWeeks:  req.IntervalWeeks,
		Weekday:        req.Weekday,
		AnchorDay:      req.AnchorDay,
	}
}

type itemResponse struct {
	ID             int64       `json:"id"`
	AccountID      int64       `json:"accountId"`
	Title          string      `json:"title"`
	Category       string      `json:"category"`
	Emoji          string      `json:"emoji,omitempty"`
	Notes          string      `json:"notes,omitempty"`
	Amount         int64       `json:"amount"`
	Recurring      bool        `json:"recurring"`
	StartMonth     core.Month  `json:"startMonth"`
	EndMonth       *core.Month `json:"endMonth,omitempty"`
	IntervalMonths int         `json:"intervalMonths,omitempty"`
	IntervalWeeks  int         `json:"intervalWeeks,omitempty"`
	Weekday        int         `json:"weekday,omitempty"`
	AnchorDay      int         `json:"anchorDay,omitempty"`
}

func toItemResponse(it core.BudgetItem) itemResponse {
	return itemResponse{
		ID:             it.ID,
		AccountID:      it.AccountID,
		Title:          it.Title,
		Category:       it.Category,
		Emoji:          it.Emoji,
		Notes:          it.Notes,
		Amount:         it.Amount,
		Recurring:      it.Recurring,
		StartMonth:     it.StartMonth,
		EndMonth:       it.EndMonth,
		IntervalMonths: it.IntervalMonths,
		IntervalWeeks:  it.IntervalWeeks,
		Weekday:        it.Weekday,
		AnchorDay:      it.AnchorDay,
	}
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing X-Owner header")
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := s.plans.CreateItem(r.Context(), owner, req.toItem())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.invalidatePlans(created.AccountID)
	writeJSON(w, http.StatusCreated, toItemResponse(created))
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing X-Owner header")
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	it, err := s.plans.GetItem(r.Context(), owner, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(it))
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing X-Owner header")
		return
	}
	accountID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("account")), 10, 64)
	if err != nil || accountID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid account parameter")
		return
	}

	items, err := s.plans.ListItems(r.Context(), owner, accountID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResponse(it))
	}
	writeJSON(w, http.StatusOK, out)
}

// itemPatchRequest is the PATCH body. Absent fields keep their value;
// an empty endMonth string clears the end month.
type itemPatchRequest struct {
	Title          *string     `json:"title"`
	Category       *string     `json:"category"`
	Emoji          *string     `json:"emoji"`
	Notes          *string     `json:"notes"`
	Amount         *int64      `json:"amount"`
	Recurring      *bool       `json:"recurring"`
	StartMonth     *core.Month `json:"startMonth"`
	EndMonth       *string     `json:"endMonth"`
	IntervalMonths *int        `json:"intervalMonths"`
	IntervalWeeks  *int        `json:"intervalWeeks"`
	Weekday        *int        `json:"weekday"`
	AnchorDay      *int        `json:"anchorDay"`
}

func (req itemPatchRequest) toPatch() (services.ItemPatch, error) {
	patch := services.ItemPatch{
		Title:          req.Title,
		Category:       req.Category,
		Emoji:          req.Emoji,
		Notes:          req.Notes,
		Amount:         req.Amount,
		Recurring:      req.Recurring,
		StartMonth:     req.StartMonth,
		IntervalMonths: req.IntervalMonths,
		IntervalWeeks:  req.IntervalWeeks,
		Weekday:        req.Weekday,
		AnchorDay:      req.AnchorDay,
	}
	if req.EndMonth != nil {
		if strings.TrimSpace(*req.EndMonth) == "" {
			patch.ClearEndMonth = true
		} else {
			end, err := core.ParseMonth(*req.EndMonth)
			if err != nil {
				return services.ItemPatch{}, err
			}
			patch.EndMonth = &end
		}
	}
	return patch, nil
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing X-Owner header")
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req itemPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.plans.UpdateItem(r.Context(), owner, id, patch)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.invalidatePlans(updated.AccountID)
	writeJSON(w, http.StatusOK, toItemResponse(updated))
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing X-Owner header")
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Fetch first so the owning account's cache can be invalidated.
	it, err := s.plans.GetItem(r.Context(), owner, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := s.plans.DeleteItem(r.Context(), owner, id); err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.invalidatePlans(it.AccountID)
	w.WriteHeader(http.StatusNoContent)
}

type overrideRequest struct {
	Amount *int64  `json:"amount"`
	Skip   bool    `json:"skip"`
	Note   *string `json:"note"`
}

func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing X-Owner header")
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	month, err := core.ParseMonth(r.PathValue("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month, expected YYYY-MM")
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	it, err := s.plans.GetItem(r.Context(), owner, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	err = s.plans.SetOverride(r.Context(), owner, core.BudgetOverride{
		ItemID: id,
		Month:  month,
		Amount: req.Amount,
		Skip:   req.Skip,
		Note:   req.Note,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.invalidatePlans(it.AccountID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing X-Owner header")
		return
	}
	accountID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("account")), 10, 64)
	if err != nil || accountID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid account parameter")
		return
	}
	from, err := parseMonthQuery(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseMonthQuery(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := planRangeKey(from, to)
	if buckets, found := s.planCache.Get(accountID, key); found {
		// Ownership still has to hold for cached responses.
		if _, err := s.plans.GetAccount(r.Context(), owner, accountID); err != nil {
			writeDomainError(w, r, err)
			return
		}
		slog.DebugContext(r.Context(), "Plan cache hit",
			"account_id", accountID, "from", from.String(), "to", to.String())
		writeJSON(w, http.StatusOK, buckets)
		return
	}

	buckets, err := s.projections.Plan(r.Context(), owner, accountID, from, to)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.planCache.Set(accountID, key, buckets)
	writeJSON(w, http.StatusOK, buckets)
}
