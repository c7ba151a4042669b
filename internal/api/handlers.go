package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"gymbody/internal/access"
	"gymbody/internal/booking"
	"gymbody/internal/catalog"
	"gymbody/internal/export"
	"gymbody/internal/members"
	"gymbody/internal/models"
)

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

type assignRequest struct {
	ClientID   string      `json:"client_id" validate:"required"`
	ClientRole models.Role `json:"client_role" validate:"required,oneof=member client-og client-sp"`
}

type cancelRequest struct {
	// HolderID lets staff cancel a client's booking.
	HolderID   string      `json:"holder_id"`
	HolderRole models.Role `json:"holder_role" validate:"omitempty,oneof=member client-og client-sp"`
}

type confirmRequest struct {
	Confirm *bool `json:"confirm" validate:"required"`
}

type preferenceRequest struct {
	Key   string `json:"key" validate:"required,max=64"`
	Value string `json:"value" validate:"max=64"`
}

type mealRequest struct {
	Name string `json:"name" validate:"required,max=120"`
	Kcal int    `json:"kcal" validate:"required,gt=0,lte=10000"`
}

type chatRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// bookingResponse carries the session state after a booking action, or the parked
// request when a confirmation is needed.
type bookingResponse struct {
	*booking.Result
	ConfirmationRequired bool   `json:"confirmation_required,omitempty"`
	Declined             bool   `json:"declined,omitempty"`
	Error                string `json:"error,omitempty"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow("login:" + clientHost(r)) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	token, user, err := s.svc.Auth.Login(req.Username, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request, _ models.User) {
	s.svc.Auth.Logout(bearerToken(r))
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request, user models.User) {
	gym, err := s.svc.Catalog.Gym(user.GymID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	caps := access.For(user.Role)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":       user,
		"gym":        gym,
		"staff":      caps.Staff,
		"views":      caps.Views,
		"actions":    caps.Actions,
		"categories": caps.Categories,
	})
}

func (s *HTTPServer) handleSchedule(w http.ResponseWriter, r *http.Request, user models.User) {
	q := r.URL.Query()
	category := models.Category(strings.TrimSpace(q.Get("category")))
	if category != "" && !category.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown category %q", category))
		return
	}
	query := catalog.Query{
		Date:     strings.TrimSpace(q.Get("date")),
		Trainer:  strings.TrimSpace(q.Get("trainer")),
		Category: category,
		HidePast: q.Get("hide_past") == "true" || q.Get("hide_past") == "1",
	}

	views, err := s.svc.Booking.Schedule(r.Context(), user, query)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	// facets ignore the active filters
	all, err := s.svc.Catalog.Sessions(r.Context(), user.GymID, catalog.Query{Caps: access.For(user.Role), HidePast: query.HidePast})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := map[string]any{
		"sessions": views,
		"dates":    catalog.Dates(all),
		"trainers": catalog.Trainers(all),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request, user models.User) {
	avail, err := s.svc.Booking.Availability(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, avail)
}

func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request, user models.User) {
	res, err := s.svc.Booking.Book(r.Context(), user, r.PathValue("id"))
	s.writeBooking(w, r, res, err)
}

func (s *HTTPServer) handleToggle(w http.ResponseWriter, r *http.Request, user models.User) {
	res, err := s.svc.Booking.Toggle(r.Context(), user, r.PathValue("id"))
	s.writeBooking(w, r, res, err)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request, user models.User) {
	var req cancelRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	holder := booking.Holder{ID: user.ID, Role: user.Role}
	if req.HolderID != "" && req.HolderID != user.ID {
		holder = s.holderFor(req.HolderID, req.HolderRole)
	}
	res, err := s.svc.Booking.Cancel(r.Context(), user, holder, r.PathValue("id"))
	s.writeBooking(w, r, res, err)
}

func (s *HTTPServer) handleAssign(w http.ResponseWriter, r *http.Request, user models.User) {
	var req assignRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	holder := s.holderFor(req.ClientID, req.ClientRole)
	res, err := s.svc.Booking.AssignClient(r.Context(), user, holder, r.PathValue("id"))
	s.writeBooking(w, r, res, err)
}

// holderFor prefers the role of a known account over the one sent by the client.
func (s *HTTPServer) holderFor(id string, role models.Role) booking.Holder {
	if u, ok := s.svc.Auth.Lookup(id); ok {
		return booking.Holder{ID: u.ID, Role: u.Role}
	}
	if role == "" {
		role = models.RoleMember
	}
	return booking.Holder{ID: id, Role: role}
}

func (s *HTTPServer) handleConfirm(w http.ResponseWriter, r *http.Request, user models.User) {
	var req confirmRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	res, err := s.svc.Booking.Confirm(r.Context(), user, *req.Confirm)
	if err == nil && res == nil {
		writeJSON(w, http.StatusOK, bookingResponse{Declined: true})
		return
	}
	s.writeBooking(w, r, res, err)
}

func (s *HTTPServer) writeBooking(w http.ResponseWriter, r *http.Request, res *booking.Result, err error) {
	if errors.Is(err, booking.ErrConfirmationRequired) {
		writeJSON(w, http.StatusConflict, bookingResponse{
			Result:               res,
			ConfirmationRequired: true,
			Error:                err.Error(),
		})
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse{Result: res})
}

func (s *HTTPServer) handlePending(w http.ResponseWriter, r *http.Request, user models.User) {
	st, err := s.svc.Booking.Pending(r.Context(), user)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if st == nil {
		writeJSON(w, http.StatusOK, map[string]any{"pending": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pending":    true,
		"session_id": st.GetString(models.TempSessionID),
		"holder_id":  st.GetString(models.TempHolderID),
		"conflicts":  st.Strings(models.TempConflicts),
	})
}

func (s *HTTPServer) handleMySessions(w http.ResponseWriter, r *http.Request, user models.User) {
	upcoming := r.URL.Query().Get("all") != "true"
	views, err := s.svc.Booking.UserSessions(r.Context(), user.GymID, user.ID, upcoming)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

func (s *HTTPServer) handleMembers(w http.ResponseWriter, r *http.Request, user models.User) {
	list, err := s.svc.Members.Search(r.Context(), user, user.GymID, r.URL.Query().Get("q"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": list})
}

func (s *HTTPServer) handleCheckIn(w http.ResponseWriter, r *http.Request, user models.User) {
	m, err := s.svc.Members.CheckIn(r.Context(), user, r.PathValue("id"))
	if errors.Is(err, members.ErrAccessDenied) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":  fmt.Sprintf("Access Denied: %s Membership", m.Status),
			"member": m,
		})
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"member": m})
}

func (s *HTTPServer) handlePayments(w http.ResponseWriter, r *http.Request, user models.User) {
	q := r.URL.Query()
	list, stats, err := s.svc.Members.Payments(r.Context(), user, user.GymID, members.PaymentFilter(q.Get("filter")), q.Get("q"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payments": list,
		"stats":    stats,
	})
}

func (s *HTTPServer) handleConfirmCash(w http.ResponseWriter, r *http.Request, user models.User) {
	rec, err := s.svc.Members.ConfirmCash(r.Context(), user, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payment": rec})
}

func (s *HTTPServer) handleRemind(w http.ResponseWriter, r *http.Request, user models.User) {
	if err := s.svc.Members.SendReminder(r.Context(), user, r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": true})
}

func (s *HTTPServer) handlePreferences(w http.ResponseWriter, r *http.Request, user models.User) {
	prefs, err := s.svc.Wellness.Preferences(r.Context(), user.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preferences": prefs})
}

func (s *HTTPServer) handleSetPreference(w http.ResponseWriter, r *http.Request, user models.User) {
	var req preferenceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	v, err := s.svc.Wellness.SetPreference(r.Context(), user.ID, req.Key, req.Value)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": req.Key, "value": v})
}

func (s *HTTPServer) handleMeals(w http.ResponseWriter, r *http.Request, user models.User) {
	day, err := s.svc.Wellness.Day(r.Context(), user.ID, s.svc.Catalog.Location(user.GymID))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (s *HTTPServer) handleLogMeal(w http.ResponseWriter, r *http.Request, user models.User) {
	var req mealRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	meal, err := s.svc.Wellness.LogMeal(r.Context(), user.ID, req.Name, req.Kcal)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, meal)
}

func (s *HTTPServer) handleFoodIdea(w http.ResponseWriter, r *http.Request, user models.User) {
	if !access.For(user.Role).Can(access.ActionChatNutrition) {
		writeError(w, http.StatusForbidden, "action not permitted for this role")
		return
	}
	gym, err := s.svc.Catalog.Gym(user.GymID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	reply, err := s.svc.Wellness.FoodIdea(r.Context(), gym, user.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *HTTPServer) handleProgress(w http.ResponseWriter, r *http.Request, user models.User) {
	p, err := s.svc.Wellness.Progress(r.Context(), user.GymID, user.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

var chatActions = map[models.ChatMode]access.Action{
	models.ChatFrontDesk:    access.ActionChatFrontDesk,
	models.ChatTrainer:      access.ActionChatTrainer,
	models.ChatNutritionist: access.ActionChatNutrition,
}

// chatMode reads and authorises the {mode} path value. It writes the error response
// itself and reports false on failure.
func chatMode(w http.ResponseWriter, r *http.Request, user models.User) (models.ChatMode, bool) {
	mode := models.ChatMode(r.PathValue("mode"))
	action, ok := chatActions[mode]
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown chat mode %q", mode))
		return "", false
	}
	if !access.For(user.Role).Can(action) {
		writeError(w, http.StatusForbidden, "action not permitted for this role")
		return "", false
	}
	return mode, true
}

func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request, user models.User) {
	mode, ok := chatMode(w, r, user)
	if !ok {
		return
	}
	var req chatRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	gym, err := s.svc.Catalog.Gym(user.GymID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	reply, err := s.svc.Assistant.Send(r.Context(), gym, user.ID, mode, req.Text)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *HTTPServer) handleChatHistory(w http.ResponseWriter, r *http.Request, user models.User) {
	mode, ok := chatMode(w, r, user)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":     mode,
		"messages": s.svc.Assistant.History(user.GymID, user.ID, mode),
	})
}

func (s *HTTPServer) handleChatReset(w http.ResponseWriter, r *http.Request, user models.User) {
	mode, ok := chatMode(w, r, user)
	if !ok {
		return
	}
	s.svc.Assistant.Reset(user.GymID, user.ID, mode)
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, user models.User) {
	caps := access.For(user.Role)
	if !caps.Can(access.ActionExport) {
		writeError(w, http.StatusForbidden, "action not permitted for this role")
		return
	}
	gym, err := s.svc.Catalog.Gym(user.GymID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	now := s.now()
	days, err := s.svc.Catalog.Window(gym.ID, now)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	sessions, err := s.svc.Catalog.Sessions(r.Context(), gym.ID, catalog.Query{Caps: caps, Now: now})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	f, err := export.Workbook(gym, days, sessions)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer f.Close()

	name := gym.ID + "_schedule"
	if len(days) > 0 {
		name += "_" + days[0].Date
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.xlsx"`)
	w.Header().Set("X-Session-Count", strconv.Itoa(len(sessions)))
	if err := f.Write(w); err != nil {
		s.logger.Error().Err(err).Msg("write export")
	}
}
