package server

import (
	"net/http"

	"find-the-impostor/internal/game"
	"find-the-impostor/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type roomURI struct {
	Code string `uri:"code" binding:"required,joincode"`
}

type sessionRequest struct {
	Name string `json:"name" binding:"required,name"`
}

type nameRequest struct {
	Name string `json:"name" binding:"omitempty,name"`
}

type settingsRequest struct {
	MinPlayers    int `json:"min_players" binding:"required,min=2,max=20"`
	MaxPlayers    int `json:"max_players" binding:"required,min=2,max=20"`
	ImpostorCount int `json:"impostor_count" binding:"required,min=1"`
	PointsToWin   int `json:"points_to_win" binding:"required,min=1"`
}

type kickRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
}

type clueRequest struct {
	Text string `json:"text" binding:"required,clue"`
}

type voteRequest struct {
	TargetID string `json:"target_id" binding:"required"`
}

var (
	nameMessages = bindMessages{
		"Name": {
			"required": "name is required",
			"name":     "name must be 1-32 printable characters",
		},
	}
	settingsMessages = bindMessages{
		"MinPlayers":    {"required": "min_players is required", "min": "min_players must be at least 2", "max": "min_players must be 20 or fewer"},
		"MaxPlayers":    {"required": "max_players is required", "min": "max_players must be at least 2", "max": "max_players must be 20 or fewer"},
		"ImpostorCount": {"required": "impostor_count is required", "min": "impostor_count must be at least 1"},
		"PointsToWin":   {"required": "points_to_win is required", "min": "points_to_win must be at least 1"},
	}
	clueMessages = bindMessages{
		"Text": {
			"required": "clue is required",
			"clue":     "clue must be between 1 and 60 characters",
		},
	}
)

func (s *Server) handleCreateSession(c *gin.Context) {
	var req sessionRequest
	if !bindJSON(c, &req, nameMessages, "invalid session request") {
		return
	}
	name, _ := validateName(req.Name)
	session, err := s.sessions.Issue(name)
	if err != nil {
		s.logger.Error("issue session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token":      session.Token,
		"user_id":    session.UserID,
		"name":       session.Name,
		"expires_at": session.ExpiresAt.Unix(),
	})
}

func (s *Server) handleCreateRoom(c *gin.Context) {
	var req nameRequest
	if !bindOptionalJSON(c, &req, nameMessages, "invalid room request") {
		return
	}
	guest := currentGuest(c)
	room, host, err := s.service.CreateRoom(c.Request.Context(), guest.UserID, s.displayName(req.Name, guest))
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.watch(c, room.ID)
	c.JSON(http.StatusCreated, gin.H{
		"room_id":        room.ID,
		"code":           room.Code,
		"participant_id": host.ID,
		"join_url":       s.joinURL(c, room.Code),
	})
}

func (s *Server) handleGetRoom(c *gin.Context) {
	room, ok := s.roomFromURI(c)
	if !ok {
		return
	}
	s.respondRoom(c, http.StatusOK, room.ID)
}

func (s *Server) handleJoin(c *gin.Context) {
	var req nameRequest
	if !bindOptionalJSON(c, &req, nameMessages, "invalid join request") {
		return
	}
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	guest := currentGuest(c)
	room, _, err := s.service.Join(c.Request.Context(), uri.Code, guest.UserID, s.displayName(req.Name, guest))
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.watch(c, room.ID)
	s.respondRoom(c, http.StatusOK, room.ID)
}

func (s *Server) handleLeave(c *gin.Context) {
	room, ok := s.roomFromURI(c)
	if !ok {
		return
	}
	if err := s.service.Leave(c.Request.Context(), room.ID, currentGuest(c).UserID); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleReady(c *gin.Context) {
	room, ok := s.roomFromURI(c)
	if !ok {
		return
	}
	if _, err := s.service.ToggleReady(c.Request.Context(), room.ID, currentGuest(c).UserID); err != nil {
		s.writeError(c, err)
		return
	}
	s.respondRoom(c, http.StatusOK, room.ID)
}

func (s *Server) handleSettings(c *gin.Context) {
	var req settingsRequest
	if !bindJSON(c, &req, settingsMessages, "invalid settings") {
		return
	}
	room, ok := s.roomFromURI(c)
	if !ok {
		return
	}
	err := s.service.UpdateSettings(c.Request.Context(), room.ID, currentGuest(c).UserID, store.Settings{
		MinPlayers:    req.MinPlayers,
		MaxPlayers:    req.MaxPlayers,
		ImpostorCount: req.ImpostorCount,
		PointsToWin:   req.PointsToWin,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.respondRoom(c, http.StatusOK, room.ID)
}

func (s *Server) handleAddBot(c *gin.Context) {
	room, ok := s.roomFromURI(c)
	if !ok {
		return
	}
	if _, err := s.service.AddBot(c.Request.Context(), room.ID, currentGuest(c).UserID); err != nil {
		s.writeError(c, err)
		return
	}
	s.watch(c, room.ID)
	s.respondRoom(c, http.StatusCreated, room.ID)
}

func (s *Server) handleRemoveBot(c *gin.Context) {
	room, ok := s.roomFromURI(c)
	if !ok {
		return
	}
	if err := s.service.RemoveBot(c.Request.Context(), room.ID, currentGuest(c).UserID); err != nil {
		s.writeError(c, err)
		return
	}
	s.respondRoom(c, http.StatusOK, room.ID)
}

func (s *Server) handleKick(c *gin.Context) {
	var req kickRequest
	if !bindJSON(c, &req, bindMessages{"ParticipantID": {"required": "participant_id is required"}}, "invalid kick request") {
		return
	}
	room, ok := s.roomFromURI(c)
	if !ok {
		return
	}
	if err := s.service.Kick(c.Request.Context(), room.ID, currentGuest(c).UserID, req.ParticipantID); err != nil {
		s.writeError(c, err)
		return
	}
	s.respondRoom(c, http.StatusOK, room.ID)
}

func (s *Server) handleStart(c *gin.Context) {
	room, ok := s.roomFromURI(c)
	if !ok {
		return
	}
	if err := s.service.StartGame(c.Request.Context(), room.ID, currentGuest(c).UserID); err != nil {
		s.writeError(c, err)
		return
	}
	s.watch(c, room.ID)
	s.respondRoom(c, http.StatusOK, room.ID)
}

func (s *Server) handleClue(c *gin.Context) {
	var req clueRequest
	if !bindJSON(c, &req, clueMessages, "invalid clue") {
		return
	}
	room, ok := s.roomFromURI(c)
	if !ok {
		return
	}
	if err := s.service.SubmitClue(c.Request.Context(), room.ID, currentGuest(c).UserID, req.Text); err != nil {
		s.writeError(c, err)
		return
	}
	s.respondRoom(c, http.StatusOK, room.ID)
}

func (s *Server) handleVote(c *gin.Context) {
	var req voteRequest
	if !bindJSON(c, &req, bindMessages{"TargetID": {"required": "target_id is required"}}, "invalid vote") {
		return
	}
	room, ok := s.roomFromURI(c)
	if !ok {
		return
	}
	if err := s.service.SubmitVote(c.Request.Context(), room.ID, currentGuest(c).UserID, req.TargetID); err != nil {
		s.writeError(c, err)
		return
	}
	s.respondRoom(c, http.StatusOK, room.ID)
}

func (s *Server) handleResolve(c *gin.Context) {
	room, ok := s.roomFromURI(c)
	if !ok {
		return
	}
	if _, err := s.service.ResolveVotes(c.Request.Context(), room.ID, currentGuest(c).UserID); err != nil {
		s.writeError(c, err)
		return
	}
	s.respondRoom(c, http.StatusOK, room.ID)
}

func (s *Server) handleNextRound(c *gin.Context) {
	room, ok := s.roomFromURI(c)
	if !ok {
		return
	}
	if err := s.service.NextRound(c.Request.Context(), room.ID, currentGuest(c).UserID); err != nil {
		s.writeError(c, err)
		return
	}
	s.watch(c, room.ID)
	s.respondRoom(c, http.StatusOK, room.ID)
}

func (s *Server) handleEvents(c *gin.Context) {
	room, ok := s.roomFromURI(c)
	if !ok {
		return
	}
	events, err := s.service.Events(c.Request.Context(), room.ID, currentGuest(c).UserID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	page, perPage := parsePagination(c, defaultEventsPerPage, maxEventsPerPage)
	info, start, end := paginate(page, perPage, len(events))
	payload := make([]map[string]any, 0, end-start)
	for _, event := range events[start:end] {
		payload = append(payload, map[string]any{
			"round":      event.Round,
			"actor_id":   event.ActorID,
			"type":       event.Type,
			"payload":    event.Payload,
			"created_at": event.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": payload, "pagination": info})
}

func (s *Server) roomFromURI(c *gin.Context) (game.Room, bool) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return game.Room{}, false
	}
	room, err := s.service.RoomByCode(c.Request.Context(), uri.Code)
	if err != nil {
		s.writeError(c, err)
		return game.Room{}, false
	}
	return room, true
}

func (s *Server) respondRoom(c *gin.Context, status int, roomID string) {
	snap, err := s.service.Snapshot(c.Request.Context(), roomID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(status, gin.H{"room": roomView(snap, currentGuest(c).UserID)})
}

// watch makes sure the room has a watcher so bots act even when nobody is
// connected over websocket.
func (s *Server) watch(c *gin.Context, roomID string) {
	if s.manager == nil {
		return
	}
	if _, err := s.manager.Watch(c.Request.Context(), roomID); err != nil {
		s.logger.Warn("watch room failed", zap.String("room_id", roomID), zap.Error(err))
	}
}

func (s *Server) displayName(requested string, guest guestSession) string {
	if name, err := validateName(requested); err == nil {
		return name
	}
	return guest.Name
}
