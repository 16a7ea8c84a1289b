package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/repository"
)

type uGame interface {
	CreateGame(ctx context.Context) (*entity.Game, error)
	JoinGame(ctx context.Context, gameID string) (*entity.Game, error)
	GetGame(ctx context.Context, gameID string) (*entity.Game, error)
	MakeTurn(ctx context.Context, gameID, mark string, board, cell int) (*entity.Game, error)
	ResetGame(ctx context.Context, gameID string) (*entity.Game, error)
}

type joinRequest struct {
	GameID string `json:"game_id"`
}

type turnRequest struct {
	GameID   string `json:"game_id"`
	BoardIdx *int   `json:"boardIdx"`
	CellIdx  *int   `json:"cellIdx"`
	Mark     string `json:"mark"`
}

type resetRequest struct {
	GameID string `json:"game_id"`
}

type gameResponse struct {
	Mark string       `json:"mark,omitempty"`
	Game *entity.Game `json:"game"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (that *Server) handlePing(writer http.ResponseWriter, _ *http.Request) {
	writer.WriteHeader(http.StatusOK)
	if _, err := writer.Write([]byte("pong")); err != nil {
		http.Error(writer, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

func (that *Server) handleCreateGame(writer http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(writer, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	game, err := that.uGame.CreateGame(req.Context())
	if err != nil {
		that.writeError(writer, err)
		return
	}

	that.writeJSON(writer, http.StatusCreated, gameResponse{Mark: entity.PlayerX, Game: game})
}

func (that *Server) handleJoinGame(writer http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(writer, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload joinRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil || payload.GameID == "" {
		that.writeJSON(writer, http.StatusBadRequest, errorResponse{Error: "game_id is required"})
		return
	}

	game, err := that.uGame.JoinGame(req.Context(), payload.GameID)
	if err != nil {
		that.writeError(writer, err)
		return
	}

	// The joiner always plays O; the creator holds X.
	that.writeJSON(writer, http.StatusOK, gameResponse{Mark: entity.PlayerO, Game: game})
}

func (that *Server) handleGameState(writer http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(writer, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	gameID := req.URL.Query().Get("id")
	if gameID == "" {
		that.writeJSON(writer, http.StatusBadRequest, errorResponse{Error: "id is required"})
		return
	}

	game, err := that.uGame.GetGame(req.Context(), gameID)
	if err != nil {
		that.writeError(writer, err)
		return
	}

	that.writeJSON(writer, http.StatusOK, gameResponse{Game: game})
}

func (that *Server) handleGameTurn(writer http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(writer, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload turnRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		that.writeJSON(writer, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	if payload.GameID == "" || payload.BoardIdx == nil || payload.CellIdx == nil || payload.Mark == "" {
		that.writeJSON(writer, http.StatusBadRequest, errorResponse{Error: "game_id, boardIdx, cellIdx and mark are required"})
		return
	}

	game, err := that.uGame.MakeTurn(req.Context(), payload.GameID, payload.Mark, *payload.BoardIdx, *payload.CellIdx)
	if err != nil {
		that.writeError(writer, err)
		return
	}

	that.writeJSON(writer, http.StatusOK, gameResponse{Game: game})
}

func (that *Server) handleGameReset(writer http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(writer, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload resetRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil || payload.GameID == "" {
		that.writeJSON(writer, http.StatusBadRequest, errorResponse{Error: "game_id is required"})
		return
	}

	game, err := that.uGame.ResetGame(req.Context(), payload.GameID)
	if err != nil {
		that.writeError(writer, err)
		return
	}

	that.writeJSON(writer, http.StatusOK, gameResponse{Game: game})
}

func (that *Server) writeJSON(writer http.ResponseWriter, status int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)

	if err := json.NewEncoder(writer).Encode(body); err != nil {
		that.logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses: unknown games are
// 404, illegal moves and lifecycle violations are 409, everything else is a
// server fault.
func (that *Server) writeError(writer http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, repository.ErrGameNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperror.ErrNotYourTurn),
		errors.Is(err, apperror.ErrCellOccupied),
		errors.Is(err, apperror.ErrBoardSettled),
		errors.Is(err, apperror.ErrWrongBoard),
		errors.Is(err, apperror.ErrGameFinished),
		errors.Is(err, apperror.ErrGameIsNotStarted),
		errors.Is(err, apperror.ErrGameFull):
		status = http.StatusConflict
	case errors.Is(err, apperror.ErrInvalidCell), errors.Is(err, apperror.ErrInvalidBoard):
		status = http.StatusBadRequest
	default:
		that.logger.Error("request failed", "error", err)
	}

	that.writeJSON(writer, status, errorResponse{Error: err.Error()})
}
