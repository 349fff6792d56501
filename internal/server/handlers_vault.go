package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sprobst76/vibedterm-sub001/internal/auth"
	"github.com/sprobst76/vibedterm-sub001/internal/storage"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := auth.MustClaims(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	rec, err := s.repo.Get(r.Context(), claims.Sub)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, StatusResponse{HasVault: false})
		return
	}
	if err != nil {
		s.log.Error("status lookup failed", zap.String("owner", claims.Sub), zap.Error(err))
		writeJSONStatus(w, http.StatusInternalServerError, errorResponse{Error: "storage failure"})
		return
	}
	writeJSON(w, StatusResponse{HasVault: true, Revision: rec.Revision, UpdatedAt: rec.UpdatedAt})
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := auth.MustClaims(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	rec, err := s.repo.Get(r.Context(), claims.Sub)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSONStatus(w, http.StatusNotFound, errorResponse{Error: "no vault"})
		return
	}
	if err != nil {
		s.log.Error("pull failed", zap.String("owner", claims.Sub), zap.Error(err))
		writeJSONStatus(w, http.StatusInternalServerError, errorResponse{Error: "storage failure"})
		return
	}
	writeJSON(w, PullResponse{
		VaultBlob:       base64.StdEncoding.EncodeToString(rec.Blob),
		Revision:        rec.Revision,
		UpdatedAt:       rec.UpdatedAt,
		UpdatedByDevice: rec.UpdatedByDevice,
	})
}

// handlePush is the optimistic-concurrency write. The claimed base
// revision must match the stored one; a miss comes back as 409 with the
// server's true state, never a generic 500.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := auth.MustClaims(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if !s.rlPushIP.allow(getClientIP(r)) || !s.rlPushOwner.allow(claims.Sub) {
		tooMany(w, 60)
		return
	}

	var req PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, errorResponse{Error: "bad json"})
		return
	}
	blob, err := base64.StdEncoding.DecodeString(req.VaultBlob)
	if err != nil || len(blob) == 0 {
		writeJSONStatus(w, http.StatusBadRequest, errorResponse{Error: "bad vault blob"})
		return
	}
	if req.DeviceID == "" {
		writeJSONStatus(w, http.StatusBadRequest, errorResponse{Error: "missing device id"})
		return
	}

	now := s.clock().UTC()

	rec, err := s.repo.Update(r.Context(), claims.Sub, req.Revision, blob, req.DeviceID, now)
	if errors.Is(err, storage.ErrNotFound) {
		// First push ever: the record adopts the client's revision so the
		// next status comparison lands on the in-sync branch.
		created := storage.VaultRecord{
			OwnerID:         claims.Sub,
			Blob:            blob,
			Revision:        max(req.Revision, 1),
			UpdatedByDevice: req.DeviceID,
			UpdatedAt:       now,
		}
		if err := s.repo.Create(r.Context(), created); err != nil {
			if errors.Is(err, storage.ErrExists) {
				// Another device won the race for the very first push.
				// Report the winner's state as an ordinary conflict.
				s.conflictFromCurrent(w, r, claims.Sub, req.Revision)
				return
			}
			s.log.Error("initial push failed", zap.String("owner", claims.Sub), zap.Error(err))
			writeJSONStatus(w, http.StatusInternalServerError, errorResponse{Error: "storage failure"})
			return
		}
		s.log.Info("vault created",
			zap.String("owner", claims.Sub),
			zap.String("device", req.DeviceID),
			zap.Uint64("revision", created.Revision))
		writeJSON(w, PushResponse{Status: "created", Revision: created.Revision, Timestamp: now})
		return
	}

	var mismatch *storage.RevisionMismatchError
	if errors.As(err, &mismatch) {
		s.log.Info("push conflict",
			zap.String("owner", claims.Sub),
			zap.Uint64("claimed", req.Revision),
			zap.Uint64("server", mismatch.Revision))
		writeJSONStatus(w, http.StatusConflict, ConflictResponse{
			LocalRevision:   req.Revision,
			ServerRevision:  mismatch.Revision,
			ServerDeviceID:  mismatch.Device,
			ServerUpdatedAt: mismatch.UpdatedAt,
		})
		return
	}
	if err != nil {
		s.log.Error("push failed", zap.String("owner", claims.Sub), zap.Error(err))
		writeJSONStatus(w, http.StatusInternalServerError, errorResponse{Error: "storage failure"})
		return
	}

	s.log.Info("vault pushed",
		zap.String("owner", claims.Sub),
		zap.String("device", req.DeviceID),
		zap.Uint64("revision", rec.Revision))
	writeJSON(w, PushResponse{Status: "ok", Revision: rec.Revision, Timestamp: now})
}

// conflictFromCurrent answers 409 with the record as it stands now. Used
// when a concurrent writer slipped in between the CAS miss and the create.
func (s *Server) conflictFromCurrent(w http.ResponseWriter, r *http.Request, owner string, claimed uint64) {
	rec, err := s.repo.Get(r.Context(), owner)
	if err != nil {
		s.log.Error("conflict lookup failed", zap.String("owner", owner), zap.Error(err))
		writeJSONStatus(w, http.StatusInternalServerError, errorResponse{Error: "storage failure"})
		return
	}
	s.log.Info("push conflict",
		zap.String("owner", owner),
		zap.Uint64("claimed", claimed),
		zap.Uint64("server", rec.Revision))
	writeJSONStatus(w, http.StatusConflict, ConflictResponse{
		LocalRevision:   claimed,
		ServerRevision:  rec.Revision,
		ServerDeviceID:  rec.UpdatedByDevice,
		ServerUpdatedAt: rec.UpdatedAt,
	})
}

// handleForceOverwrite bypasses the revision check: the record is dropped
// and recreated at the baseline revision. Reserved for explicit
// user-driven conflict resolution.
func (s *Server) handleForceOverwrite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := auth.MustClaims(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if !s.rlPushIP.allow(getClientIP(r)) || !s.rlPushOwner.allow(claims.Sub) {
		tooMany(w, 60)
		return
	}

	var req ForceOverwriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, errorResponse{Error: "bad json"})
		return
	}
	if !req.Confirm {
		writeJSONStatus(w, http.StatusBadRequest, errorResponse{Error: "confirm required"})
		return
	}
	blob, err := base64.StdEncoding.DecodeString(req.VaultBlob)
	if err != nil || len(blob) == 0 {
		writeJSONStatus(w, http.StatusBadRequest, errorResponse{Error: "bad vault blob"})
		return
	}
	if req.DeviceID == "" {
		writeJSONStatus(w, http.StatusBadRequest, errorResponse{Error: "missing device id"})
		return
	}

	now := s.clock().UTC()
	rec := storage.VaultRecord{
		OwnerID:         claims.Sub,
		Blob:            blob,
		Revision:        1,
		UpdatedByDevice: req.DeviceID,
		UpdatedAt:       now,
	}
	if err := s.repo.Replace(r.Context(), rec); err != nil {
		s.log.Error("force overwrite failed", zap.String("owner", claims.Sub), zap.Error(err))
		writeJSONStatus(w, http.StatusInternalServerError, errorResponse{Error: "storage failure"})
		return
	}
	s.log.Warn("vault force-overwritten",
		zap.String("owner", claims.Sub),
		zap.String("device", req.DeviceID))
	writeJSON(w, PushResponse{Status: "ok", Revision: rec.Revision, Timestamp: now})
}
